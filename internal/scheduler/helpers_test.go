package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastBackoff(int) time.Duration {
	return time.Millisecond
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryClaims is an in-memory ClaimStore
type memoryClaims struct {
	mu        sync.Mutex
	claims    map[string]domain.Claim
	updates   []domain.ClaimUpdate
	updateErr error
}

func newMemoryClaims(claims ...domain.Claim) *memoryClaims {
	m := &memoryClaims{claims: make(map[string]domain.Claim)}
	for _, c := range claims {
		m.claims[c.ID] = c
	}
	return m
}

func (m *memoryClaims) GetClaim(_ context.Context, id string) (domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return domain.Claim{}, domain.ErrClaimNotFound
	}
	return c, nil
}

func (m *memoryClaims) UpdateClaim(_ context.Context, id string, u domain.ClaimUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.claims[id]
	if !ok {
		return domain.ErrClaimNotFound
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.ExternalID != nil {
		c.ExternalID = *u.ExternalID
	}
	if u.SubmittedAt != nil {
		c.SubmittedAt = u.SubmittedAt
	}
	m.claims[id] = c
	m.updates = append(m.updates, u)
	return nil
}

func (m *memoryClaims) claim(id string) domain.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id]
}

func (m *memoryClaims) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type step struct {
	result rail.Result
	err    error
}

func succeed(externalID string, status domain.ClaimStatus) step {
	return step{result: rail.Result{Success: true, ExternalID: externalID, Status: status}}
}

func fail(err error) step {
	return step{err: err}
}

// scriptedConnector replays steps in order; the last step repeats
type scriptedConnector struct {
	mu          sync.Mutex
	submits     []step
	polls       []step
	submitCalls int
	pollCalls   int

	// when set, Submit signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (c *scriptedConnector) Rail() rail.ID {
	return rail.Sandbox
}

func (c *scriptedConnector) Submit(ctx context.Context, _ domain.Claim) (rail.Result, error) {
	c.mu.Lock()
	c.submitCalls++
	s := next(c.submits, c.submitCalls)
	c.mu.Unlock()

	if c.release != nil {
		c.started <- struct{}{}
		select {
		case <-c.release:
		case <-ctx.Done():
			return rail.Result{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func (c *scriptedConnector) PollStatus(_ context.Context, _ domain.Claim) (rail.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollCalls++
	s := next(c.polls, c.pollCalls)
	return s.result, s.err
}

func (c *scriptedConnector) calls() (submits, polls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitCalls, c.pollCalls
}

func next(steps []step, call int) step {
	if len(steps) == 0 {
		return step{err: errors.New("no scripted step")}
	}
	return steps[min(call, len(steps))-1]
}

// railResolver returns a connector per rail name
type railResolver map[string]rail.Connector

func (r railResolver) Resolve(_ context.Context, _ string, railName string) (rail.Connector, error) {
	conn, ok := r[railName]
	if !ok {
		return nil, domain.ErrUnknownRail
	}
	return conn, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (n *recordingNotifier) JobFinished(_ context.Context, job domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return nil
}

func (n *recordingNotifier) finished() []domain.Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Job(nil), n.jobs...)
}

func readyClaim(id string) domain.Claim {
	return domain.Claim{
		ID:             id,
		OrganizationID: "org-1",
		PayerID:        "PAYER01",
		Status:         domain.ClaimStatusReady,
		ServiceDate:    time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Lines:          []domain.ServiceLine{{ProcedureCode: "99213", Units: 1, ChargeCents: 15000}},
	}
}

func waitTerminal(t *testing.T, s *Scheduler, jobID string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.GetStatus(jobID)
		return err == nil && job.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func closeScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}
