// Package scheduler runs claim submission and status polling jobs against
// rail connectors with bounded, classified retries. Job state lives in memory
// for the lifetime of the process.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/metrics"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
)

// DefaultMaxAttempts is used when Config.MaxAttempts is not set
const DefaultMaxAttempts = 5

// ErrClosed is returned by Enqueue after Close
var ErrClosed = errors.New("scheduler is closed")

// Config holds scheduler settings
type Config struct {
	MaxAttempts int
	// Concurrency caps executions in flight across all jobs; zero means no cap
	Concurrency int
}

// EnqueueRequest describes a new job. A zero ScheduledAt means now.
type EnqueueRequest struct {
	Kind        domain.JobKind
	ClaimID     string
	Rail        string
	Payload     json.RawMessage
	ScheduledAt time.Time
}

// Validate checks the request fields
func (r EnqueueRequest) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidJob, r.Kind)
	}
	if r.ClaimID == "" {
		return fmt.Errorf("%w: claim_id is required", domain.ErrInvalidJob)
	}
	if r.Rail == "" {
		return fmt.Errorf("%w: rail is required", domain.ErrInvalidJob)
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", domain.ErrInvalidJob)
	}
	return nil
}

// Scheduler owns the job table and drives every job to a terminal status
type Scheduler struct {
	maxAttempts     int
	claims          ClaimStore
	connectors      ConnectorResolver
	notifier        Notifier
	logger          *slog.Logger
	now             func() time.Time
	backoff         func(attempt int) time.Duration
	pollAfterSubmit time.Duration
	slots           *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*domain.Job
	running map[string]struct{}
	timers  map[string]*time.Timer
	closed  bool
}

// New creates a scheduler
func New(cfg Config, claims ClaimStore, connectors ConnectorResolver, logger *slog.Logger, opts ...Option) *Scheduler {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		maxAttempts: maxAttempts,
		claims:      claims,
		connectors:  connectors,
		logger:      logger,
		now:         time.Now,
		backoff:     defaultBackoff,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*domain.Job),
		running:     make(map[string]struct{}),
		timers:      make(map[string]*time.Timer),
	}

	if cfg.Concurrency > 0 {
		s.slots = semaphore.NewWeighted(int64(cfg.Concurrency))
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Enqueue validates and stores a job, then starts it asynchronously when due.
// It never blocks on job execution.
func (s *Scheduler) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		ClaimID:     req.ClaimID,
		Rail:        req.Rail,
		Payload:     append(json.RawMessage(nil), req.Payload...),
		Status:      domain.JobStatusQueued,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
		ScheduledAt: scheduledAt,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.jobs[job.ID] = job
	s.armLocked(job.ID, scheduledAt.Sub(now))
	s.mu.Unlock()

	metrics.JobsEnqueued.WithLabelValues(string(job.Kind), job.Rail).Inc()

	s.logger.InfoContext(ctx, "Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("claim_id", job.ClaimID),
		slog.String("rail", job.Rail),
		slog.Time("scheduled_at", scheduledAt),
	)

	return job.ID, nil
}

// GetStatus returns a snapshot of the job
func (s *Scheduler) GetStatus(jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

// Cleanup removes terminal jobs last updated more than maxAge ago and returns
// how many were removed. Queued and running jobs are never removed.
func (s *Scheduler) Cleanup(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		metrics.JobsPurged.Add(float64(removed))
		s.logger.Info("Terminal jobs purged",
			slog.Int("removed", removed),
			slog.Duration("max_age", maxAge),
		)
	}

	return removed
}

// Close stops pending timers and waits for in-flight executions. When ctx
// expires first, in-flight connector calls are cancelled.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// armLocked schedules process(jobID) after delay. Callers hold s.mu.
func (s *Scheduler) armLocked(jobID string, delay time.Duration) {
	if s.closed {
		return
	}
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
	}
	if delay <= 0 {
		delete(s.timers, jobID)
		go s.process(jobID)
		return
	}
	s.timers[jobID] = time.AfterFunc(delay, func() {
		s.process(jobID)
	})
}

// process runs one attempt of a job. Overlapping calls for the same job id
// are refused, so a job never has more than one execution in flight.
func (s *Scheduler) process(jobID string) {
	if s.slots != nil {
		// a due job waits here, still queued, until a slot frees up
		if err := s.slots.Acquire(s.ctx, 1); err != nil {
			return
		}
		defer s.slots.Release(1)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, busy := s.running[jobID]; busy {
		s.mu.Unlock()
		s.logger.Debug("Job already running, skipping", slog.String("job_id", jobID))
		return
	}
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusQueued {
		s.mu.Unlock()
		return
	}
	delete(s.timers, jobID)

	now := s.now()
	if remaining := job.ScheduledAt.Sub(now); remaining > 0 {
		s.armLocked(jobID, remaining)
		s.mu.Unlock()
		return
	}

	s.running[jobID] = struct{}{}
	job.Attempts++
	job.Status = domain.JobStatusRunning
	job.UpdatedAt = now
	snapshot := job.Clone()
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	metrics.JobAttempts.WithLabelValues(string(snapshot.Kind), snapshot.Rail).Inc()

	s.logger.Info("Processing job",
		slog.String("job_id", snapshot.ID),
		slog.String("kind", string(snapshot.Kind)),
		slog.String("rail", snapshot.Rail),
		slog.Int("attempt", snapshot.Attempts),
		slog.Int("max_attempts", snapshot.MaxAttempts),
	)

	cerr := s.execute(s.ctx, snapshot)
	s.finish(jobID, cerr)
}

// execute performs the connector call and its side effect
func (s *Scheduler) execute(ctx context.Context, job domain.Job) *classify.Error {
	claim, err := s.claims.GetClaim(ctx, job.ClaimID)
	if err != nil {
		if errors.Is(err, domain.ErrClaimNotFound) {
			return classify.New(classify.KindValidation, err.Error(), map[string]any{"claim_id": job.ClaimID})
		}
		return classify.New(classify.KindTransport, fmt.Sprintf("failed to load claim: %v", err), map[string]any{"claim_id": job.ClaimID})
	}

	conn, err := s.connectors.Resolve(ctx, claim.OrganizationID, job.Rail)
	if err != nil {
		return resolveError(err, job.Rail)
	}

	start := time.Now()
	var result rail.Result
	switch job.Kind {
	case domain.JobKindSubmit:
		result, err = conn.Submit(ctx, claim)
	case domain.JobKindPollStatus:
		result, err = conn.PollStatus(ctx, claim)
	default:
		return classify.New(classify.KindValidation, fmt.Sprintf("unsupported job kind %q", job.Kind), nil)
	}
	metrics.ConnectorLatency.WithLabelValues(string(job.Kind), job.Rail).Observe(time.Since(start).Seconds())

	if err != nil {
		return classify.FromError(err)
	}
	if !result.Success {
		return classify.New(classify.KindUnknown, "connector reported an unsuccessful result", nil)
	}

	if err := s.applySideEffect(ctx, job, claim, result); err != nil {
		// the rail already accepted the call, so this must not be retried
		return classify.New(classify.KindUnknown, fmt.Sprintf("failed to record outcome: %v", err), map[string]any{
			"external_id": result.ExternalID,
		})
	}

	return nil
}

// resolveError separates configuration problems, which no retry can fix, from
// credential store outages.
func resolveError(err error, railName string) *classify.Error {
	var cerr *classify.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	details := map[string]any{"rail": railName}
	switch {
	case errors.Is(err, domain.ErrUnknownRail),
		errors.Is(err, domain.ErrCredentialsNotFound),
		errors.Is(err, domain.ErrInvalidCredentials):
		return classify.New(classify.KindValidation, err.Error(), details)
	case errors.Is(err, context.DeadlineExceeded):
		return classify.New(classify.KindTimeout, err.Error(), details)
	default:
		return classify.New(classify.KindTransport, err.Error(), details)
	}
}

func (s *Scheduler) applySideEffect(ctx context.Context, job domain.Job, claim domain.Claim, result rail.Result) error {
	var update domain.ClaimUpdate

	switch job.Kind {
	case domain.JobKindSubmit:
		status := result.Status
		if status == "" {
			status = domain.ClaimStatusSubmitted
		}
		submittedAt := s.now()
		update.Status = &status
		update.SubmittedAt = &submittedAt
		if result.ExternalID != "" {
			update.ExternalID = &result.ExternalID
		}
	case domain.JobKindPollStatus:
		if result.Status != "" && result.Status != claim.Status {
			update.Status = &result.Status
		}
	}

	if update.IsEmpty() {
		return nil
	}

	if err := s.claims.UpdateClaim(ctx, claim.ID, update); err != nil {
		return err
	}

	if update.Status != nil {
		s.logger.Info("Claim status advanced",
			slog.String("job_id", job.ID),
			slog.String("claim_id", claim.ID),
			slog.String("from", string(claim.Status)),
			slog.String("to", string(*update.Status)),
		)
	}

	if job.Kind == domain.JobKindSubmit && s.pollAfterSubmit > 0 {
		if _, err := s.Enqueue(ctx, EnqueueRequest{
			Kind:        domain.JobKindPollStatus,
			ClaimID:     claim.ID,
			Rail:        job.Rail,
			ScheduledAt: s.now().Add(s.pollAfterSubmit),
		}); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn("Failed to enqueue follow-up poll",
				slog.String("job_id", job.ID),
				slog.String("claim_id", claim.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// finish records the attempt outcome and decides between retry and a terminal status
func (s *Scheduler) finish(jobID string, cerr *classify.Error) {
	s.mu.Lock()
	delete(s.running, jobID)

	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}

	now := s.now()
	job.UpdatedAt = now

	if cerr == nil {
		job.Status = domain.JobStatusSucceeded
		job.LastError = nil
		snapshot := job.Clone()
		s.mu.Unlock()

		s.logger.Info("Job succeeded",
			slog.String("job_id", snapshot.ID),
			slog.String("kind", string(snapshot.Kind)),
			slog.Int("attempts", snapshot.Attempts),
		)
		s.terminal(snapshot)
		return
	}

	job.LastError = cerr

	if cerr.Retriable() && job.Attempts < job.MaxAttempts {
		delay := s.backoff(job.Attempts)
		job.Status = domain.JobStatusQueued
		job.ScheduledAt = now.Add(delay)
		s.armLocked(jobID, delay)
		snapshot := job.Clone()
		s.mu.Unlock()

		metrics.JobRetries.WithLabelValues(snapshot.Rail, string(cerr.Kind)).Inc()

		s.logger.Warn("Job attempt failed, retry scheduled",
			slog.String("job_id", snapshot.ID),
			slog.String("error_kind", string(cerr.Kind)),
			slog.String("error", cerr.Message),
			slog.Int("attempt", snapshot.Attempts),
			slog.Int("max_attempts", snapshot.MaxAttempts),
			slog.Duration("delay", delay),
		)
		return
	}

	job.Status = domain.JobStatusFailed
	snapshot := job.Clone()
	s.mu.Unlock()

	s.logger.Error("Job failed",
		slog.String("job_id", snapshot.ID),
		slog.String("kind", string(snapshot.Kind)),
		slog.String("error_kind", string(cerr.Kind)),
		slog.String("error", cerr.Message),
		slog.Bool("retriable", cerr.Retriable()),
		slog.Int("attempts", snapshot.Attempts),
	)
	s.terminal(snapshot)
}

func (s *Scheduler) terminal(job domain.Job) {
	metrics.JobsFinished.WithLabelValues(string(job.Kind), job.Rail, string(job.Status)).Inc()

	if s.notifier == nil {
		return
	}
	if err := s.notifier.JobFinished(s.ctx, job); err != nil {
		s.logger.Warn("Failed to publish job outcome",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
