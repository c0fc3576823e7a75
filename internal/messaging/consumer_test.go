package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

// fakeAcknowledger implements amqp.Acknowledger
type fakeAcknowledger struct {
	mu      sync.Mutex
	records map[uint64]*ackRecord
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{records: make(map[uint64]*ackRecord)}
}

func (a *fakeAcknowledger) record(tag uint64) *ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[tag]
	if !ok {
		r = &ackRecord{}
		a.records[tag] = r
	}
	return r
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.record(tag).acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	r := a.record(tag)
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	requests []scheduler.EnqueueRequest
	err      error
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, req scheduler.EnqueueRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	e.requests = append(e.requests, req)
	return "job-1", nil
}

func (e *fakeEnqueuer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

type memoryDeduper struct {
	seen map[string]bool
	err  error
}

func (d *memoryDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memoryDeduper) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func delivery(ack amqp.Acknowledger, tag uint64, messageID, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		MessageId:    messageID,
		Body:         []byte(body),
	}
}

const validBody = `{"kind":"submit","claim_id":"claim-1","rail":"sandbox"}`

func TestConsumer_Dispatch(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		enqueueErr  error
		dedupeErr   error
		wantAck     bool
		wantRequeue bool
		wantJobs    int
	}{
		{name: "valid message", body: validBody, wantAck: true, wantJobs: 1},
		{name: "malformed json", body: `{not json`, wantAck: false, wantRequeue: false},
		{name: "invalid job", body: `{"kind":"resubmit","claim_id":"c1","rail":"sandbox"}`, wantAck: false, wantRequeue: false},
		{name: "scheduler closed", body: validBody, enqueueErr: scheduler.ErrClosed, wantAck: false, wantRequeue: true},
		{name: "dedupe unavailable", body: validBody, dedupeErr: errors.New("redis down"), wantAck: false, wantRequeue: true},
		{name: "unexpected enqueue error", body: validBody, enqueueErr: errors.New("boom"), wantAck: false, wantRequeue: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := newFakeAcknowledger()
			enq := &fakeEnqueuer{err: tt.enqueueErr}
			dedupe := &memoryDeduper{seen: map[string]bool{}, err: tt.dedupeErr}
			c := NewConsumer(nil, enq, dedupe, "test", discardLogger())

			c.dispatch(context.Background(), delivery(ack, 1, "msg-1", tt.body))

			rec := ack.record(1)
			assert.Equal(t, tt.wantAck, rec.acked)
			assert.Equal(t, !tt.wantAck, rec.nacked)
			assert.Equal(t, tt.wantRequeue, rec.requeue)
			assert.Equal(t, tt.wantJobs, enq.count())
		})
	}
}

func TestConsumer_DropsDuplicates(t *testing.T) {
	ack := newFakeAcknowledger()
	enq := &fakeEnqueuer{}
	c := NewConsumer(nil, enq, &memoryDeduper{seen: map[string]bool{}}, "test", discardLogger())

	c.dispatch(context.Background(), delivery(ack, 1, "msg-1", validBody))
	c.dispatch(context.Background(), delivery(ack, 2, "msg-1", validBody))
	c.dispatch(context.Background(), delivery(ack, 3, "msg-2", validBody))

	assert.True(t, ack.record(1).acked)
	assert.True(t, ack.record(2).acked)
	assert.True(t, ack.record(3).acked)
	assert.Equal(t, 2, enq.count())
}

func TestConsumer_ReleasesDedupeKeyOnRequeue(t *testing.T) {
	ack := newFakeAcknowledger()
	enq := &fakeEnqueuer{err: scheduler.ErrClosed}
	dedupe := &memoryDeduper{seen: map[string]bool{}}
	c := NewConsumer(nil, enq, dedupe, "test", discardLogger())

	c.dispatch(context.Background(), delivery(ack, 1, "msg-1", validBody))

	assert.True(t, ack.record(1).requeue)
	assert.False(t, dedupe.seen["msg-1"])
}

func TestConsumer_MessageIDFromBody(t *testing.T) {
	ack := newFakeAcknowledger()
	enq := &fakeEnqueuer{}
	c := NewConsumer(nil, enq, &memoryDeduper{seen: map[string]bool{}}, "test", discardLogger())

	body := `{"message_id":"body-1","kind":"submit","claim_id":"c1","rail":"sandbox"}`
	c.dispatch(context.Background(), delivery(ack, 1, "", body))
	c.dispatch(context.Background(), delivery(ack, 2, "", body))

	assert.Equal(t, 1, enq.count())
}

func TestConsumer_ScheduledAt(t *testing.T) {
	ack := newFakeAcknowledger()
	enq := &fakeEnqueuer{}
	c := NewConsumer(nil, enq, nil, "test", discardLogger())

	body := `{"kind":"poll-status","claim_id":"c1","rail":"portal","scheduled_at":"2026-05-01T10:00:00Z"}`
	c.dispatch(context.Background(), delivery(ack, 1, "", body))

	require.Equal(t, 1, enq.count())
	req := enq.requests[0]
	assert.Equal(t, domain.JobKindPollStatus, req.Kind)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), req.ScheduledAt.UTC())
}

type chanSource struct {
	ch  chan amqp.Delivery
	err error
}

func (s *chanSource) Consume(string) (<-chan amqp.Delivery, error) {
	return s.ch, s.err
}

func TestConsumer_Run(t *testing.T) {
	t.Run("stops on context cancel", func(t *testing.T) {
		source := &chanSource{ch: make(chan amqp.Delivery, 1)}
		enq := &fakeEnqueuer{}
		ack := newFakeAcknowledger()
		c := NewConsumer(source, enq, nil, "test", discardLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()

		source.ch <- delivery(ack, 1, "", validBody)
		require.Eventually(t, func() bool { return enq.count() == 1 }, time.Second, 5*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("reports closed channel", func(t *testing.T) {
		source := &chanSource{ch: make(chan amqp.Delivery)}
		close(source.ch)
		c := NewConsumer(source, &fakeEnqueuer{}, nil, "test", discardLogger())

		assert.ErrorIs(t, c.Run(context.Background()), ErrDeliveriesClosed)
	})

	t.Run("consume error", func(t *testing.T) {
		c := NewConsumer(&chanSource{err: errors.New("no channel")}, &fakeEnqueuer{}, nil, "test", discardLogger())
		assert.Error(t, c.Run(context.Background()))
	})
}
