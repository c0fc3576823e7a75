// Package messaging connects the scheduler to RabbitMQ: enqueue requests
// arrive on the intake queue and terminal job outcomes are published back to
// the exchange.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
)

// EnqueueMessage is the body of an intake message
type EnqueueMessage struct {
	MessageID   string          `json:"message_id,omitempty"`
	Kind        domain.JobKind  `json:"kind"`
	ClaimID     string          `json:"claim_id"`
	Rail        string          `json:"rail"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

func (m EnqueueMessage) request() scheduler.EnqueueRequest {
	req := scheduler.EnqueueRequest{
		Kind:    m.Kind,
		ClaimID: m.ClaimID,
		Rail:    m.Rail,
		Payload: m.Payload,
	}
	if m.ScheduledAt != nil {
		req.ScheduledAt = *m.ScheduledAt
	}
	return req
}

// OutcomeEvent is published once per job reaching a terminal status
type OutcomeEvent struct {
	JobID      string           `json:"job_id"`
	Kind       domain.JobKind   `json:"kind"`
	ClaimID    string           `json:"claim_id"`
	Rail       string           `json:"rail"`
	Status     domain.JobStatus `json:"status"`
	Attempts   int              `json:"attempts"`
	Error      *classify.Error  `json:"error,omitempty"`
	FinishedAt time.Time        `json:"finished_at"`
}

func newOutcomeEvent(job domain.Job) OutcomeEvent {
	return OutcomeEvent{
		JobID:      job.ID,
		Kind:       job.Kind,
		ClaimID:    job.ClaimID,
		Rail:       job.Rail,
		Status:     job.Status,
		Attempts:   job.Attempts,
		Error:      job.LastError,
		FinishedAt: job.UpdatedAt,
	}
}
