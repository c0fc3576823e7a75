package domain

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
)

// Job is a unit of asynchronous work owned by the scheduler
type Job struct {
	ID          string          `json:"job_id"`
	Kind        JobKind         `json:"kind"`
	ClaimID     string          `json:"claim_id"`
	Rail        string          `json:"rail"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LastError   *classify.Error `json:"last_error,omitempty"`
}

// Clone returns a copy that shares no mutable state with j
func (j *Job) Clone() Job {
	c := *j
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.LastError != nil {
		e := *j.LastError
		c.LastError = &e
	}
	return c
}
