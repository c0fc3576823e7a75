package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
)

type CreateJobRequest struct {
	Kind        string          `json:"kind" binding:"required"`
	ClaimID     string          `json:"claim_id" binding:"required"`
	Rail        string          `json:"rail" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
}

type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	Kind     string `form:"kind"`
	ClaimID  string `form:"claim_id"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type CleanupJobsResponse struct {
	Removed int    `json:"removed"`
	MaxAge  string `json:"max_age"`
}

type JobDTO struct {
	JobID       string          `json:"job_id"`
	Kind        string          `json:"kind"`
	ClaimID     string          `json:"claim_id"`
	Rail        string          `json:"rail"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt string          `json:"scheduled_at"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	LastError   *classify.Error `json:"last_error,omitempty"`
}

// NewJobDTO converts a scheduler job snapshot for the response body
func NewJobDTO(job domain.Job) JobDTO {
	return JobDTO{
		JobID:       job.ID,
		Kind:        string(job.Kind),
		ClaimID:     job.ClaimID,
		Rail:        job.Rail,
		Payload:     job.Payload,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		ScheduledAt: job.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
		LastError:   job.LastError,
	}
}
