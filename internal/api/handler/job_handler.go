package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/claims-pipeline/internal/api/dto"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
)

const maxPageSize = 100

// CreateJob handles POST /api/v1/jobs
// Enqueues a submit or poll-status job and returns immediately
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	enqueue := scheduler.EnqueueRequest{
		Kind:    domain.JobKind(req.Kind),
		ClaimID: req.ClaimID,
		Rail:    req.Rail,
		Payload: req.Payload,
	}
	if req.ScheduledAt != nil {
		enqueue.ScheduledAt = *req.ScheduledAt
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), enqueue)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidJob):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		case errors.Is(err, scheduler.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Scheduler is shutting down",
			})
		default:
			h.logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to enqueue job",
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusQueued),
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the current snapshot of a job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.jobs.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = scheduler.DefaultListLimit
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	// one extra row tells whether another page exists
	jobs := h.jobs.List(scheduler.ListFilter{
		Status:  domain.JobStatus(req.Status),
		Kind:    domain.JobKind(req.Kind),
		ClaimID: req.ClaimID,
		After:   cursor,
		Limit:   req.PageSize + 1,
	})

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = dto.NewJobDTO(job)
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&scheduler.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// CleanupJobs handles DELETE /api/v1/jobs?older_than=24h
// Removes terminal jobs older than the given age
func (h *JobHandler) CleanupJobs(c *gin.Context) {
	raw := c.Query("older_than")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "older_than is required",
		})
		return
	}

	maxAge, err := time.ParseDuration(raw)
	if err != nil || maxAge < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "older_than must be a non-negative duration such as 24h",
		})
		return
	}

	removed := h.jobs.Cleanup(maxAge)

	h.logger.Info("Job cleanup requested",
		slog.Duration("max_age", maxAge),
		slog.Int("removed", removed),
	)

	c.JSON(http.StatusOK, dto.CleanupJobsResponse{
		Removed: removed,
		MaxAge:  maxAge.String(),
	})
}
