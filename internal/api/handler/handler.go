package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
)

// JobService is the scheduler surface exposed over HTTP
type JobService interface {
	Enqueue(ctx context.Context, req scheduler.EnqueueRequest) (string, error)
	GetStatus(jobID string) (domain.Job, error)
	List(filter scheduler.ListFilter) []domain.Job
	Cleanup(maxAge time.Duration) int
}

// GateDecider answers what the safety gate would do for a hostname
type GateDecider interface {
	Decide(hostname string) gate.Decision
	Mode() gate.Mode
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Jobs         JobService
	Gate         GateDecider
	HealthChecks map[string]HealthCheck
	ServiceName  string

	// MetricsPath exposes prometheus metrics when non-empty
	MetricsPath string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// GateHandler exposes safety gate decisions for operators
type GateHandler struct {
	logger *slog.Logger
	gate   GateDecider
}

// NewGateHandler creates a new GateHandler instance
func NewGateHandler(deps *Dependencies) *GateHandler {
	return &GateHandler{
		logger: deps.Logger,
		gate:   deps.Gate,
	}
}
