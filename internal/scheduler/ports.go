package scheduler

import (
	"context"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
)

// ClaimStore is the persistence collaborator
type ClaimStore interface {
	GetClaim(ctx context.Context, claimID string) (domain.Claim, error)
	UpdateClaim(ctx context.Context, claimID string, update domain.ClaimUpdate) error
}

// ConnectorResolver binds a rail connector to an organization's credentials
type ConnectorResolver interface {
	Resolve(ctx context.Context, organizationID, rail string) (rail.Connector, error)
}

// Notifier receives jobs that reached a terminal status
type Notifier interface {
	JobFinished(ctx context.Context, job domain.Job) error
}
