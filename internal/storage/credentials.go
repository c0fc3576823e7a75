package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/rail"
)

// CredentialStore looks up per-organization rail credentials in PostgreSQL
type CredentialStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewCredentialStore creates a new CredentialStore instance
func NewCredentialStore(db *sqlx.DB, logger *slog.Logger) *CredentialStore {
	return &CredentialStore{
		db:     db,
		logger: logger,
	}
}

type credentialRow struct {
	rail.Credentials
	TimeoutSeconds int `db:"timeout_seconds"`
}

// GetRailCredentials implements rail.CredentialStore
func (s *CredentialStore) GetRailCredentials(ctx context.Context, organizationID string, railID rail.ID) (rail.Credentials, error) {
	query := `
		SELECT organization_id, rail, base_url, api_key, username, password,
		       submitter_id, timeout_seconds
		FROM rail_credentials
		WHERE organization_id = $1 AND rail = $2
	`

	var row credentialRow
	if err := s.db.GetContext(ctx, &row, query, organizationID, string(railID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rail.Credentials{}, fmt.Errorf("%w: organization %s, rail %s", domain.ErrCredentialsNotFound, organizationID, railID)
		}
		return rail.Credentials{}, fmt.Errorf("failed to get rail credentials: %w", err)
	}

	creds := row.Credentials
	creds.Timeout = time.Duration(row.TimeoutSeconds) * time.Second

	s.logger.Debug("Rail credentials loaded",
		slog.String("organization_id", organizationID),
		slog.String("rail", string(railID)),
	)

	return creds, nil
}

// CombinedStore checks the database first and falls back to a static store
type CombinedStore struct {
	primary  rail.CredentialStore
	fallback rail.CredentialStore
}

// NewCombinedStore creates a store that prefers primary
func NewCombinedStore(primary, fallback rail.CredentialStore) *CombinedStore {
	return &CombinedStore{primary: primary, fallback: fallback}
}

// GetRailCredentials implements rail.CredentialStore
func (c *CombinedStore) GetRailCredentials(ctx context.Context, organizationID string, railID rail.ID) (rail.Credentials, error) {
	creds, err := c.primary.GetRailCredentials(ctx, organizationID, railID)
	if err == nil || !errors.Is(err, domain.ErrCredentialsNotFound) || c.fallback == nil {
		return creds, err
	}
	return c.fallback.GetRailCredentials(ctx, organizationID, railID)
}
