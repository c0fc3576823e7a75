package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
)

// ClaimStore reads claims and applies outcome updates in PostgreSQL
type ClaimStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewClaimStore creates a new ClaimStore instance
func NewClaimStore(db *sqlx.DB, logger *slog.Logger) *ClaimStore {
	return &ClaimStore{
		db:     db,
		logger: logger,
	}
}

type claimRow struct {
	domain.Claim
	DiagnosisCodes pq.StringArray `db:"diagnosis_codes"`
}

type lineRow struct {
	ProcedureCode string `db:"procedure_code"`
	Modifier      string `db:"modifier"`
	Units         int    `db:"units"`
	ChargeCents   int64  `db:"charge_cents"`
}

// GetClaim loads a claim with its service lines
func (s *ClaimStore) GetClaim(ctx context.Context, claimID string) (domain.Claim, error) {
	query := `
		SELECT claim_id, organization_id, patient_id, provider_npi, payer_id, status,
		       external_id, total_charge_cents, service_date, diagnosis_codes,
		       submitted_at, updated_at
		FROM claims
		WHERE claim_id = $1
	`

	var row claimRow
	if err := s.db.GetContext(ctx, &row, query, claimID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
		}
		return domain.Claim{}, fmt.Errorf("failed to get claim: %w", err)
	}

	var lines []lineRow
	linesQuery := `
		SELECT procedure_code, modifier, units, charge_cents
		FROM claim_lines
		WHERE claim_id = $1
		ORDER BY line_number
	`
	if err := s.db.SelectContext(ctx, &lines, linesQuery, claimID); err != nil {
		return domain.Claim{}, fmt.Errorf("failed to get claim lines: %w", err)
	}

	claim := row.Claim
	claim.DiagnosisCodes = []string(row.DiagnosisCodes)
	claim.Lines = make([]domain.ServiceLine, len(lines))
	for i, l := range lines {
		claim.Lines[i] = domain.ServiceLine(l)
	}

	return claim, nil
}

// UpdateClaim applies the non-nil fields of update
func (s *ClaimStore) UpdateClaim(ctx context.Context, claimID string, update domain.ClaimUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	query, args := buildClaimUpdate(claimID, update)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrClaimNotFound, claimID)
	}

	s.logger.Info("Claim updated",
		slog.String("claim_id", claimID),
		slog.Int("fields", len(args)-1),
	)

	return nil
}

// buildClaimUpdate renders a partial UPDATE; the claim id is always the last argument
func buildClaimUpdate(claimID string, update domain.ClaimUpdate) (string, []any) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.ExternalID != nil {
		add("external_id", *update.ExternalID)
	}
	if update.SubmittedAt != nil {
		add("submitted_at", update.SubmittedAt.UTC().Truncate(time.Microsecond))
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, claimID)
	query := fmt.Sprintf("UPDATE claims SET %s WHERE claim_id = $%d", strings.Join(sets, ", "), len(args))

	return query, args
}
