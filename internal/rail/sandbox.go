package rail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// SandboxConnector is an in-process rail for local development. It makes no
// network calls and answers deterministically.
type SandboxConnector struct {
	submitterID string
}

// NewSandboxConnector implements Builder
func NewSandboxConnector(creds Credentials, _ *gate.Client) (Connector, error) {
	return &SandboxConnector{submitterID: creds.SubmitterID}, nil
}

// Rail implements Connector
func (s *SandboxConnector) Rail() ID {
	return Sandbox
}

// Submit accepts any claim with at least one service line
func (s *SandboxConnector) Submit(ctx context.Context, claim domain.Claim) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(claim.Lines) == 0 {
		return Result{}, &classify.StatusError{StatusCode: 400, Body: []byte(`{"error":"claim has no service lines"}`)}
	}

	sum := sha256.Sum256([]byte(s.submitterID + "|" + claim.ID))
	return Result{
		Success:    true,
		ExternalID: "SBX-" + strings.ToUpper(hex.EncodeToString(sum[:6])),
		Status:     domain.ClaimStatusSubmitted,
	}, nil
}

// PollStatus reports every submitted sandbox claim as accepted
func (s *SandboxConnector) PollStatus(ctx context.Context, claim domain.Claim) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if claim.ExternalID == "" {
		return Result{}, classify.New(classify.KindValidation, "claim has no external id to poll", nil)
	}

	status := claim.Status
	if status == domain.ClaimStatusSubmitted {
		status = domain.ClaimStatusAccepted
	}
	return Result{Success: true, ExternalID: claim.ExternalID, Status: status}, nil
}

var _ Connector = (*SandboxConnector)(nil)
