package rail

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// ClearinghouseConnector talks to an EDI clearinghouse exposing an 837-style JSON API
type ClearinghouseConnector struct {
	creds  Credentials
	client *gate.Client
}

// NewClearinghouseConnector implements Builder
func NewClearinghouseConnector(creds Credentials, client *gate.Client) (Connector, error) {
	if creds.BaseURL == "" {
		return nil, errors.New("clearinghouse base_url is required")
	}
	if creds.APIKey == "" {
		return nil, errors.New("clearinghouse api_key is required")
	}
	return &ClearinghouseConnector{creds: creds, client: client}, nil
}

type clearinghouseLine struct {
	ProcedureCode string `json:"procedure_code"`
	Modifier      string `json:"modifier,omitempty"`
	Units         int    `json:"units"`
	ChargeCents   int64  `json:"charge_cents"`
}

type clearinghouseSubmission struct {
	SubmitterID        string              `json:"submitter_id"`
	ClaimControlNumber string              `json:"claim_control_number"`
	PayerID            string              `json:"payer_id"`
	BillingProviderNPI string              `json:"billing_provider_npi"`
	PatientID          string              `json:"patient_id"`
	ServiceDate        string              `json:"service_date"`
	TotalChargeCents   int64               `json:"total_charge_cents"`
	DiagnosisCodes     []string            `json:"diagnosis_codes"`
	ServiceLines       []clearinghouseLine `json:"service_lines"`
}

type clearinghouseResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Rail implements Connector
func (c *ClearinghouseConnector) Rail() ID {
	return Clearinghouse
}

// Submit implements Connector
func (c *ClearinghouseConnector) Submit(ctx context.Context, claim domain.Claim) (Result, error) {
	endpoint, err := joinURL(c.creds.BaseURL, "v1", "claims")
	if err != nil {
		return Result{}, err
	}

	lines := make([]clearinghouseLine, len(claim.Lines))
	for i, l := range claim.Lines {
		lines[i] = clearinghouseLine(l)
	}

	body := clearinghouseSubmission{
		SubmitterID:        c.creds.SubmitterID,
		ClaimControlNumber: claim.ID,
		PayerID:            claim.PayerID,
		BillingProviderNPI: claim.ProviderNPI,
		PatientID:          claim.PatientID,
		ServiceDate:        claim.ServiceDate.Format("2006-01-02"),
		TotalChargeCents:   claim.TotalChargeCents,
		DiagnosisCodes:     claim.DiagnosisCodes,
		ServiceLines:       lines,
	}

	ctx, cancel := context.WithTimeout(ctx, c.creds.timeout())
	defer cancel()

	var resp clearinghouseResponse
	if err := exchange(ctx, c.client, http.MethodPost, endpoint, body, c.authorize, &resp); err != nil {
		return Result{}, err
	}

	if resp.TransactionID == "" {
		return Result{}, classify.New(classify.KindUnknown, "clearinghouse response has no transaction_id", nil)
	}

	return Result{
		Success:    true,
		ExternalID: resp.TransactionID,
		Status:     clearinghouseStatus(resp.Status, domain.ClaimStatusSubmitted),
	}, nil
}

// PollStatus implements Connector
func (c *ClearinghouseConnector) PollStatus(ctx context.Context, claim domain.Claim) (Result, error) {
	if claim.ExternalID == "" {
		return Result{}, classify.New(classify.KindValidation, "claim has no external id to poll", nil)
	}

	endpoint, err := joinURL(c.creds.BaseURL, "v1", "claims", claim.ExternalID, "status")
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.creds.timeout())
	defer cancel()

	var resp clearinghouseResponse
	if err := exchange(ctx, c.client, http.MethodGet, endpoint, nil, c.authorize, &resp); err != nil {
		return Result{}, err
	}

	return Result{
		Success:    true,
		ExternalID: claim.ExternalID,
		Status:     clearinghouseStatus(resp.Status, claim.Status),
	}, nil
}

func (c *ClearinghouseConnector) authorize(req *http.Request) {
	req.Header.Set("X-API-Key", c.creds.APIKey)
	if c.creds.SubmitterID != "" {
		req.Header.Set("X-Submitter-ID", c.creds.SubmitterID)
	}
}

// clearinghouseStatus maps the clearinghouse vocabulary onto claim statuses
func clearinghouseStatus(s string, fallback domain.ClaimStatus) domain.ClaimStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "received", "queued", "forwarded":
		return domain.ClaimStatusSubmitted
	case "accepted":
		return domain.ClaimStatusAccepted
	case "rejected":
		return domain.ClaimStatusRejected
	case "paid":
		return domain.ClaimStatusPaid
	case "denied":
		return domain.ClaimStatusDenied
	default:
		return fallback
	}
}

var _ Connector = (*ClearinghouseConnector)(nil)
