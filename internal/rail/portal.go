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

// PortalConnector talks to a payer web-portal submission API
type PortalConnector struct {
	creds  Credentials
	client *gate.Client
}

// NewPortalConnector implements Builder
func NewPortalConnector(creds Credentials, client *gate.Client) (Connector, error) {
	if creds.BaseURL == "" {
		return nil, errors.New("portal base_url is required")
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("portal username and password are required")
	}
	return &PortalConnector{creds: creds, client: client}, nil
}

type portalLine struct {
	CPT     string `json:"cpt"`
	Mod     string `json:"mod,omitempty"`
	Units   int    `json:"units"`
	Charges int64  `json:"charges_cents"`
}

type portalSubmission struct {
	Payer        string       `json:"payer"`
	MemberRef    string       `json:"member_ref"`
	NPI          string       `json:"npi"`
	DOS          string       `json:"dos"`
	ChargesCents int64        `json:"charges_cents"`
	ICD10        []string     `json:"icd10"`
	Lines        []portalLine `json:"lines"`
	Reference    string       `json:"reference"`
}

type portalResponse struct {
	SubmissionID string `json:"submission_id"`
	State        string `json:"state"`
}

// Rail implements Connector
func (p *PortalConnector) Rail() ID {
	return Portal
}

// Submit implements Connector
func (p *PortalConnector) Submit(ctx context.Context, claim domain.Claim) (Result, error) {
	endpoint, err := joinURL(p.creds.BaseURL, "api", "submissions")
	if err != nil {
		return Result{}, err
	}

	lines := make([]portalLine, 0, len(claim.Lines))
	for _, l := range claim.Lines {
		lines = append(lines, portalLine{
			CPT:     l.ProcedureCode,
			Mod:     l.Modifier,
			Units:   l.Units,
			Charges: l.ChargeCents,
		})
	}

	body := portalSubmission{
		Payer:        claim.PayerID,
		MemberRef:    claim.PatientID,
		NPI:          claim.ProviderNPI,
		DOS:          claim.ServiceDate.Format("01/02/2006"),
		ChargesCents: claim.TotalChargeCents,
		ICD10:        claim.DiagnosisCodes,
		Lines:        lines,
		Reference:    claim.ID,
	}

	ctx, cancel := context.WithTimeout(ctx, p.creds.timeout())
	defer cancel()

	var resp portalResponse
	if err := exchange(ctx, p.client, http.MethodPost, endpoint, body, p.authorize, &resp); err != nil {
		return Result{}, err
	}

	if resp.SubmissionID == "" {
		return Result{}, classify.New(classify.KindUnknown, "portal response has no submission_id", nil)
	}

	status := portalStatus(resp.State, domain.ClaimStatusSubmitted)
	if status == domain.ClaimStatusRejected {
		// the portal acknowledges receipt even when it rejects at intake
		return Result{}, classify.New(classify.KindPayerReject, "portal rejected submission at intake", map[string]any{
			"submission_id": resp.SubmissionID,
		})
	}

	return Result{
		Success:    true,
		ExternalID: resp.SubmissionID,
		Status:     status,
	}, nil
}

// PollStatus implements Connector
func (p *PortalConnector) PollStatus(ctx context.Context, claim domain.Claim) (Result, error) {
	if claim.ExternalID == "" {
		return Result{}, classify.New(classify.KindValidation, "claim has no external id to poll", nil)
	}

	endpoint, err := joinURL(p.creds.BaseURL, "api", "submissions", claim.ExternalID)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.creds.timeout())
	defer cancel()

	var resp portalResponse
	if err := exchange(ctx, p.client, http.MethodGet, endpoint, nil, p.authorize, &resp); err != nil {
		return Result{}, err
	}

	return Result{
		Success:    true,
		ExternalID: claim.ExternalID,
		Status:     portalStatus(resp.State, claim.Status),
	}, nil
}

func (p *PortalConnector) authorize(req *http.Request) {
	req.SetBasicAuth(p.creds.Username, p.creds.Password)
}

func portalStatus(state string, fallback domain.ClaimStatus) domain.ClaimStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "PENDING", "IN_REVIEW":
		return domain.ClaimStatusSubmitted
	case "ACKNOWLEDGED":
		return domain.ClaimStatusAccepted
	case "REJECTED":
		return domain.ClaimStatusRejected
	case "ADJUDICATED_PAID":
		return domain.ClaimStatusPaid
	case "ADJUDICATED_DENIED":
		return domain.ClaimStatusDenied
	default:
		return fallback
	}
}

var _ Connector = (*PortalConnector)(nil)
