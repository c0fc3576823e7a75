package domain

import "time"

// Claim is the generic claim representation handed to rail connectors.
// Claims are owned by the persistence collaborator; the pipeline only reads
// them and applies ClaimUpdate values.
type Claim struct {
	ID               string        `json:"claim_id" db:"claim_id"`
	OrganizationID   string        `json:"organization_id" db:"organization_id"`
	PatientID        string        `json:"patient_id" db:"patient_id"`
	ProviderNPI      string        `json:"provider_npi" db:"provider_npi"`
	PayerID          string        `json:"payer_id" db:"payer_id"`
	Status           ClaimStatus   `json:"status" db:"status"`
	ExternalID       string        `json:"external_id,omitempty" db:"external_id"`
	TotalChargeCents int64         `json:"total_charge_cents" db:"total_charge_cents"`
	ServiceDate      time.Time     `json:"service_date" db:"service_date"`
	DiagnosisCodes   []string      `json:"diagnosis_codes" db:"-"`
	Lines            []ServiceLine `json:"lines" db:"-"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty" db:"submitted_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// ServiceLine is a single billed procedure on a claim
type ServiceLine struct {
	ProcedureCode string `json:"procedure_code"`
	Modifier      string `json:"modifier,omitempty"`
	Units         int    `json:"units"`
	ChargeCents   int64  `json:"charge_cents"`
}

// ClaimUpdate carries the fields to change on a claim; nil fields are left untouched
type ClaimUpdate struct {
	Status      *ClaimStatus
	ExternalID  *string
	SubmittedAt *time.Time
}

// IsEmpty reports whether the update changes nothing
func (u ClaimUpdate) IsEmpty() bool {
	return u.Status == nil && u.ExternalID == nil && u.SubmittedAt == nil
}
