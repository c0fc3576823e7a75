// Package rail defines the uniform connector contract for external claim
// submission channels and the factory that binds connectors to an
// organization's credentials. Connectors only ever receive the gated HTTP
// client, so every network call they make passes the safety gate.
package rail

import (
	"context"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
)

// ID identifies a rail
type ID string

const (
	Clearinghouse ID = "clearinghouse"
	Portal        ID = "portal"
	Sandbox       ID = "sandbox"
)

// DefaultTimeout bounds a single connector call when credentials do not set one
const DefaultTimeout = 30 * time.Second

// Result is a connector response normalized across rails
type Result struct {
	Success    bool
	ExternalID string
	Status     domain.ClaimStatus
}

// Connector submits and polls claims on one rail
type Connector interface {
	Rail() ID
	Submit(ctx context.Context, claim domain.Claim) (Result, error)
	PollStatus(ctx context.Context, claim domain.Claim) (Result, error)
}

// Credentials binds a rail to one organization's account
type Credentials struct {
	OrganizationID string        `yaml:"organization_id" db:"organization_id"`
	Rail           ID            `yaml:"rail" db:"rail"`
	BaseURL        string        `yaml:"base_url" db:"base_url"`
	APIKey         string        `yaml:"api_key" db:"api_key"`
	Username       string        `yaml:"username" db:"username"`
	Password       string        `yaml:"password" db:"password"`
	SubmitterID    string        `yaml:"submitter_id" db:"submitter_id"`
	Timeout        time.Duration `yaml:"timeout" db:"-"`
}

func (c Credentials) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// CredentialStore is the configuration collaborator that looks up rail credentials
type CredentialStore interface {
	GetRailCredentials(ctx context.Context, organizationID string, rail ID) (Credentials, error)
}
