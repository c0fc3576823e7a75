package rail

import (
	"context"
	"fmt"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
)

// StaticStore serves credentials declared in the process configuration
type StaticStore struct {
	entries map[string]Credentials
}

// NewStaticStore indexes credentials by organization and rail
func NewStaticStore(creds []Credentials) *StaticStore {
	entries := make(map[string]Credentials, len(creds))
	for _, c := range creds {
		entries[staticKey(c.OrganizationID, c.Rail)] = c
	}
	return &StaticStore{entries: entries}
}

// GetRailCredentials implements CredentialStore. An entry with an empty
// organization id applies to every organization.
func (s *StaticStore) GetRailCredentials(_ context.Context, organizationID string, rail ID) (Credentials, error) {
	if c, ok := s.entries[staticKey(organizationID, rail)]; ok {
		return c, nil
	}
	if c, ok := s.entries[staticKey("", rail)]; ok {
		c.OrganizationID = organizationID
		return c, nil
	}
	return Credentials{}, fmt.Errorf("%w: organization %s, rail %s", domain.ErrCredentialsNotFound, organizationID, rail)
}

// Len returns the number of configured entries
func (s *StaticStore) Len() int {
	return len(s.entries)
}

func staticKey(organizationID string, rail ID) string {
	return organizationID + "/" + string(rail)
}
