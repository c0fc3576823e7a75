package rail

import (
	"context"
	"errors"
	"testing"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Resolve(t *testing.T) {
	store := NewStaticStore([]Credentials{
		{OrganizationID: "org-1", Rail: Clearinghouse, BaseURL: "https://sandbox.ch.example", APIKey: "key"},
		{OrganizationID: "org-1", Rail: Portal, BaseURL: "https://sandbox.portal.example"},
		{Rail: Sandbox, SubmitterID: "SUB"},
	})
	client := loopbackGate(t)
	f := NewFactory(store, client, discardLogger())

	tests := []struct {
		name    string
		org     string
		rail    string
		wantErr error
	}{
		{name: "clearinghouse", org: "org-1", rail: "clearinghouse"},
		{name: "sandbox wildcard org", org: "org-9", rail: "sandbox"},
		{name: "unknown rail", org: "org-1", rail: "fax", wantErr: domain.ErrUnknownRail},
		{name: "missing credentials", org: "org-2", rail: "clearinghouse", wantErr: domain.ErrCredentialsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := f.Resolve(context.Background(), tt.org, tt.rail)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ID(tt.rail), conn.Rail())
		})
	}

	t.Run("builder validation error", func(t *testing.T) {
		_, err := f.Resolve(context.Background(), "org-1", "portal")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.Contains(t, err.Error(), "username and password are required")
	})
}

func TestFactory_BuildersReceiveGatedClient(t *testing.T) {
	client := loopbackGate(t)
	f := NewFactory(NewStaticStore([]Credentials{{Rail: "custom"}}), client, discardLogger())

	var got *gate.Client
	f.Register("custom", func(_ Credentials, c *gate.Client) (Connector, error) {
		got = c
		return &SandboxConnector{}, nil
	})

	assert.True(t, f.Supports("custom"))
	assert.False(t, f.Supports("fax"))

	_, err := f.Resolve(context.Background(), "org-1", "custom")
	require.NoError(t, err)
	assert.Same(t, client, got)
}

func TestFactory_StoreErrorPropagates(t *testing.T) {
	f := NewFactory(failingStore{}, loopbackGate(t), discardLogger())
	_, err := f.Resolve(context.Background(), "org-1", "sandbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type failingStore struct{}

func (failingStore) GetRailCredentials(context.Context, string, ID) (Credentials, error) {
	return Credentials{}, errors.New("db down")
}
