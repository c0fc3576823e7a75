package rail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// Builder constructs a connector. It is handed the gated client and nothing else
// that can reach the network.
type Builder func(creds Credentials, client *gate.Client) (Connector, error)

// Factory resolves connectors per organization and rail
type Factory struct {
	store  CredentialStore
	client *gate.Client
	logger *slog.Logger

	mu       sync.RWMutex
	builders map[ID]Builder
}

// NewFactory creates a factory with the built-in rails registered
func NewFactory(store CredentialStore, client *gate.Client, logger *slog.Logger) *Factory {
	f := &Factory{
		store:    store,
		client:   client,
		logger:   logger,
		builders: make(map[ID]Builder),
	}

	f.Register(Clearinghouse, NewClearinghouseConnector)
	f.Register(Portal, NewPortalConnector)
	f.Register(Sandbox, NewSandboxConnector)

	return f
}

// Register adds or replaces the builder for a rail
func (f *Factory) Register(id ID, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[id] = b
}

// Supports reports whether a builder is registered for the rail
func (f *Factory) Supports(rail string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.builders[ID(rail)]
	return ok
}

// Resolve returns a connector bound to the organization's credentials for the rail
func (f *Factory) Resolve(ctx context.Context, organizationID, rail string) (Connector, error) {
	f.mu.RLock()
	build, ok := f.builders[ID(rail)]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRail, rail)
	}

	creds, err := f.store.GetRailCredentials(ctx, organizationID, ID(rail))
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials for rail %s: %w", rail, err)
	}

	conn, err := build(creds, f.client)
	if err != nil {
		return nil, fmt.Errorf("failed to build connector for rail %s: %w: %w", rail, domain.ErrInvalidCredentials, err)
	}

	f.logger.Debug("Rail connector resolved",
		slog.String("organization_id", organizationID),
		slog.String("rail", rail),
	)

	return conn, nil
}
