package integration

import (
	"context"

	"github.com/fanouthq/fanout/id"
)

// Store defines the persistence contract for integrations.
type Store interface {
	// CreateIntegration persists a new integration.
	CreateIntegration(ctx context.Context, intg *Integration) error

	// GetIntegration returns an integration by ID.
	GetIntegration(ctx context.Context, intgID id.ID) (*Integration, error)

	// UpdateIntegration modifies an existing integration.
	UpdateIntegration(ctx context.Context, intg *Integration) error

	// DeleteIntegration removes an integration.
	DeleteIntegration(ctx context.Context, intgID id.ID) error

	// ListIntegrations returns integrations, scoped to an owner when ownerID
	// is non-empty, optionally filtered.
	ListIntegrations(ctx context.Context, ownerID string, opts ListOpts) ([]*Integration, error)

	// ResolveIntegrations finds all active integrations with an enabled
	// mapping for an event type.
	ResolveIntegrations(ctx context.Context, eventType string) ([]*Integration, error)

	// SetIntegrationActive enables or disables an integration without deleting it.
	SetIntegrationActive(ctx context.Context, intgID id.ID, active bool) error
}
