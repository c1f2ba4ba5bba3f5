package webhook

import (
	"context"

	"github.com/fanouthq/fanout/id"
)

// Store defines the persistence contract for webhooks.
type Store interface {
	// CreateWebhook persists a new webhook.
	CreateWebhook(ctx context.Context, wh *Webhook) error

	// GetWebhook returns a webhook by ID.
	GetWebhook(ctx context.Context, whID id.ID) (*Webhook, error)

	// UpdateWebhook modifies an existing webhook.
	UpdateWebhook(ctx context.Context, wh *Webhook) error

	// DeleteWebhook removes a webhook. Delivery history is not cascaded.
	DeleteWebhook(ctx context.Context, whID id.ID) error

	// ListWebhooks returns webhooks, scoped to an owner when ownerID is
	// non-empty, optionally filtered.
	ListWebhooks(ctx context.Context, ownerID string, opts ListOpts) ([]*Webhook, error)

	// ResolveWebhooks finds all active webhooks whose subscription patterns
	// match an event type. This is the hot path, called on every TriggerEvent.
	ResolveWebhooks(ctx context.Context, eventType string) ([]*Webhook, error)

	// SetActive enables or disables a webhook without deleting it.
	SetActive(ctx context.Context, whID id.ID, active bool) error
}
