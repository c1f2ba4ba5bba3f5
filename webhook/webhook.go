package webhook

import (
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// Webhook is a registered subscription: an external HTTP endpoint that
// receives signed event notifications for the event types it subscribes to.
type Webhook struct {
	entity.Entity

	// ID is the unique TypeID for this webhook.
	ID id.ID `json:"id"`

	// OwnerID identifies the user that created this webhook.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label shown in delivery envelopes and audit views.
	Name string `json:"name"`

	// URL is the delivery target.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Never serialized.
	Secret string `json:"-"`

	// Events are dot-separated subscription patterns. Exact names
	// ("task.created") and single-segment wildcards ("invoice.*", "*")
	// are supported.
	Events []string `json:"events"`

	// Headers are custom HTTP headers merged into every delivery request.
	Headers map[string]string `json:"headers,omitempty"`

	// Active gates delivery. Inactive webhooks never receive deliveries.
	Active bool `json:"active"`

	// RetryPolicy controls attempt count and backoff for this webhook.
	RetryPolicy RetryPolicy `json:"retry_policy"`

	// Filters are optional payload-level allow-lists. Nil means no restriction.
	Filters *Filters `json:"filters,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for webhook listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}
