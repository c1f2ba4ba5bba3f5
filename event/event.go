package event

import (
	"time"

	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// Event records one occurrence of a domain event submitted for fan-out.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Type is the dot-separated event type name (e.g. "task.created").
	Type string `json:"type"`

	// Data is the domain payload as handed to TriggerEvent.
	Data map[string]any `json:"data"`

	// Metadata carries caller-supplied context (request IDs, actor, …).
	Metadata map[string]any `json:"metadata,omitempty"`

	// IdempotencyKey prevents duplicate event processing when set.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   string
	From   *time.Time
	To     *time.Time
}
