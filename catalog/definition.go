package catalog

import "encoding/json"

// Definition is the canonical description of a domain event type. Definitions
// are optional: events with unregistered types flow through unvalidated, but a
// registered definition documents the payload shape and, when a schema is set,
// enforces it at trigger time.
type Definition struct {
	// Name is the dot-separated event type name.
	// Convention: "<resource>.<action>" — e.g. "task.created", "invoice.paid".
	Name string `json:"name"`

	// Description is a human-readable explanation of when this event fires.
	Description string `json:"description"`

	// Group is an optional category for organizing event types in docs/UI.
	Group string `json:"group,omitempty"`

	// Schema is an optional JSON Schema describing the payload shape.
	// When set, TriggerEvent validates the payload against this schema.
	Schema json.RawMessage `json:"schema,omitempty"`

	// SchemaVersion tracks changes to the Schema itself.
	SchemaVersion string `json:"schema_version,omitempty"`

	// Example is an optional example payload for documentation and testing.
	Example json.RawMessage `json:"example,omitempty"`
}
