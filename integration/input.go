package integration

// Input is the creation/update payload for integrations. On update,
// zero-value fields are left unchanged (partial merge).
type Input struct {
	// Kind identifies the target platform. Required on create.
	Kind Kind `json:"kind"`

	// OwnerID identifies the user creating this integration.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Config holds platform-specific connection settings.
	Config *Config `json:"config,omitempty"`

	// EventMappings bind event types to message templates.
	EventMappings []EventMapping `json:"event_mappings,omitempty"`

	// Active gates sends. Nil defaults to true on create.
	Active *bool `json:"active,omitempty"`
}
