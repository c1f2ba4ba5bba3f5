package webhook

// Input is the creation/update payload for webhooks. On update, zero-value
// fields are left unchanged (partial merge).
type Input struct {
	// OwnerID identifies the user creating this webhook.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery target.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Auto-generated if empty on create.
	Secret string `json:"secret"`

	// Events are subscription patterns ("task.created", "invoice.*", "*").
	Events []string `json:"events"`

	// Headers are custom HTTP headers merged into every delivery request.
	Headers map[string]string `json:"headers,omitempty"`

	// Active gates delivery. Nil defaults to true on create.
	Active *bool `json:"active,omitempty"`

	// RetryPolicy overrides the default attempt/backoff behavior.
	RetryPolicy *RetryPolicy `json:"retry_policy,omitempty"`

	// Filters are optional payload-level allow-lists.
	Filters *Filters `json:"filters,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	// Nil on update leaves the current limit unchanged.
	RateLimit *int `json:"rate_limit,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}
