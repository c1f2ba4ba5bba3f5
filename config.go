package fanout

import "time"

// Config holds the configuration for a Fanout instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the delivery engine checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries dequeued per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries on shutdown.
	ShutdownTimeout time.Duration

	// CacheTTL is the TTL for the catalog's in-memory event type cache.
	// Set to 0 to disable caching.
	CacheTTL time.Duration

	// UserAgent is sent on every delivery request.
	UserAgent string

	// AppName appears in notification footers.
	AppName string

	// MaxResponseBytes caps how much of a webhook response body is recorded
	// per attempt.
	MaxResponseBytes int64

	// RetentionAge is how long terminal deliveries and DLQ entries are kept.
	RetentionAge time.Duration

	// RetentionSchedule is the cron expression for the retention janitor.
	// Empty disables scheduled purging.
	RetentionSchedule string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		PollInterval:      5 * time.Second,
		BatchSize:         50,
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		CacheTTL:          30 * time.Second,
		UserAgent:         "Fanout-Webhook/1.0",
		AppName:           "Fanout",
		MaxResponseBytes:  4096,
		RetentionAge:      30 * 24 * time.Hour,
		RetentionSchedule: "",
	}
}
