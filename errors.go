package fanout

import "errors"

// Sentinel errors returned by Fanout operations.
var (
	// ErrNoStore is returned when a Fanout is created without a store.
	ErrNoStore = errors.New("fanout: store is required")

	// ErrWebhookNotFound is returned when a webhook cannot be found.
	ErrWebhookNotFound = errors.New("fanout: webhook not found")

	// ErrIntegrationNotFound is returned when an integration cannot be found.
	ErrIntegrationNotFound = errors.New("fanout: integration not found")

	// ErrEventTypeNotFound is returned when an event type is not registered in the catalog.
	ErrEventTypeNotFound = errors.New("fanout: event type not found")

	// ErrEventTypeDeprecated is returned when triggering an event with a deprecated type.
	ErrEventTypeDeprecated = errors.New("fanout: event type is deprecated")

	// ErrPayloadValidationFailed is returned when event data fails JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("fanout: payload validation failed")

	// ErrDuplicateIdempotencyKey is returned when an event with the same idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("fanout: duplicate idempotency key")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("fanout: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("fanout: migration failed")

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = errors.New("fanout: dlq entry not found")

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errors.New("fanout: delivery not found")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("fanout: event not found")
)
