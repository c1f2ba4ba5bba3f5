package delivery

import (
	"context"
	"time"

	"github.com/fanouthq/fanout/id"
)

// Store defines the persistence contract for webhook deliveries.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// EnqueueBatch creates multiple deliveries atomically (fan-out).
	EnqueueBatch(ctx context.Context, ds []*Delivery) error

	// Dequeue fetches pending deliveries ready for attempt (concurrent-safe).
	// Implementations must ensure no double-delivery (e.g. SKIP LOCKED).
	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)

	// UpdateDelivery modifies a delivery (state, attempts, next_attempt_at, etc.).
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListByWebhook returns delivery history for a webhook, newest first.
	// The Nil ID lists history across all webhooks.
	ListByWebhook(ctx context.Context, whID id.ID, opts ListOpts) ([]*Delivery, error)

	// ListByEvent returns all deliveries for a specific event.
	ListByEvent(ctx context.Context, evtID id.ID) ([]*Delivery, error)

	// CountPending returns the number of deliveries awaiting attempt.
	CountPending(ctx context.Context) (int64, error)

	// DeliveryStats aggregates delivery outcomes for a webhook.
	// The Nil ID aggregates across all webhooks.
	DeliveryStats(ctx context.Context, whID id.ID) (*Stats, error)

	// PurgeDeliveries deletes terminal deliveries completed before a
	// threshold. Pending deliveries are never purged.
	PurgeDeliveries(ctx context.Context, before time.Time) (int64, error)
}
