package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/notify"
	"github.com/fanouthq/fanout/retention"
	"github.com/fanouthq/fanout/store"
	"github.com/fanouthq/fanout/webhook"
)

// wireServices initializes the internal services after options have been applied.
func (f *Fanout) wireServices() {
	f.catalog = catalog.NewCatalog(f.store, catalog.Config{
		CacheTTL: f.config.CacheTTL,
	}, f.logger)

	f.validator = catalog.NewValidator()

	f.webhookSvc = webhook.NewService(f.store, f.logger)

	f.integrationSvc = integration.NewService(f.store, f.logger)

	f.dlqSvc = dlq.NewService(f.store, f.logger)

	f.notifier = notify.NewNotifier(f.config.RequestTimeout, f.config.AppName, f.metrics, f.logger)

	f.engine = delivery.NewEngine(f.store, f.dlqSvc, delivery.EngineConfig{
		Concurrency:    f.config.Concurrency,
		PollInterval:   f.config.PollInterval,
		BatchSize:      f.config.BatchSize,
		RequestTimeout: f.config.RequestTimeout,
		UserAgent:      f.config.UserAgent,
		MaxResponseLen: f.config.MaxResponseBytes,
		Metrics:        f.metrics,
		Tracer:         f.tracer,
	}, f.logger)

	if f.config.RetentionSchedule != "" {
		f.janitor = retention.NewJanitor(f.store, f.dlqSvc, retention.Config{
			Schedule: f.config.RetentionSchedule,
			MaxAge:   f.config.RetentionAge,
		}, f.logger)
	}
}

// Start begins the delivery engine and, if configured, the retention janitor.
func (f *Fanout) Start(ctx context.Context) error {
	f.engine.Start(ctx)
	if f.janitor != nil {
		if err := f.janitor.Start(); err != nil {
			f.engine.Stop(ctx)
			return fmt.Errorf("fanout: start retention janitor: %w", err)
		}
	}
	return nil
}

// Stop gracefully shuts down the delivery engine and retention janitor.
func (f *Fanout) Stop(ctx context.Context) {
	if f.janitor != nil {
		f.janitor.Stop()
	}
	f.engine.Stop(ctx)
}

// RegisterEventType registers an event type definition in the catalog.
func (f *Fanout) RegisterEventType(ctx context.Context, def catalog.Definition, opts ...catalog.RegisterOption) (*catalog.EventType, error) {
	return f.catalog.RegisterType(ctx, def, opts...)
}

// TriggerEvent validates and persists an event, then fans out deliveries to
// matching webhooks and fires chat-platform notifications.
//
// The critical path:
//  1. Look up the event type in the catalog. Unregistered types pass through
//     unvalidated; registered types must not be deprecated and, when a schema
//     is set, the payload must validate against it.
//  2. Persist the event (idempotency key dedup is handled here).
//  3. Resolve matching webhooks and apply their payload filters.
//  4. Snapshot one envelope per webhook and enqueue the deliveries.
//  5. Wake the delivery engine.
//  6. Dispatch integration notifications, best effort.
func (f *Fanout) TriggerEvent(ctx context.Context, evt *event.Event) error {
	et, err := f.catalog.GetType(ctx, evt.Type)
	switch {
	case errors.Is(err, ErrEventTypeNotFound):
		// Unregistered event types flow through without validation.
	case err != nil:
		return fmt.Errorf("fanout: look up event type: %w", err)
	case et.IsDeprecated:
		return fmt.Errorf("%w: %s", ErrEventTypeDeprecated, evt.Type)
	case len(et.Definition.Schema) > 0:
		if vErr := f.validator.Validate(et.Definition.Schema, evt.Data); vErr != nil {
			return fmt.Errorf("%w: %s", ErrPayloadValidationFailed, vErr.Error())
		}
	}

	evt.Entity = entity.New()
	evt.ID = id.NewEventID()

	// Persist the event. Idempotency key conflicts return a no-op success.
	if createErr := f.store.CreateEvent(ctx, evt); createErr != nil {
		if errors.Is(createErr, ErrDuplicateIdempotencyKey) {
			return nil // idempotent: already processed
		}
		return fmt.Errorf("fanout: persist event: %w", createErr)
	}

	webhooks, err := f.store.ResolveWebhooks(ctx, evt.Type)
	if err != nil {
		return fmt.Errorf("fanout: resolve webhooks: %w", err)
	}

	now := time.Now().UTC()
	deliveries := make([]*delivery.Delivery, 0, len(webhooks))
	for _, wh := range webhooks {
		if !wh.Filters.Allow(evt.Data) {
			continue
		}

		payload, envErr := delivery.NewEnvelope(evt.Type, evt.Data, evt.Metadata, wh.ID, wh.Name)
		if envErr != nil {
			return fmt.Errorf("fanout: build envelope: %w", envErr)
		}

		policy := wh.RetryPolicy
		if policy.IsZero() {
			policy = webhook.DefaultRetryPolicy()
		}

		deliveries = append(deliveries, &delivery.Delivery{
			Entity:        entity.New(),
			ID:            id.NewDeliveryID(),
			WebhookID:     wh.ID,
			EventID:       evt.ID,
			EventType:     evt.Type,
			Payload:       payload,
			State:         delivery.StatePending,
			MaxAttempts:   policy.MaxRetries,
			NextAttemptAt: now,
		})
	}

	if len(deliveries) > 0 {
		if err := f.store.EnqueueBatch(ctx, deliveries); err != nil {
			return fmt.Errorf("fanout: enqueue deliveries: %w", err)
		}
		f.engine.Wake()
	}

	if f.metrics != nil {
		f.metrics.EventsSentTotal.Inc()
		f.metrics.PendingDeliveries.Add(float64(len(deliveries)))
	}

	f.logger.DebugContext(ctx, "event triggered",
		"event_id", evt.ID,
		"type", evt.Type,
		"webhooks", len(deliveries),
	)

	f.notifyIntegrations(ctx, evt)

	return nil
}

// notifyIntegrations sends chat-platform notifications for the event.
// Failures are logged, never surfaced to the caller: notifications are
// best effort and must not block webhook fan-out.
func (f *Fanout) notifyIntegrations(ctx context.Context, evt *event.Event) {
	integrations, err := f.store.ResolveIntegrations(ctx, evt.Type)
	if err != nil {
		f.logger.ErrorContext(ctx, "resolve integrations failed", "type", evt.Type, "error", err)
		return
	}

	for _, intg := range integrations {
		if err := f.notifier.Send(ctx, intg, evt.Type, evt.Data); err != nil {
			f.logger.WarnContext(ctx, "integration notification failed",
				"integration_id", intg.ID,
				"kind", intg.Kind,
				"type", evt.Type,
				"error", err,
			)
		}
	}
}

// Webhooks returns the webhook management service.
func (f *Fanout) Webhooks() *webhook.Service {
	return f.webhookSvc
}

// Integrations returns the integration management service.
func (f *Fanout) Integrations() *integration.Service {
	return f.integrationSvc
}

// Catalog returns the event type catalog.
func (f *Fanout) Catalog() *catalog.Catalog {
	return f.catalog
}

// Store returns the underlying store.
func (f *Fanout) Store() store.Store {
	return f.store
}

// DLQ returns the DLQ service.
func (f *Fanout) DLQ() *dlq.Service {
	return f.dlqSvc
}
