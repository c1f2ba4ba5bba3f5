package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/observability"
	"github.com/fanouthq/fanout/ratelimit"
	"github.com/fanouthq/fanout/webhook"
)

// EngineStore is the interface the engine needs for delivery operations.
type EngineStore interface {
	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
	GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error)
}

// DLQPusher pushes permanently failed deliveries to the dead letter queue.
type DLQPusher interface {
	PushFailed(ctx context.Context, d *Delivery, wh *webhook.Webhook, lastError string, lastStatusCode int) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	UserAgent      string
	MaxResponseLen int64
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine is the delivery worker pool that dequeues and processes deliveries.
type Engine struct {
	store   EngineStore
	sender  *Sender
	retrier *Retrier
	dlq     DLQPusher
	limiter *ratelimit.Limiter
	config  EngineConfig
	logger  *slog.Logger

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, dlq DLQPusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		sender:  NewSender(cfg.RequestTimeout, cfg.UserAgent, cfg.MaxResponseLen),
		retrier: NewRetrier(),
		dlq:     dlq,
		limiter: ratelimit.New(),
		config:  cfg,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Start begins the delivery workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Wake nudges the poll loop to drain the queue immediately instead of
// waiting out the poll interval. Called after events are enqueued.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// pollLoop periodically dequeues pending deliveries and dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.wake:
		}

		batch, err := e.store.Dequeue(ctx, e.config.BatchSize)
		if err != nil {
			e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
			continue
		}

		for _, d := range batch {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}

			e.wg.Add(1)
			go func(del *Delivery) {
				defer e.wg.Done()
				defer func() { <-sem }()
				e.process(ctx, del)
			}(d)
		}
	}
}

// process handles a single delivery attempt: fetch webhook, send, decide, update.
func (e *Engine) process(ctx context.Context, d *Delivery) {
	// Start a tracing span for this delivery attempt.
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.EventID.String(), d.WebhookID.String())
	}

	wh, err := e.store.GetWebhook(ctx, d.WebhookID)
	if err != nil {
		// Webhook deleted after enqueue. The delivery cannot ever succeed,
		// so mark it failed rather than leaving it to spin on the queue.
		e.logger.WarnContext(ctx, "get webhook failed, abandoning delivery",
			"delivery_id", d.ID, "webhook_id", d.WebhookID, "error", err)
		now := time.Now().UTC()
		d.State = StateFailed
		d.LastError = "webhook not found: " + err.Error()
		d.CompletedAt = &now
		d.Touch()
		if updateErr := e.store.UpdateDelivery(ctx, d); updateErr != nil {
			e.logger.ErrorContext(ctx, "update delivery failed",
				"delivery_id", d.ID, "error", updateErr)
		}
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, d.LastError)
		}
		return
	}

	// Honor the webhook's requests-per-second cap before sending. A wait
	// aborted by shutdown pushes the untouched delivery back so the dequeue
	// claim is released and another worker can pick it up.
	if waitErr := e.limiter.Wait(ctx, wh.ID.String(), wh.RateLimit); waitErr != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if updateErr := e.store.UpdateDelivery(pushCtx, d); updateErr != nil {
			e.logger.ErrorContext(pushCtx, "push back throttled delivery failed",
				"delivery_id", d.ID, "error", updateErr)
		}
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, "throttled, requeued")
		}
		return
	}

	result := e.sender.Send(ctx, wh, d)

	// Record the attempt on the delivery's audit trail.
	attempt := Attempt{
		ID:         id.NewAttemptID(),
		Number:     d.AttemptCount() + 1,
		Status:     AttemptFailed,
		StatusCode: result.StatusCode,
		Response:   result.Response,
		Error:      result.Error,
		Timestamp:  time.Now().UTC(),
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Success() {
		attempt.Status = AttemptSuccess
	}
	d.Attempts = append(d.Attempts, attempt)
	d.LastError = result.Error
	d.LastStatusCode = result.StatusCode
	d.Touch()

	latencySeconds := result.Duration.Seconds()

	switch e.retrier.Decide(result, d) {
	case Delivered:
		now := time.Now().UTC()
		d.State = StateDelivered
		d.DeliveredAt = &now
		d.CompletedAt = &now
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("delivered", latencySeconds)
			e.config.Metrics.PendingDeliveries.Dec()
		}
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID, "attempt", attempt.Number,
			"status", result.StatusCode, "duration_ms", attempt.DurationMs)

	case Retry:
		d.NextAttemptAt = e.retrier.NextAttemptAt(wh.RetryPolicy, attempt.Number)
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID, "attempt", attempt.Number, "next_at", d.NextAttemptAt)

	case Failed:
		now := time.Now().UTC()
		d.State = StateFailed
		d.CompletedAt = &now
		if e.dlq != nil {
			if dlqErr := e.dlq.PushFailed(ctx, d, wh, result.Error, result.StatusCode); dlqErr != nil {
				e.logger.ErrorContext(ctx, "push to DLQ failed",
					"delivery_id", d.ID, "error", dlqErr)
			}
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("failed", latencySeconds)
			e.config.Metrics.PendingDeliveries.Dec()
			e.config.Metrics.DLQSize.Inc()
		}
		e.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID, "webhook_id", d.WebhookID,
			"attempts", d.AttemptCount(), "status", result.StatusCode, "error", result.Error)
	}

	// End the tracing span with the final result.
	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, result.StatusCode, attempt.DurationMs, result.Error)
	}

	if updateErr := e.store.UpdateDelivery(ctx, d); updateErr != nil {
		e.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.ID, "error", updateErr)
	}
}
