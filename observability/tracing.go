package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fanouthq/fanout"

// Tracer provides OpenTelemetry tracing for the delivery pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, eventID, webhookID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "fanout.delivery",
		trace.WithAttributes(
			attribute.String("fanout.delivery_id", deliveryID),
			attribute.String("fanout.event_id", eventID),
			attribute.String("fanout.webhook_id", webhookID),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode int, durationMs int64, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("fanout.duration_ms", durationMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("fanout.error", err))
	}
	span.End()
}
