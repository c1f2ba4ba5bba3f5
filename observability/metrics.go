package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus instruments for the delivery pipeline.
type Metrics struct {
	EventsSentTotal    prometheus.Counter
	DeliveriesTotal    *prometheus.CounterVec
	DeliveryLatency    prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
	DLQSize            prometheus.Gauge
	PendingDeliveries  prometheus.Gauge
}

// NewMetrics creates and registers the instruments on the given registerer.
// Pass prometheus.DefaultRegisterer for standalone usage or a fresh
// prometheus.NewRegistry() when embedding.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fanout_events_sent_total",
			Help: "Total number of events accepted for dispatch",
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Total number of delivery attempts by outcome",
		}, []string{"status"}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fanout_delivery_latency_seconds",
			Help:    "Webhook delivery request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_notifications_total",
			Help: "Total number of integration notifications by kind and outcome",
		}, []string{"kind", "status"}),
		DLQSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fanout_dlq_size",
			Help: "Number of entries in the dead letter queue",
		}),
		PendingDeliveries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fanout_pending_deliveries",
			Help: "Number of deliveries awaiting attempt",
		}),
	}
}

// RecordDelivery records a delivery attempt outcome with its latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabelValues(status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordNotification records an integration notification outcome.
func (m *Metrics) RecordNotification(kind, status string) {
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
}
