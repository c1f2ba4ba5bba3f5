package fanout

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/notify"
	"github.com/fanouthq/fanout/observability"
	"github.com/fanouthq/fanout/retention"
	"github.com/fanouthq/fanout/store"
	"github.com/fanouthq/fanout/webhook"
)

// Fanout is the root webhook delivery engine.
type Fanout struct {
	config         Config
	store          store.Store
	catalog        *catalog.Catalog
	validator      *catalog.Validator
	webhookSvc     *webhook.Service
	integrationSvc *integration.Service
	engine         *delivery.Engine
	dlqSvc         *dlq.Service
	notifier       *notify.Notifier
	janitor        *retention.Janitor
	metrics        *observability.Metrics
	tracer         *observability.Tracer
	logger         *slog.Logger
}

// Option configures a Fanout instance.
type Option func(*Fanout) error

// New creates a new Fanout with the given options.
func New(opts ...Option) (*Fanout, error) {
	f := &Fanout{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	if f.store == nil {
		return nil, ErrNoStore
	}
	f.wireServices()
	return f, nil
}

// WithStore sets the persistence backend for the Fanout instance.
func WithStore(s store.Store) Option {
	return func(f *Fanout) error {
		f.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Fanout instance.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) error {
		f.logger = logger
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation, registering the collectors
// on the given registerer. Pass nil to use the default registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(f *Fanout) error {
		f.metrics = observability.NewMetrics(reg)
		return nil
	}
}

// WithTracing enables OpenTelemetry spans around delivery attempts, using the
// globally configured tracer provider.
func WithTracing() Option {
	return func(f *Fanout) error {
		f.tracer = observability.NewTracer()
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(f *Fanout) error {
		f.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the delivery engine checks for due deliveries.
func WithPollInterval(d time.Duration) Option {
	return func(f *Fanout) error {
		f.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(f *Fanout) error {
		f.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(f *Fanout) error {
		f.config.RequestTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight deliveries on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(f *Fanout) error {
		f.config.ShutdownTimeout = d
		return nil
	}
}

// WithCacheTTL sets the TTL for the catalog's in-memory event type cache.
func WithCacheTTL(d time.Duration) Option {
	return func(f *Fanout) error {
		f.config.CacheTTL = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent on every delivery request.
func WithUserAgent(ua string) Option {
	return func(f *Fanout) error {
		f.config.UserAgent = ua
		return nil
	}
}

// WithAppName sets the application name shown in notification footers.
func WithAppName(name string) Option {
	return func(f *Fanout) error {
		f.config.AppName = name
		return nil
	}
}

// WithMaxResponseBytes caps how much of a webhook response body is recorded
// per attempt.
func WithMaxResponseBytes(n int64) Option {
	return func(f *Fanout) error {
		f.config.MaxResponseBytes = n
		return nil
	}
}

// WithRetention enables the retention janitor: terminal deliveries and DLQ
// entries older than maxAge are purged on the given cron schedule.
func WithRetention(schedule string, maxAge time.Duration) Option {
	return func(f *Fanout) error {
		f.config.RetentionSchedule = schedule
		f.config.RetentionAge = maxAge
		return nil
	}
}
