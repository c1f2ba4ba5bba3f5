// Package retention prunes old delivery records and dead letter entries on a
// cron schedule so the audit history does not grow without bound.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Store is the subset of the composite store the janitor needs.
type Store interface {
	PurgeDeliveries(ctx context.Context, before time.Time) (int64, error)
}

// DLQPurger deletes dead letter entries older than a threshold.
type DLQPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Config holds janitor configuration.
type Config struct {
	// Schedule is a cron expression (standard 5-field format).
	Schedule string

	// MaxAge is how long terminal deliveries and DLQ entries are kept.
	MaxAge time.Duration

	// Timeout bounds each purge run.
	Timeout time.Duration
}

// Janitor runs scheduled purges of terminal deliveries and DLQ entries.
type Janitor struct {
	store  Store
	dlq    DLQPurger
	config Config
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor creates a retention janitor. It does not start the schedule;
// call Start.
func NewJanitor(store Store, dlq DLQPurger, cfg Config, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Janitor{
		store:  store,
		dlq:    dlq,
		config: cfg,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the purge job and begins the cron scheduler.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.config.Timeout)
		defer cancel()
		j.Run(ctx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Run executes one purge pass immediately. It is also what the scheduler
// invokes on each tick.
func (j *Janitor) Run(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.config.MaxAge)

	purged, err := j.store.PurgeDeliveries(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "delivery purge failed", "error", err)
	} else if purged > 0 {
		j.logger.InfoContext(ctx, "purged terminal deliveries", "count", purged, "cutoff", cutoff)
	}

	if j.dlq == nil {
		return
	}
	purged, err = j.dlq.Purge(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "dlq purge failed", "error", err)
	} else if purged > 0 {
		j.logger.InfoContext(ctx, "purged dlq entries", "count", purged, "cutoff", cutoff)
	}
}
