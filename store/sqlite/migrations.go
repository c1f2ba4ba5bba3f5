package sqlite

import (
	"context"
	"fmt"

	fanout "github.com/fanouthq/fanout"
)

// Schema DDL. Statements are idempotent; Migrate applies them in order.
// Timestamps used in range scans are stored as unix nanoseconds (INTEGER)
// so index comparisons stay correct.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS fanout_event_types (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    group_name      TEXT NOT NULL DEFAULT '',
    schema          TEXT,
    schema_version  TEXT NOT NULL DEFAULT '',
    example         TEXT,
    is_deprecated   INTEGER NOT NULL DEFAULT 0,
    deprecated_at   INTEGER,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_event_types_group ON fanout_event_types (group_name)`,

	`CREATE TABLE IF NOT EXISTS fanout_webhooks (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    secret       TEXT NOT NULL DEFAULT '',
    events       TEXT NOT NULL DEFAULT '[]',
    headers      TEXT NOT NULL DEFAULT '{}',
    active       INTEGER NOT NULL DEFAULT 1,
    retry_policy TEXT NOT NULL DEFAULT '{}',
    filters      TEXT,
    rate_limit   INTEGER NOT NULL DEFAULT 0,
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_webhooks_owner ON fanout_webhooks (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_webhooks_active ON fanout_webhooks (active)`,

	`CREATE TABLE IF NOT EXISTS fanout_integrations (
    id             TEXT PRIMARY KEY,
    kind           TEXT NOT NULL DEFAULT '',
    owner_id       TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    config         TEXT NOT NULL DEFAULT '{}',
    event_mappings TEXT NOT NULL DEFAULT '[]',
    active         INTEGER NOT NULL DEFAULT 1,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_integrations_owner ON fanout_integrations (owner_id)`,

	`CREATE TABLE IF NOT EXISTS fanout_events (
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL DEFAULT '',
    data            TEXT,
    metadata        TEXT,
    idempotency_key TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_events_type ON fanout_events (type)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_events_created ON fanout_events (created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_fanout_events_idempotency
        ON fanout_events (idempotency_key) WHERE idempotency_key != ''`,

	`CREATE TABLE IF NOT EXISTS fanout_deliveries (
    id               TEXT PRIMARY KEY,
    webhook_id       TEXT NOT NULL DEFAULT '',
    event_id         TEXT NOT NULL DEFAULT '',
    event_type       TEXT NOT NULL DEFAULT '',
    payload          TEXT,
    attempts         TEXT NOT NULL DEFAULT '[]',
    state            TEXT NOT NULL DEFAULT 'pending',
    max_attempts     INTEGER NOT NULL DEFAULT 0,
    next_attempt_at  INTEGER NOT NULL DEFAULT 0,
    last_error       TEXT NOT NULL DEFAULT '',
    last_status_code INTEGER NOT NULL DEFAULT 0,
    delivered_at     INTEGER,
    completed_at     INTEGER,
    claimed_until    INTEGER,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_deliveries_pending
        ON fanout_deliveries (next_attempt_at) WHERE state = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_deliveries_webhook ON fanout_deliveries (webhook_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_deliveries_event ON fanout_deliveries (event_id)`,

	`CREATE TABLE IF NOT EXISTS fanout_dlq (
    id               TEXT PRIMARY KEY,
    delivery_id      TEXT NOT NULL DEFAULT '',
    event_id         TEXT NOT NULL DEFAULT '',
    webhook_id       TEXT NOT NULL DEFAULT '',
    event_type       TEXT NOT NULL DEFAULT '',
    owner_id         TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    payload          TEXT,
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INTEGER NOT NULL DEFAULT 0,
    last_status_code INTEGER NOT NULL DEFAULT 0,
    replayed_at      INTEGER,
    failed_at        INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_dlq_owner ON fanout_dlq (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_dlq_webhook ON fanout_dlq (webhook_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fanout_dlq_failed ON fanout_dlq (failed_at)`,
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", fanout.ErrMigrationFailed, err)
		}
	}
	return nil
}
