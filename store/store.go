// Package store defines the composite Store interface for all Fanout
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all, so backends implement one flat type while callers
// depend only on the slice they need.
package store

import (
	"context"

	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/webhook"
)

// Store is the aggregate persistence interface.
type Store interface {
	catalog.Store
	webhook.Store
	integration.Store
	event.Store
	delivery.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
