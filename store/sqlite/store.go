// Package sqlite implements store.Store on SQLite via database/sql and the
// pure-Go modernc.org/sqlite driver. Deliveries are dequeued with a
// claim-until timestamp so concurrent workers never double-deliver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	fanoutstore "github.com/fanouthq/fanout/store"
)

// compile-time interface check
var _ fanoutstore.Store = (*Store)(nil)

// claimTTL is how long a dequeued delivery stays invisible to other workers.
// Crashed workers release their claims when this expires.
const claimTTL = 5 * time.Minute

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store over an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a SQLite database at path and returns a store over
// it. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: open %q: %w", path, err)
	}
	// SQLite allows one writer at a time; serialize through a single conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("fanout/sqlite: pragma: %w", err)
	}
	return New(db), nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}
