package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

const eventCols = `id, type, data, metadata, idempotency_key, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*event.Event, error) {
	var (
		idStr, typ, idemKey  string
		data, metadata       sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&idStr, &typ, &data, &metadata, &idemKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	evtID, err := id.ParseEventID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", idStr, err)
	}

	evt := &event.Event{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID:             evtID,
		Type:           typ,
		IdempotencyKey: idemKey,
	}
	if data.Valid {
		fromJSONText(data.String, &evt.Data)
	}
	if metadata.Valid {
		fromJSONText(metadata.String, &evt.Metadata)
	}
	return evt, nil
}

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fanout_events (`+eventCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID.String(), evt.Type, nullString(jsonText(evt.Data, "")),
		nullString(jsonText(evt.Metadata, "")), evt.IdempotencyKey,
		toNanos(evt.CreatedAt), toNanos(evt.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fanout.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("fanout/sqlite: create event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM fanout_events WHERE id = ?`, evtID.String())
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get event: %w", err)
	}
	return evt, nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	q := `SELECT ` + eventCols + ` FROM fanout_events WHERE 1=1`
	args := []any{}
	if opts.Type != "" {
		q += ` AND type = ?`
		args = append(args, opts.Type)
	}
	if opts.From != nil {
		q += ` AND created_at >= ?`
		args = append(args, toNanos(*opts.From))
	}
	if opts.To != nil {
		q += ` AND created_at <= ?`
		args = append(args, toNanos(*opts.To))
	}
	q += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			q += ` LIMIT -1`
		}
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: list events: %w", err)
	}
	defer rows.Close()

	var result []*event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
