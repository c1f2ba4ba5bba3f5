package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

const deliveryCols = `id, webhook_id, event_id, event_type, payload, attempts, state,
    max_attempts, next_attempt_at, last_error, last_status_code,
    delivered_at, completed_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (*delivery.Delivery, error) {
	var (
		idStr, whStr, evtStr, eventType, state, lastError string
		payload, attempts                                 sql.NullString
		maxAttempts, lastStatusCode                       int
		nextAttemptAt, createdAt, updatedAt               int64
		deliveredAt, completedAt                          sql.NullInt64
	)
	if err := row.Scan(&idStr, &whStr, &evtStr, &eventType, &payload, &attempts, &state,
		&maxAttempts, &nextAttemptAt, &lastError, &lastStatusCode,
		&deliveredAt, &completedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	delID, err := id.ParseDeliveryID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", idStr, err)
	}
	whID, err := id.ParseWebhookID(whStr)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", whStr, err)
	}
	evtID, err := id.ParseEventID(evtStr)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", evtStr, err)
	}

	d := &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID:             delID,
		WebhookID:      whID,
		EventID:        evtID,
		EventType:      eventType,
		State:          delivery.State(state),
		MaxAttempts:    maxAttempts,
		NextAttemptAt:  fromNanos(nextAttemptAt),
		LastError:      lastError,
		LastStatusCode: lastStatusCode,
		DeliveredAt:    fromNullNanos(deliveredAt),
		CompletedAt:    fromNullNanos(completedAt),
	}
	if payload.Valid && payload.String != "" {
		d.Payload = json.RawMessage(payload.String)
	}
	if attempts.Valid {
		fromJSONText(attempts.String, &d.Attempts)
	}
	return d, nil
}

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	return s.EnqueueBatch(ctx, []*delivery.Delivery{d})
}

func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fanout/sqlite: enqueue begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, d := range ds {
		_, err := tx.ExecContext(ctx, `
INSERT INTO fanout_deliveries (`+deliveryCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID.String(), d.WebhookID.String(), d.EventID.String(), d.EventType,
			nullString(string(d.Payload)), jsonText(d.Attempts, "[]"), string(d.State),
			d.MaxAttempts, toNanos(d.NextAttemptAt), d.LastError, d.LastStatusCode,
			toNullNanos(d.DeliveredAt), toNullNanos(d.CompletedAt),
			toNanos(d.CreatedAt), toNanos(d.UpdatedAt))
		if err != nil {
			return fmt.Errorf("fanout/sqlite: enqueue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fanout/sqlite: enqueue commit: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Delivery, error) {
	t := now()

	// Claim due deliveries by stamping claimed_until. The subselect plus
	// single-statement UPDATE is atomic under SQLite's writer lock, so two
	// workers never claim the same row. Claims from crashed workers expire.
	rows, err := s.db.QueryContext(ctx, `
UPDATE fanout_deliveries
SET claimed_until = ?, updated_at = ?
WHERE id IN (
    SELECT id FROM fanout_deliveries
    WHERE state = 'pending'
      AND next_attempt_at <= ?
      AND (claimed_until IS NULL OR claimed_until <= ?)
    ORDER BY next_attempt_at
    LIMIT ?
)
RETURNING `+deliveryCols,
		toNanos(t.Add(claimTTL)), toNanos(t), toNanos(t), toNanos(t), limit)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: dequeue: %w", err)
	}
	defer rows.Close()

	var result []*delivery.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	// Writing the outcome releases the dequeue claim.
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_deliveries SET
    payload = ?, attempts = ?, state = ?, max_attempts = ?, next_attempt_at = ?,
    last_error = ?, last_status_code = ?, delivered_at = ?, completed_at = ?,
    claimed_until = NULL, updated_at = ?
WHERE id = ?`,
		nullString(string(d.Payload)), jsonText(d.Attempts, "[]"), string(d.State),
		d.MaxAttempts, toNanos(d.NextAttemptAt), d.LastError, d.LastStatusCode,
		toNullNanos(d.DeliveredAt), toNullNanos(d.CompletedAt),
		toNanos(now()), d.ID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: update delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryCols+` FROM fanout_deliveries WHERE id = ?`, delID.String())
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get delivery: %w", err)
	}
	return d, nil
}

func (s *Store) ListByWebhook(ctx context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	q := `SELECT ` + deliveryCols + ` FROM fanout_deliveries WHERE 1=1`
	var args []any
	if !whID.IsNil() {
		q += ` AND webhook_id = ?`
		args = append(args, whID.String())
	}
	if opts.State != nil {
		q += ` AND state = ?`
		args = append(args, string(*opts.State))
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
		return nil, fmt.Errorf("fanout/sqlite: list by webhook: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func (s *Store) ListByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryCols+` FROM fanout_deliveries WHERE event_id = ? ORDER BY created_at DESC`,
		evtID.String())
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: list by event: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fanout_deliveries WHERE state = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fanout/sqlite: count pending: %w", err)
	}
	return count, nil
}

func (s *Store) DeliveryStats(ctx context.Context, whID id.ID) (*delivery.Stats, error) {
	q := `SELECT state, attempts FROM fanout_deliveries`
	var args []any
	if !whID.IsNil() {
		q += ` WHERE webhook_id = ?`
		args = append(args, whID.String())
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: delivery stats: %w", err)
	}
	defer rows.Close()

	stats := &delivery.Stats{}
	var attempts int64
	for rows.Next() {
		var state, attemptsText string
		if err := rows.Scan(&state, &attemptsText); err != nil {
			return nil, err
		}
		stats.Total++
		switch delivery.State(state) {
		case delivery.StateDelivered:
			stats.Delivered++
		case delivery.StateFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
		var recorded []delivery.Attempt
		fromJSONText(attemptsText, &recorded)
		attempts += int64(len(recorded))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Mean attempt count across all deliveries, pending included.
	if stats.Total > 0 {
		stats.AverageAttempts = float64(attempts) / float64(stats.Total)
	}
	return stats, nil
}

func (s *Store) PurgeDeliveries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM fanout_deliveries
WHERE state IN ('delivered', 'failed') AND completed_at IS NOT NULL AND completed_at < ?`,
		toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("fanout/sqlite: purge deliveries: %w", err)
	}
	return res.RowsAffected()
}

func collectDeliveries(rows *sql.Rows) ([]*delivery.Delivery, error) {
	var result []*delivery.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
