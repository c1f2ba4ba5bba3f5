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
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

const dlqCols = `id, delivery_id, event_id, webhook_id, event_type, owner_id, url,
    payload, error, attempt_count, last_status_code, replayed_at, failed_at,
    created_at, updated_at`

func scanDLQEntry(row interface{ Scan(...any) error }) (*dlq.Entry, error) {
	var (
		idStr, delStr, evtStr, whStr, eventType, ownerID, url, errText string
		payload                                                        sql.NullString
		attemptCount, lastStatusCode                                   int
		replayedAt                                                     sql.NullInt64
		failedAt, createdAt, updatedAt                                 int64
	)
	if err := row.Scan(&idStr, &delStr, &evtStr, &whStr, &eventType, &ownerID, &url,
		&payload, &errText, &attemptCount, &lastStatusCode, &replayedAt, &failedAt,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	dlqID, err := id.ParseDLQID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", idStr, err)
	}
	delID, err := id.ParseDeliveryID(delStr)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", delStr, err)
	}
	evtID, err := id.ParseEventID(evtStr)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", evtStr, err)
	}
	whID, err := id.ParseWebhookID(whStr)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", whStr, err)
	}

	e := &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID:             dlqID,
		DeliveryID:     delID,
		EventID:        evtID,
		WebhookID:      whID,
		EventType:      eventType,
		OwnerID:        ownerID,
		URL:            url,
		Error:          errText,
		AttemptCount:   attemptCount,
		LastStatusCode: lastStatusCode,
		ReplayedAt:     fromNullNanos(replayedAt),
		FailedAt:       fromNanos(failedAt),
	}
	if payload.Valid && payload.String != "" {
		e.Payload = json.RawMessage(payload.String)
	}
	return e, nil
}

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fanout_dlq (`+dlqCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.DeliveryID.String(), entry.EventID.String(),
		entry.WebhookID.String(), entry.EventType, entry.OwnerID, entry.URL,
		nullString(string(entry.Payload)), entry.Error, entry.AttemptCount,
		entry.LastStatusCode, toNullNanos(entry.ReplayedAt), toNanos(entry.FailedAt),
		toNanos(entry.CreatedAt), toNanos(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("fanout/sqlite: push dlq: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	q := `SELECT ` + dlqCols + ` FROM fanout_dlq WHERE 1=1`
	args := []any{}
	if opts.OwnerID != "" {
		q += ` AND owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	if opts.WebhookID != nil {
		q += ` AND webhook_id = ?`
		args = append(args, opts.WebhookID.String())
	}
	if opts.From != nil {
		q += ` AND failed_at >= ?`
		args = append(args, toNanos(*opts.From))
	}
	if opts.To != nil {
		q += ` AND failed_at <= ?`
		args = append(args, toNanos(*opts.To))
	}
	q += ` ORDER BY failed_at DESC`
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
		return nil, fmt.Errorf("fanout/sqlite: list dlq: %w", err)
	}
	defer rows.Close()

	var result []*dlq.Entry
	for rows.Next() {
		entry, err := scanDLQEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dlqCols+` FROM fanout_dlq WHERE id = ?`, dlqID.String())
	entry, err := scanDLQEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrDLQNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get dlq: %w", err)
	}
	return entry, nil
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	entry, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}

	t := now()
	if err := s.Enqueue(ctx, replayDelivery(entry, t)); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
UPDATE fanout_dlq SET replayed_at = ?, updated_at = ? WHERE id = ?`,
		toNanos(t), toNanos(t), dlqID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: replay update: %w", err)
	}
	return nil
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+dlqCols+` FROM fanout_dlq
WHERE failed_at >= ? AND failed_at <= ? AND replayed_at IS NULL`,
		toNanos(from), toNanos(to))
	if err != nil {
		return 0, fmt.Errorf("fanout/sqlite: replay bulk list: %w", err)
	}

	var entries []*dlq.Entry
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			rows.Close()
			return 0, scanErr
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var count int64
	for _, entry := range entries {
		t := now()
		if err := s.Enqueue(ctx, replayDelivery(entry, t)); err != nil {
			return count, err
		}
		_, err := s.db.ExecContext(ctx, `
UPDATE fanout_dlq SET replayed_at = ?, updated_at = ? WHERE id = ?`,
			toNanos(t), toNanos(t), entry.ID.String())
		if err != nil {
			return count, fmt.Errorf("fanout/sqlite: replay bulk update: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fanout_dlq WHERE failed_at < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("fanout/sqlite: purge dlq: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fanout_dlq`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fanout/sqlite: count dlq: %w", err)
	}
	return count, nil
}

// replayDelivery builds a fresh pending delivery from a DLQ entry, carrying
// the original envelope and attempt budget.
func replayDelivery(e *dlq.Entry, t time.Time) *delivery.Delivery {
	maxAttempts := e.AttemptCount
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &delivery.Delivery{
		Entity:        entity.Entity{CreatedAt: t, UpdatedAt: t},
		ID:            id.NewDeliveryID(),
		WebhookID:     e.WebhookID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		State:         delivery.StatePending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: t,
	}
}
