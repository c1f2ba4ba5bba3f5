package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/webhook"
)

const webhookCols = `id, owner_id, name, url, secret, events, headers, active,
    retry_policy, filters, rate_limit, metadata, created_at, updated_at`

func scanWebhook(row interface{ Scan(...any) error }) (*webhook.Webhook, error) {
	var (
		idStr, ownerID, name, url, secret          string
		events, headers, retryPolicy, metadataText string
		filters                                    sql.NullString
		active                                     bool
		rateLimit                                  int
		createdAt, updatedAt                       int64
	)
	if err := row.Scan(&idStr, &ownerID, &name, &url, &secret, &events, &headers, &active,
		&retryPolicy, &filters, &rateLimit, &metadataText, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	whID, err := id.ParseWebhookID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", idStr, err)
	}

	wh := &webhook.Webhook{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID:        whID,
		OwnerID:   ownerID,
		Name:      name,
		URL:       url,
		Secret:    secret,
		Active:    active,
		RateLimit: rateLimit,
	}
	fromJSONText(events, &wh.Events)
	fromJSONText(headers, &wh.Headers)
	fromJSONText(retryPolicy, &wh.RetryPolicy)
	fromJSONText(metadataText, &wh.Metadata)
	if filters.Valid && filters.String != "" {
		wh.Filters = &webhook.Filters{}
		fromJSONText(filters.String, wh.Filters)
	}
	return wh, nil
}

func webhookArgs(wh *webhook.Webhook) []any {
	var filters sql.NullString
	if wh.Filters != nil {
		filters = nullString(jsonText(wh.Filters, ""))
	}
	return []any{
		wh.ID.String(), wh.OwnerID, wh.Name, wh.URL, wh.Secret,
		jsonText(wh.Events, "[]"), jsonText(wh.Headers, "{}"), wh.Active,
		jsonText(wh.RetryPolicy, "{}"), filters, wh.RateLimit,
		jsonText(wh.Metadata, "{}"), toNanos(wh.CreatedAt), toNanos(wh.UpdatedAt),
	}
}

func (s *Store) CreateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fanout_webhooks (`+webhookCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, webhookArgs(wh)...)
	if err != nil {
		return fmt.Errorf("fanout/sqlite: create webhook: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+webhookCols+` FROM fanout_webhooks WHERE id = ?`, whID.String())
	wh, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get webhook: %w", err)
	}
	return wh, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	var filters sql.NullString
	if wh.Filters != nil {
		filters = nullString(jsonText(wh.Filters, ""))
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_webhooks SET
    owner_id = ?, name = ?, url = ?, secret = ?, events = ?, headers = ?,
    active = ?, retry_policy = ?, filters = ?, rate_limit = ?, metadata = ?,
    updated_at = ?
WHERE id = ?`,
		wh.OwnerID, wh.Name, wh.URL, wh.Secret,
		jsonText(wh.Events, "[]"), jsonText(wh.Headers, "{}"), wh.Active,
		jsonText(wh.RetryPolicy, "{}"), filters, wh.RateLimit,
		jsonText(wh.Metadata, "{}"), toNanos(now()), wh.ID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: update webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrWebhookNotFound
	}
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fanout_webhooks WHERE id = ?`, whID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: delete webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrWebhookNotFound
	}
	return nil
}

func (s *Store) ListWebhooks(ctx context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	q := `SELECT ` + webhookCols + ` FROM fanout_webhooks WHERE 1=1`
	args := []any{}
	if ownerID != "" {
		q += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	if opts.Active != nil {
		q += ` AND active = ?`
		args = append(args, *opts.Active)
	}
	q += ` ORDER BY created_at`
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
		return nil, fmt.Errorf("fanout/sqlite: list webhooks: %w", err)
	}
	defer rows.Close()

	var result []*webhook.Webhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, wh)
	}
	return result, rows.Err()
}

func (s *Store) ResolveWebhooks(ctx context.Context, eventType string) ([]*webhook.Webhook, error) {
	// Pattern matching happens in Go; only active webhooks are scanned.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+webhookCols+` FROM fanout_webhooks WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: resolve webhooks: %w", err)
	}
	defer rows.Close()

	var result []*webhook.Webhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		for _, pattern := range wh.Events {
			if catalog.Match(pattern, eventType) {
				result = append(result, wh)
				break
			}
		}
	}
	return result, rows.Err()
}

func (s *Store) SetActive(ctx context.Context, whID id.ID, active bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_webhooks SET active = ?, updated_at = ? WHERE id = ?`,
		active, toNanos(now()), whID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: set active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrWebhookNotFound
	}
	return nil
}
