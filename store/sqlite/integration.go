package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/internal/entity"
)

const integrationCols = `id, kind, owner_id, name, config, event_mappings, active,
    created_at, updated_at`

func scanIntegration(row interface{ Scan(...any) error }) (*integration.Integration, error) {
	var (
		idStr, kind, ownerID, name string
		configText, mappings       string
		active                     bool
		createdAt, updatedAt       int64
	)
	if err := row.Scan(&idStr, &kind, &ownerID, &name, &configText, &mappings,
		&active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	intgID, err := id.ParseIntegrationID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse integration ID %q: %w", idStr, err)
	}

	intg := &integration.Integration{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID:      intgID,
		Kind:    integration.Kind(kind),
		OwnerID: ownerID,
		Name:    name,
		Active:  active,
	}
	fromJSONText(configText, &intg.Config)
	fromJSONText(mappings, &intg.EventMappings)
	return intg, nil
}

func (s *Store) CreateIntegration(ctx context.Context, intg *integration.Integration) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fanout_integrations (`+integrationCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intg.ID.String(), string(intg.Kind), intg.OwnerID, intg.Name,
		jsonText(intg.Config, "{}"), jsonText(intg.EventMappings, "[]"), intg.Active,
		toNanos(intg.CreatedAt), toNanos(intg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("fanout/sqlite: create integration: %w", err)
	}
	return nil
}

func (s *Store) GetIntegration(ctx context.Context, intgID id.ID) (*integration.Integration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+integrationCols+` FROM fanout_integrations WHERE id = ?`, intgID.String())
	intg, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get integration: %w", err)
	}
	return intg, nil
}

func (s *Store) UpdateIntegration(ctx context.Context, intg *integration.Integration) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_integrations SET
    kind = ?, owner_id = ?, name = ?, config = ?, event_mappings = ?,
    active = ?, updated_at = ?
WHERE id = ?`,
		string(intg.Kind), intg.OwnerID, intg.Name,
		jsonText(intg.Config, "{}"), jsonText(intg.EventMappings, "[]"),
		intg.Active, toNanos(now()), intg.ID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: update integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrIntegrationNotFound
	}
	return nil
}

func (s *Store) DeleteIntegration(ctx context.Context, intgID id.ID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fanout_integrations WHERE id = ?`, intgID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: delete integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrIntegrationNotFound
	}
	return nil
}

func (s *Store) ListIntegrations(ctx context.Context, ownerID string, opts integration.ListOpts) ([]*integration.Integration, error) {
	q := `SELECT ` + integrationCols + ` FROM fanout_integrations WHERE 1=1`
	args := []any{}
	if ownerID != "" {
		q += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	if opts.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(opts.Kind))
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
		return nil, fmt.Errorf("fanout/sqlite: list integrations: %w", err)
	}
	defer rows.Close()

	var result []*integration.Integration
	for rows.Next() {
		intg, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, intg)
	}
	return result, rows.Err()
}

func (s *Store) ResolveIntegrations(ctx context.Context, eventType string) ([]*integration.Integration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+integrationCols+` FROM fanout_integrations WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: resolve integrations: %w", err)
	}
	defer rows.Close()

	var result []*integration.Integration
	for rows.Next() {
		intg, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		if intg.MappingFor(eventType) == nil {
			continue
		}
		result = append(result, intg)
	}
	return result, rows.Err()
}

func (s *Store) SetIntegrationActive(ctx context.Context, intgID id.ID, active bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_integrations SET active = ?, updated_at = ? WHERE id = ?`,
		active, toNanos(now()), intgID.String())
	if err != nil {
		return fmt.Errorf("fanout/sqlite: set integration active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrIntegrationNotFound
	}
	return nil
}
