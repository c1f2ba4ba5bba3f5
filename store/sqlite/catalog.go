package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

const eventTypeCols = `id, name, description, group_name, schema, schema_version,
    example, is_deprecated, deprecated_at, metadata, created_at, updated_at`

func scanEventType(row interface{ Scan(...any) error }) (*catalog.EventType, error) {
	var (
		idStr, name, description, groupName, schemaVersion, metadata string
		schema, example                                              sql.NullString
		isDeprecated                                                 bool
		deprecatedAt                                                 sql.NullInt64
		createdAt, updatedAt                                         int64
	)
	if err := row.Scan(&idStr, &name, &description, &groupName, &schema, &schemaVersion,
		&example, &isDeprecated, &deprecatedAt, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	etID, err := id.ParseEventTypeID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse event type ID %q: %w", idStr, err)
	}

	et := &catalog.EventType{
		Entity: entity.Entity{
			CreatedAt: fromNanos(createdAt),
			UpdatedAt: fromNanos(updatedAt),
		},
		ID: etID,
		Definition: catalog.Definition{
			Name:          name,
			Description:   description,
			Group:         groupName,
			SchemaVersion: schemaVersion,
		},
		IsDeprecated: isDeprecated,
		DeprecatedAt: fromNullNanos(deprecatedAt),
	}
	if schema.Valid && schema.String != "" {
		et.Definition.Schema = json.RawMessage(schema.String)
	}
	if example.Valid && example.String != "" {
		et.Definition.Example = json.RawMessage(example.String)
	}
	fromJSONText(metadata, &et.Metadata)
	return et, nil
}

func (s *Store) RegisterType(ctx context.Context, et *catalog.EventType) error {
	// Upsert by name: re-registering revives a deprecated type and keeps its ID.
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fanout_event_types
    (id, name, description, group_name, schema, schema_version, example,
     is_deprecated, deprecated_at, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    description    = excluded.description,
    group_name     = excluded.group_name,
    schema         = excluded.schema,
    schema_version = excluded.schema_version,
    example        = excluded.example,
    is_deprecated  = 0,
    deprecated_at  = NULL,
    metadata       = excluded.metadata,
    updated_at     = excluded.updated_at`,
		et.ID.String(), et.Definition.Name, et.Definition.Description, et.Definition.Group,
		nullString(string(et.Definition.Schema)), et.Definition.SchemaVersion,
		nullString(string(et.Definition.Example)), jsonText(et.Metadata, "{}"),
		toNanos(et.CreatedAt), toNanos(et.UpdatedAt))
	if err != nil {
		return fmt.Errorf("fanout/sqlite: register type: %w", err)
	}
	return nil
}

func (s *Store) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventTypeCols+` FROM fanout_event_types WHERE name = ?`, name)
	et, err := scanEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrEventTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get type: %w", err)
	}
	return et, nil
}

func (s *Store) GetTypeByID(ctx context.Context, etID id.ID) (*catalog.EventType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventTypeCols+` FROM fanout_event_types WHERE id = ?`, etID.String())
	et, err := scanEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fanout.ErrEventTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: get type by id: %w", err)
	}
	return et, nil
}

func (s *Store) ListTypes(ctx context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM fanout_event_types WHERE 1=1`
	args := []any{}
	if opts.Group != "" {
		q += ` AND group_name = ?`
		args = append(args, opts.Group)
	}
	if !opts.IncludeDeprecated {
		q += ` AND is_deprecated = 0`
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
		return nil, fmt.Errorf("fanout/sqlite: list types: %w", err)
	}
	defer rows.Close()

	var result []*catalog.EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, et)
	}
	return result, rows.Err()
}

func (s *Store) DeleteType(ctx context.Context, name string) error {
	t := now()
	res, err := s.db.ExecContext(ctx, `
UPDATE fanout_event_types
SET is_deprecated = 1, deprecated_at = ?, updated_at = ?
WHERE name = ?`, toNanos(t), toNanos(t), name)
	if err != nil {
		return fmt.Errorf("fanout/sqlite: delete type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fanout.ErrEventTypeNotFound
	}
	return nil
}

func (s *Store) MatchTypes(ctx context.Context, pattern string) ([]*catalog.EventType, error) {
	// Wildcard matching happens in Go; the table is small.
	types, err := s.ListTypes(ctx, catalog.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("fanout/sqlite: match types: %w", err)
	}
	var result []*catalog.EventType
	for _, et := range types {
		if catalog.Match(pattern, et.Definition.Name) {
			result = append(result, et)
		}
	}
	return result, nil
}
