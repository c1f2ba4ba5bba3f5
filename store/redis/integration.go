package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/internal/entity"
)

// integrationModel is the JSON representation stored in Redis.
type integrationModel struct {
	ID            string                     `json:"id"`
	Kind          string                     `json:"kind"`
	OwnerID       string                     `json:"owner_id"`
	Name          string                     `json:"name"`
	Config        integration.Config         `json:"config"`
	EventMappings []integration.EventMapping `json:"event_mappings,omitempty"`
	Active        bool                       `json:"active"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

func toIntegrationModel(intg *integration.Integration) *integrationModel {
	return &integrationModel{
		ID:            intg.ID.String(),
		Kind:          string(intg.Kind),
		OwnerID:       intg.OwnerID,
		Name:          intg.Name,
		Config:        intg.Config,
		EventMappings: intg.EventMappings,
		Active:        intg.Active,
		CreatedAt:     intg.CreatedAt,
		UpdatedAt:     intg.UpdatedAt,
	}
}

func fromIntegrationModel(m *integrationModel) (*integration.Integration, error) {
	intgID, err := id.ParseIntegrationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse integration ID %q: %w", m.ID, err)
	}
	return &integration.Integration{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            intgID,
		Kind:          integration.Kind(m.Kind),
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		Config:        m.Config,
		EventMappings: m.EventMappings,
		Active:        m.Active,
	}, nil
}

func (s *Store) CreateIntegration(ctx context.Context, intg *integration.Integration) error {
	m := toIntegrationModel(intg)
	key := entityKey(prefixIntegration, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: create integration: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zIntegrationAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.OwnerID != "" {
		pipe.ZAdd(ctx, zIntegrationOwn+m.OwnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}
	if m.Active {
		pipe.SAdd(ctx, sIntegrationActive, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: create integration indexes: %w", err)
	}
	return nil
}

func (s *Store) GetIntegration(ctx context.Context, intgID id.ID) (*integration.Integration, error) {
	var m integrationModel
	if err := s.getEntity(ctx, entityKey(prefixIntegration, intgID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, fanout.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("fanout/redis: get integration: %w", err)
	}
	return fromIntegrationModel(&m)
}

func (s *Store) UpdateIntegration(ctx context.Context, intg *integration.Integration) error {
	key := entityKey(prefixIntegration, intg.ID.String())

	var existing integrationModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return fanout.ErrIntegrationNotFound
		}
		return fmt.Errorf("fanout/redis: update integration get: %w", err)
	}

	m := toIntegrationModel(intg)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: update integration: %w", err)
	}

	if m.Active {
		s.rdb.SAdd(ctx, sIntegrationActive, m.ID)
	} else {
		s.rdb.SRem(ctx, sIntegrationActive, m.ID)
	}
	return nil
}

func (s *Store) DeleteIntegration(ctx context.Context, intgID id.ID) error {
	key := entityKey(prefixIntegration, intgID.String())

	var m integrationModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return fanout.ErrIntegrationNotFound
		}
		return fmt.Errorf("fanout/redis: delete integration get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zIntegrationAll, m.ID)
	if m.OwnerID != "" {
		pipe.ZRem(ctx, zIntegrationOwn+m.OwnerID, m.ID)
	}
	pipe.SRem(ctx, sIntegrationActive, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: delete integration: %w", err)
	}
	return nil
}

func (s *Store) ListIntegrations(ctx context.Context, ownerID string, opts integration.ListOpts) ([]*integration.Integration, error) {
	zKey := zIntegrationAll
	if ownerID != "" {
		zKey = zIntegrationOwn + ownerID
	}

	ids, err := s.rdb.ZRange(ctx, zKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: list integrations: %w", err)
	}

	result := make([]*integration.Integration, 0, len(ids))
	for _, entryID := range ids {
		var m integrationModel
		if err := s.getEntity(ctx, entityKey(prefixIntegration, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Kind != "" && integration.Kind(m.Kind) != opts.Kind {
			continue
		}
		if opts.Active != nil && m.Active != *opts.Active {
			continue
		}
		intg, err := fromIntegrationModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, intg)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ResolveIntegrations(ctx context.Context, eventType string) ([]*integration.Integration, error) {
	ids, err := s.rdb.SMembers(ctx, sIntegrationActive).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: resolve integrations: %w", err)
	}

	var result []*integration.Integration
	for _, entryID := range ids {
		var m integrationModel
		if err := s.getEntity(ctx, entityKey(prefixIntegration, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		intg, err := fromIntegrationModel(&m)
		if err != nil {
			return nil, err
		}
		if intg.MappingFor(eventType) == nil {
			continue
		}
		result = append(result, intg)
	}
	return result, nil
}

func (s *Store) SetIntegrationActive(ctx context.Context, intgID id.ID, active bool) error {
	key := entityKey(prefixIntegration, intgID.String())

	var m integrationModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return fanout.ErrIntegrationNotFound
		}
		return fmt.Errorf("fanout/redis: set integration active get: %w", err)
	}

	m.Active = active
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("fanout/redis: set integration active: %w", err)
	}

	if active {
		s.rdb.SAdd(ctx, sIntegrationActive, m.ID)
	} else {
		s.rdb.SRem(ctx, sIntegrationActive, m.ID)
	}
	return nil
}
