package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/webhook"
)

// webhookModel is the JSON representation stored in Redis.
type webhookModel struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	Name        string              `json:"name"`
	URL         string              `json:"url"`
	Secret      string              `json:"secret"`
	Events      []string            `json:"events"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Active      bool                `json:"active"`
	RetryPolicy webhook.RetryPolicy `json:"retry_policy"`
	Filters     *webhook.Filters    `json:"filters,omitempty"`
	RateLimit   int                 `json:"rate_limit"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toWebhookModel(wh *webhook.Webhook) *webhookModel {
	return &webhookModel{
		ID:          wh.ID.String(),
		OwnerID:     wh.OwnerID,
		Name:        wh.Name,
		URL:         wh.URL,
		Secret:      wh.Secret,
		Events:      wh.Events,
		Headers:     wh.Headers,
		Active:      wh.Active,
		RetryPolicy: wh.RetryPolicy,
		Filters:     wh.Filters,
		RateLimit:   wh.RateLimit,
		Metadata:    wh.Metadata,
		CreatedAt:   wh.CreatedAt,
		UpdatedAt:   wh.UpdatedAt,
	}
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.ID, err)
	}
	return &webhook.Webhook{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          whID,
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		URL:         m.URL,
		Secret:      m.Secret,
		Events:      m.Events,
		Headers:     m.Headers,
		Active:      m.Active,
		RetryPolicy: m.RetryPolicy,
		Filters:     m.Filters,
		RateLimit:   m.RateLimit,
		Metadata:    m.Metadata,
	}, nil
}

func (s *Store) CreateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)
	key := entityKey(prefixWebhook, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: create webhook: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zWebhookAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.OwnerID != "" {
		pipe.ZAdd(ctx, zWebhookOwner+m.OwnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}
	if m.Active {
		pipe.SAdd(ctx, sWebhookActive, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: create webhook indexes: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	var m webhookModel
	if err := s.getEntity(ctx, entityKey(prefixWebhook, whID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, fanout.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("fanout/redis: get webhook: %w", err)
	}
	return fromWebhookModel(&m)
}

func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	key := entityKey(prefixWebhook, wh.ID.String())

	var existing webhookModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return fanout.ErrWebhookNotFound
		}
		return fmt.Errorf("fanout/redis: update webhook get: %w", err)
	}

	m := toWebhookModel(wh)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: update webhook: %w", err)
	}

	if m.Active {
		s.rdb.SAdd(ctx, sWebhookActive, m.ID)
	} else {
		s.rdb.SRem(ctx, sWebhookActive, m.ID)
	}
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	key := entityKey(prefixWebhook, whID.String())

	var m webhookModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return fanout.ErrWebhookNotFound
		}
		return fmt.Errorf("fanout/redis: delete webhook get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zWebhookAll, m.ID)
	if m.OwnerID != "" {
		pipe.ZRem(ctx, zWebhookOwner+m.OwnerID, m.ID)
	}
	pipe.SRem(ctx, sWebhookActive, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: delete webhook: %w", err)
	}
	return nil
}

func (s *Store) ListWebhooks(ctx context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	zKey := zWebhookAll
	if ownerID != "" {
		zKey = zWebhookOwner + ownerID
	}

	ids, err := s.rdb.ZRange(ctx, zKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: list webhooks: %w", err)
	}

	result := make([]*webhook.Webhook, 0, len(ids))
	for _, entryID := range ids {
		var m webhookModel
		if err := s.getEntity(ctx, entityKey(prefixWebhook, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Active != nil && m.Active != *opts.Active {
			continue
		}
		wh, err := fromWebhookModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, wh)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ResolveWebhooks(ctx context.Context, eventType string) ([]*webhook.Webhook, error) {
	ids, err := s.rdb.SMembers(ctx, sWebhookActive).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: resolve webhooks: %w", err)
	}

	var result []*webhook.Webhook
	for _, entryID := range ids {
		var m webhookModel
		if err := s.getEntity(ctx, entityKey(prefixWebhook, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		for _, pattern := range m.Events {
			if catalog.Match(pattern, eventType) {
				wh, err := fromWebhookModel(&m)
				if err != nil {
					return nil, err
				}
				result = append(result, wh)
				break
			}
		}
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, whID id.ID, active bool) error {
	key := entityKey(prefixWebhook, whID.String())

	var m webhookModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return fanout.ErrWebhookNotFound
		}
		return fmt.Errorf("fanout/redis: set active get: %w", err)
	}

	m.Active = active
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("fanout/redis: set active: %w", err)
	}

	if active {
		s.rdb.SAdd(ctx, sWebhookActive, m.ID)
	} else {
		s.rdb.SRem(ctx, sWebhookActive, m.ID)
	}
	return nil
}
