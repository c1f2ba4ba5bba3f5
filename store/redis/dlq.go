package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	fanout "github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string          `json:"id"`
	DeliveryID     string          `json:"delivery_id"`
	EventID        string          `json:"event_id"`
	WebhookID      string          `json:"webhook_id"`
	EventType      string          `json:"event_type"`
	OwnerID        string          `json:"owner_id"`
	URL            string          `json:"url"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error"`
	AttemptCount   int             `json:"attempt_count"`
	LastStatusCode int             `json:"last_status_code"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		WebhookID:      e.WebhookID.String(),
		EventType:      e.EventType,
		OwnerID:        e.OwnerID,
		URL:            e.URL,
		Payload:        e.Payload,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	whID, err := id.ParseWebhookID(m.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		EventID:        evtID,
		WebhookID:      whID,
		EventType:      m.EventType,
		OwnerID:        m.OwnerID,
		URL:            m.URL,
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	key := entityKey(prefixDLQ, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: push dlq: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDLQAll, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
	if m.OwnerID != "" {
		pipe.ZAdd(ctx, zDLQOwner+m.OwnerID, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
	}
	if m.WebhookID != "" {
		pipe.ZAdd(ctx, zDLQWebhook+m.WebhookID, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: push dlq indexes: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	zKey := zDLQAll
	if opts.OwnerID != "" {
		zKey = zDLQOwner + opts.OwnerID
	}
	if opts.WebhookID != nil {
		zKey = zDLQWebhook + opts.WebhookID.String()
	}

	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zKey, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		entry, err := fromDLQEntryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, fanout.ErrDLQNotFound
		}
		return nil, fmt.Errorf("fanout/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	key := entityKey(prefixDLQ, dlqID.String())

	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return fanout.ErrDLQNotFound
		}
		return fmt.Errorf("fanout/redis: replay get: %w", err)
	}

	entry, err := fromDLQEntryModel(&m)
	if err != nil {
		return err
	}

	if err := s.Enqueue(ctx, replayDelivery(entry, now())); err != nil {
		return err
	}

	t := now()
	m.ReplayedAt = &t
	m.UpdatedAt = t
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("fanout/redis: replay update: %w", err)
	}
	return nil
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, scoreFromTime(from), scoreFromTime(to))
	if err != nil {
		return 0, fmt.Errorf("fanout/redis: replay bulk list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		key := entityKey(prefixDLQ, entryID)
		var m dlqEntryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return count, err
		}
		if m.ReplayedAt != nil {
			continue // already replayed
		}

		entry, err := fromDLQEntryModel(&m)
		if err != nil {
			return count, err
		}

		if err := s.Enqueue(ctx, replayDelivery(entry, now())); err != nil {
			return count, err
		}

		t := now()
		m.ReplayedAt = &t
		m.UpdatedAt = t
		if err := s.setEntity(ctx, key, &m); err != nil {
			return count, fmt.Errorf("fanout/redis: replay bulk update: %w", err)
		}
		count++
	}

	return count, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("fanout/redis: purge list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, entryID), &m); err != nil {
			if isRedisNil(err) {
				s.rdb.ZRem(ctx, zDLQAll, entryID)
				continue
			}
			return count, err
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixDLQ, entryID))
		pipe.ZRem(ctx, zDLQAll, entryID)
		if m.OwnerID != "" {
			pipe.ZRem(ctx, zDLQOwner+m.OwnerID, entryID)
		}
		if m.WebhookID != "" {
			pipe.ZRem(ctx, zDLQWebhook+m.WebhookID, entryID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("fanout/redis: purge dlq: %w", err)
		}
		count++
	}

	return count, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("fanout/redis: count dlq: %w", err)
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
