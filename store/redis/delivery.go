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
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string             `json:"id"`
	WebhookID      string             `json:"webhook_id"`
	EventID        string             `json:"event_id"`
	EventType      string             `json:"event_type"`
	Payload        json.RawMessage    `json:"payload,omitempty"`
	Attempts       []delivery.Attempt `json:"attempts,omitempty"`
	State          string             `json:"state"`
	MaxAttempts    int                `json:"max_attempts"`
	NextAttemptAt  time.Time          `json:"next_attempt_at"`
	LastError      string             `json:"last_error,omitempty"`
	LastStatusCode int                `json:"last_status_code,omitempty"`
	DeliveredAt    *time.Time         `json:"delivered_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		WebhookID:      d.WebhookID.String(),
		EventID:        d.EventID.String(),
		EventType:      d.EventType,
		Payload:        d.Payload,
		Attempts:       d.Attempts,
		State:          string(d.State),
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		DeliveredAt:    d.DeliveredAt,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	whID, err := id.ParseWebhookID(m.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		WebhookID:      whID,
		EventID:        evtID,
		EventType:      m.EventType,
		Payload:        m.Payload,
		Attempts:       m.Attempts,
		State:          delivery.State(m.State),
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		DeliveredAt:    m.DeliveredAt,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// dequeueScript atomically claims due deliveries from the pending sorted set.
// A claimed member moves to the claim zset, scored by claim expiry, so no
// other worker can take it; expired claims (crashed worker) are returned to
// the pending zset first. UpdateDelivery releases the claim.
// KEYS[1] = fanout:z:del:pending
// KEYS[2] = fanout:z:del:claimed
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
// ARGV[3] = claim expiry timestamp
var dequeueScript = goredis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for i, id in ipairs(expired) do
    redis.call('ZREM', KEYS[2], id)
    redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
    redis.call('ZADD', KEYS[2], ARGV[3], id)
end
return ids
`)

// claimTTL bounds how long a dequeued delivery stays invisible to other
// workers before it is treated as abandoned.
const claimTTL = 5 * time.Minute

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	return s.EnqueueBatch(ctx, []*delivery.Delivery{d})
}

func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, d := range ds {
		m := toDeliveryModel(d)
		key := entityKey(prefixDelivery, m.ID)

		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("fanout/redis: enqueue marshal: %w", err)
		}
		pipe.Set(ctx, key, raw, 0)
		pipe.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryWebhook+m.WebhookID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryEvt+m.EventID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fanout/redis: enqueue: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Delivery, error) {
	current := now()
	nowScore := fmt.Sprintf("%f", scoreFromTime(current))
	expiryScore := fmt.Sprintf("%f", scoreFromTime(current.Add(claimTTL)))
	result, err := dequeueScript.Run(ctx, s.rdb,
		[]string{zDeliveryPend, zDeliveryClaim}, nowScore, limit, expiryScore).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fanout/redis: dequeue script: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	deliveries := make([]*delivery.Delivery, 0, len(result))
	for _, entryID := range result {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("fanout/redis: dequeue get: %w", err)
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()
	key := entityKey(prefixDelivery, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("fanout/redis: update delivery: %w", err)
	}

	// Writing the outcome releases the dequeue claim.
	s.rdb.ZRem(ctx, zDeliveryClaim, m.ID)

	switch d.State {
	case delivery.StatePending:
		// Back to pending: rejoin the queue at the next attempt time.
		s.rdb.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
	case delivery.StateDelivered, delivery.StateFailed:
		completed := now()
		if m.CompletedAt != nil {
			completed = *m.CompletedAt
		}
		s.rdb.ZAdd(ctx, zDeliveryDone, goredis.Z{Score: scoreFromTime(completed), Member: m.ID})
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, fanout.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("fanout/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// ListByWebhook returns delivery history for a webhook, newest first.
// The Nil ID lists history across all webhooks.
func (s *Store) ListByWebhook(ctx context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	indexKey := zDeliveryAll
	if !whID.IsNil() {
		indexKey = zDeliveryWebhook + whID.String()
	}
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: list by webhook: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.State != nil && delivery.State(m.State) != *opts.State {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	ids, err := s.rdb.ZRange(ctx, zDeliveryEvt+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: list by event: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return result, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	// In-flight claims are still pending deliveries.
	pipe := s.rdb.Pipeline()
	queued := pipe.ZCard(ctx, zDeliveryPend)
	claimed := pipe.ZCard(ctx, zDeliveryClaim)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("fanout/redis: count pending: %w", err)
	}
	return queued.Val() + claimed.Val(), nil
}

// DeliveryStats aggregates delivery outcomes for a webhook.
// The Nil ID aggregates across all webhooks.
func (s *Store) DeliveryStats(ctx context.Context, whID id.ID) (*delivery.Stats, error) {
	indexKey := zDeliveryAll
	if !whID.IsNil() {
		indexKey = zDeliveryWebhook + whID.String()
	}
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fanout/redis: delivery stats: %w", err)
	}

	stats := &delivery.Stats{}
	var attempts int64
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		stats.Total++
		switch delivery.State(m.State) {
		case delivery.StateDelivered:
			stats.Delivered++
		case delivery.StateFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
		attempts += int64(len(m.Attempts))
	}
	// Mean attempt count across all deliveries, pending included.
	if stats.Total > 0 {
		stats.AverageAttempts = float64(attempts) / float64(stats.Total)
	}
	return stats, nil
}

func (s *Store) PurgeDeliveries(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDeliveryDone, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("fanout/redis: purge list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				s.rdb.ZRem(ctx, zDeliveryDone, entryID)
				continue
			}
			return count, err
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixDelivery, entryID))
		pipe.ZRem(ctx, zDeliveryDone, entryID)
		pipe.ZRem(ctx, zDeliveryAll, entryID)
		pipe.ZRem(ctx, zDeliveryWebhook+m.WebhookID, entryID)
		pipe.ZRem(ctx, zDeliveryEvt+m.EventID, entryID)
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("fanout/redis: purge delivery: %w", err)
		}
		count++
	}

	return count, nil
}
