// Package memory provides an in-memory Store implementation for embedding
// and unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	fanoutstore "github.com/fanouthq/fanout/store"
	"github.com/fanouthq/fanout/webhook"
)

// compile-time interface check.
var _ fanoutstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	eventTypes      map[string]*catalog.EventType        // keyed by name
	eventTypesByID  map[string]*catalog.EventType        // keyed by ID string
	webhooks        map[string]*webhook.Webhook          // keyed by ID string
	integrations    map[string]*integration.Integration  // keyed by ID string
	events          map[string]*event.Event              // keyed by ID string
	eventsByIdemKey map[string]*event.Event              // keyed by idempotency key
	deliveries      map[string]*delivery.Delivery        // keyed by ID string
	claims          map[string]time.Time                 // dequeue claim times, simulates SKIP LOCKED
	dlqEntries      map[string]*dlq.Entry                // keyed by ID string

	// historyCap bounds the number of terminal deliveries kept, 0 = unlimited.
	historyCap int

	closed bool
}

// New creates a new in-memory store with unlimited delivery history.
func New() *Store {
	return NewWithHistoryCap(0)
}

// NewWithHistoryCap creates an in-memory store that evicts the oldest
// terminal deliveries once more than maxHistory of them accumulate.
// Pending deliveries are never evicted.
func NewWithHistoryCap(maxHistory int) *Store {
	return &Store{
		eventTypes:      make(map[string]*catalog.EventType),
		eventTypesByID:  make(map[string]*catalog.EventType),
		webhooks:        make(map[string]*webhook.Webhook),
		integrations:    make(map[string]*integration.Integration),
		events:          make(map[string]*event.Event),
		eventsByIdemKey: make(map[string]*event.Event),
		deliveries:      make(map[string]*delivery.Delivery),
		claims:          make(map[string]time.Time),
		dlqEntries:      make(map[string]*dlq.Entry),
		historyCap:      maxHistory,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fanout.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// catalog.Store
// ──────────────────────────────────────────────────

// RegisterType creates or updates an event type definition (upsert by name).
func (s *Store) RegisterType(_ context.Context, et *catalog.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.eventTypes[et.Definition.Name]; ok {
		existing.Definition = et.Definition
		existing.UpdatedAt = time.Now().UTC()
		existing.Metadata = et.Metadata
		et.ID = existing.ID
		return nil
	}

	s.eventTypes[et.Definition.Name] = et
	s.eventTypesByID[et.ID.String()] = et
	return nil
}

// GetType returns an event type by name.
func (s *Store) GetType(_ context.Context, name string) (*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, ok := s.eventTypes[name]
	if !ok {
		return nil, fanout.ErrEventTypeNotFound
	}
	return et, nil
}

// GetTypeByID returns an event type by its TypeID.
func (s *Store) GetTypeByID(_ context.Context, etID id.ID) (*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, ok := s.eventTypesByID[etID.String()]
	if !ok {
		return nil, fanout.ErrEventTypeNotFound
	}
	return et, nil
}

// ListTypes returns all registered event types, optionally filtered.
func (s *Store) ListTypes(_ context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.EventType, 0, len(s.eventTypes))
	for _, et := range s.eventTypes {
		if !opts.IncludeDeprecated && et.IsDeprecated {
			continue
		}
		if opts.Group != "" && et.Definition.Group != opts.Group {
			continue
		}
		result = append(result, et)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Definition.Name < result[j].Definition.Name
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DeleteType soft-deletes (deprecates) an event type.
func (s *Store) DeleteType(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, ok := s.eventTypes[name]
	if !ok {
		return fanout.ErrEventTypeNotFound
	}

	now := time.Now().UTC()
	et.IsDeprecated = true
	et.DeprecatedAt = &now
	et.UpdatedAt = now
	return nil
}

// MatchTypes returns event types matching a glob pattern.
func (s *Store) MatchTypes(_ context.Context, pattern string) ([]*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*catalog.EventType
	for _, et := range s.eventTypes {
		if et.IsDeprecated {
			continue
		}
		if catalog.Match(pattern, et.Definition.Name) {
			result = append(result, et)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook.
func (s *Store) CreateWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks[wh.ID.String()] = wh
	return nil
}

// GetWebhook returns a webhook by ID.
func (s *Store) GetWebhook(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wh, ok := s.webhooks[whID.String()]
	if !ok {
		return nil, fanout.ErrWebhookNotFound
	}
	return wh, nil
}

// UpdateWebhook modifies an existing webhook.
func (s *Store) UpdateWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[wh.ID.String()]; !ok {
		return fanout.ErrWebhookNotFound
	}
	wh.UpdatedAt = time.Now().UTC()
	s.webhooks[wh.ID.String()] = wh
	return nil
}

// DeleteWebhook removes a webhook. Delivery history stays behind.
func (s *Store) DeleteWebhook(_ context.Context, whID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[whID.String()]; !ok {
		return fanout.ErrWebhookNotFound
	}
	delete(s.webhooks, whID.String())
	return nil
}

// ListWebhooks returns webhooks, scoped to an owner when ownerID is non-empty.
func (s *Store) ListWebhooks(_ context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*webhook.Webhook, 0, len(s.webhooks))
	for _, wh := range s.webhooks {
		if ownerID != "" && wh.OwnerID != ownerID {
			continue
		}
		if opts.Active != nil && wh.Active != *opts.Active {
			continue
		}
		result = append(result, wh)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ResolveWebhooks finds all active webhooks subscribed to an event type.
func (s *Store) ResolveWebhooks(_ context.Context, eventType string) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*webhook.Webhook
	for _, wh := range s.webhooks {
		if !wh.Active {
			continue
		}
		for _, pattern := range wh.Events {
			if catalog.Match(pattern, eventType) {
				result = append(result, wh)
				break
			}
		}
	}
	return result, nil
}

// SetActive enables or disables a webhook.
func (s *Store) SetActive(_ context.Context, whID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh, ok := s.webhooks[whID.String()]
	if !ok {
		return fanout.ErrWebhookNotFound
	}
	wh.Active = active
	wh.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// integration.Store
// ──────────────────────────────────────────────────

// CreateIntegration persists a new integration.
func (s *Store) CreateIntegration(_ context.Context, intg *integration.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.integrations[intg.ID.String()] = intg
	return nil
}

// GetIntegration returns an integration by ID.
func (s *Store) GetIntegration(_ context.Context, intgID id.ID) (*integration.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intg, ok := s.integrations[intgID.String()]
	if !ok {
		return nil, fanout.ErrIntegrationNotFound
	}
	return intg, nil
}

// UpdateIntegration modifies an existing integration.
func (s *Store) UpdateIntegration(_ context.Context, intg *integration.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[intg.ID.String()]; !ok {
		return fanout.ErrIntegrationNotFound
	}
	intg.UpdatedAt = time.Now().UTC()
	s.integrations[intg.ID.String()] = intg
	return nil
}

// DeleteIntegration removes an integration.
func (s *Store) DeleteIntegration(_ context.Context, intgID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[intgID.String()]; !ok {
		return fanout.ErrIntegrationNotFound
	}
	delete(s.integrations, intgID.String())
	return nil
}

// ListIntegrations returns integrations, scoped to an owner when ownerID is
// non-empty.
func (s *Store) ListIntegrations(_ context.Context, ownerID string, opts integration.ListOpts) ([]*integration.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*integration.Integration, 0, len(s.integrations))
	for _, intg := range s.integrations {
		if ownerID != "" && intg.OwnerID != ownerID {
			continue
		}
		if opts.Kind != "" && intg.Kind != opts.Kind {
			continue
		}
		if opts.Active != nil && intg.Active != *opts.Active {
			continue
		}
		result = append(result, intg)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ResolveIntegrations finds active integrations with an enabled mapping for
// an event type.
func (s *Store) ResolveIntegrations(_ context.Context, eventType string) ([]*integration.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*integration.Integration
	for _, intg := range s.integrations {
		if !intg.Active {
			continue
		}
		if intg.MappingFor(eventType) != nil {
			result = append(result, intg)
		}
	}
	return result, nil
}

// SetIntegrationActive enables or disables an integration.
func (s *Store) SetIntegrationActive(_ context.Context, intgID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intg, ok := s.integrations[intgID.String()]
	if !ok {
		return fanout.ErrIntegrationNotFound
	}
	intg.Active = active
	intg.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event. Returns ErrDuplicateIdempotencyKey on conflict.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.IdempotencyKey != "" {
		if _, ok := s.eventsByIdemKey[evt.IdempotencyKey]; ok {
			return fanout.ErrDuplicateIdempotencyKey
		}
		s.eventsByIdemKey[evt.IdempotencyKey] = evt
	}

	s.events[evt.ID.String()] = evt
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, fanout.ErrEventNotFound
	}
	return evt, nil
}

// ListEvents returns events, newest first, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if !matchEventOpts(evt, opts) {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = d
	s.enforceHistoryCap()
	return nil
}

// EnqueueBatch creates multiple deliveries atomically.
func (s *Store) EnqueueBatch(_ context.Context, ds []*delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		s.deliveries[d.ID.String()] = d
	}
	s.enforceHistoryCap()
	return nil
}

// copyDelivery returns a copy of the delivery with its own attempts slice.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	cp.Attempts = append([]delivery.Attempt(nil), d.Attempts...)
	return &cp
}

// claimTTL bounds how long a dequeued delivery stays invisible to other
// workers. Claims older than this are treated as abandoned (crashed worker)
// and become dequeuable again.
const claimTTL = 5 * time.Minute

// Dequeue fetches pending deliveries ready for attempt (concurrent-safe).
// Returns copies so callers can mutate without holding a lock.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))

	for _, d := range s.deliveries {
		if d.State != delivery.StatePending {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		if claimed, ok := s.claims[d.ID.String()]; ok && now.Sub(claimed) < claimTTL {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		s.claims[d.ID.String()] = now
		result = append(result, copyDelivery(d))
	}

	return result, nil
}

// UpdateDelivery modifies a delivery and releases its dequeue claim.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return fanout.ErrDeliveryNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = d
	delete(s.claims, d.ID.String())
	s.enforceHistoryCap()
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, fanout.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// ListByWebhook returns delivery history for a webhook, newest first.
// The Nil ID lists across all webhooks.
func (s *Store) ListByWebhook(_ context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if !whID.IsNil() && d.WebhookID.String() != whID.String() {
			continue
		}
		if opts.State != nil && d.State != *opts.State {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ListByEvent returns all deliveries for a specific event.
func (s *Store) ListByEvent(_ context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.EventID.String() != evtID.String() {
			continue
		}
		result = append(result, copyDelivery(d))
	}
	return result, nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State == delivery.StatePending {
			count++
		}
	}
	return count, nil
}

// DeliveryStats aggregates delivery outcomes for a webhook.
// The Nil ID aggregates across all webhooks.
func (s *Store) DeliveryStats(_ context.Context, whID id.ID) (*delivery.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &delivery.Stats{}
	var attempts int

	for _, d := range s.deliveries {
		if !whID.IsNil() && d.WebhookID.String() != whID.String() {
			continue
		}
		stats.Total++
		switch d.State {
		case delivery.StateDelivered:
			stats.Delivered++
		case delivery.StateFailed:
			stats.Failed++
		case delivery.StatePending:
			stats.Pending++
		}
		attempts += d.AttemptCount()
	}

	// Mean attempt count across all deliveries, pending included.
	if stats.Total > 0 {
		stats.AverageAttempts = float64(attempts) / float64(stats.Total)
	}
	return stats, nil
}

// PurgeDeliveries deletes terminal deliveries completed before a threshold.
func (s *Store) PurgeDeliveries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, d := range s.deliveries {
		if !d.Terminal() {
			continue
		}
		if d.CompletedAt != nil && d.CompletedAt.Before(before) {
			delete(s.deliveries, k)
			count++
		}
	}
	return count, nil
}

// enforceHistoryCap evicts the oldest terminal deliveries beyond the cap.
// Callers must hold the write lock.
func (s *Store) enforceHistoryCap() {
	if s.historyCap <= 0 {
		return
	}

	var terminal []*delivery.Delivery
	for _, d := range s.deliveries {
		if d.Terminal() {
			terminal = append(terminal, d)
		}
	}
	if len(terminal) <= s.historyCap {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})
	for _, d := range terminal[:len(terminal)-s.historyCap] {
		delete(s.deliveries, d.ID.String())
	}
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push moves a permanently failed delivery into the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, optionally filtered.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.OwnerID != "" && e.OwnerID != opts.OwnerID {
			continue
		}
		if opts.WebhookID != nil && e.WebhookID.String() != opts.WebhookID.String() {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, fanout.ErrDLQNotFound
	}
	return e, nil
}

// Replay marks a DLQ entry for redelivery and re-enqueues the delivery with
// a fresh attempt budget.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return fanout.ErrDLQNotFound
	}

	now := time.Now().UTC()
	e.ReplayedAt = &now
	d := replayDelivery(e, now)
	s.deliveries[d.ID.String()] = d
	return nil
}

// ReplayBulk replays all unreplayed DLQ entries in a time window.
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var count int64

	for _, e := range s.dlqEntries {
		if e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if e.ReplayedAt != nil {
			continue
		}

		e.ReplayedAt = &now
		d := replayDelivery(e, now)
		s.deliveries[d.ID.String()] = d
		count++
	}
	return count, nil
}

// Purge deletes DLQ entries that failed before a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// replayDelivery builds a fresh pending delivery from a DLQ entry, carrying
// the original envelope and attempt budget.
func replayDelivery(e *dlq.Entry, now time.Time) *delivery.Delivery {
	maxAttempts := e.AttemptCount
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &delivery.Delivery{
		Entity:        fanout.NewEntity(),
		ID:            id.NewDeliveryID(),
		EventID:       e.EventID,
		WebhookID:     e.WebhookID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		State:         delivery.StatePending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now,
	}
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchEventOpts(evt *event.Event, opts event.ListOpts) bool {
	if opts.Type != "" && evt.Type != opts.Type {
		return false
	}
	if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && evt.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
