package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/catalog"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/webhook"
)

func ctx() context.Context { return context.Background() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, fanout.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// catalog.Store
// ──────────────────────────────────────────────────

func TestCatalogCRUD(t *testing.T) {
	s := New()

	et := &catalog.EventType{
		Entity: entity.New(),
		ID:     id.NewEventTypeID(),
		Definition: catalog.Definition{
			Name:        "invoice.created",
			Description: "Invoice was created",
			Group:       "invoice",
		},
	}

	// Register
	if err := s.RegisterType(ctx(), et); err != nil {
		t.Fatal(err)
	}

	// Get by name
	got, err := s.GetType(ctx(), "invoice.created")
	if err != nil {
		t.Fatal(err)
	}
	if got.Definition.Name != "invoice.created" {
		t.Fatalf("got name %q", got.Definition.Name)
	}

	// Get by ID
	got, err = s.GetTypeByID(ctx(), et.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Definition.Name != "invoice.created" {
		t.Fatalf("got name %q", got.Definition.Name)
	}

	// Get not found
	_, err = s.GetType(ctx(), "does.not.exist")
	if !errors.Is(err, fanout.ErrEventTypeNotFound) {
		t.Fatalf("expected ErrEventTypeNotFound, got %v", err)
	}

	// List
	list, err := s.ListTypes(ctx(), catalog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 type, got %d", len(list))
	}

	// Upsert (re-register same name)
	et2 := &catalog.EventType{
		Entity: entity.New(),
		ID:     id.NewEventTypeID(),
		Definition: catalog.Definition{
			Name:        "invoice.created",
			Description: "Updated description",
			Group:       "invoice",
		},
	}
	if err := s.RegisterType(ctx(), et2); err != nil {
		t.Fatal(err)
	}

	got, _ = s.GetType(ctx(), "invoice.created")
	if got.Definition.Description != "Updated description" {
		t.Fatalf("expected updated description, got %q", got.Definition.Description)
	}
	// ID should be preserved from original registration.
	if et2.ID != et.ID {
		t.Fatalf("expected ID to be preserved on upsert")
	}

	// Delete (soft-delete)
	if err := s.DeleteType(ctx(), "invoice.created"); err != nil {
		t.Fatal(err)
	}

	// Listed without IncludeDeprecated → empty
	list, _ = s.ListTypes(ctx(), catalog.ListOpts{})
	if len(list) != 0 {
		t.Fatalf("expected 0 types after delete, got %d", len(list))
	}

	// Listed with IncludeDeprecated → 1
	list, _ = s.ListTypes(ctx(), catalog.ListOpts{IncludeDeprecated: true})
	if len(list) != 1 {
		t.Fatalf("expected 1 type with IncludeDeprecated, got %d", len(list))
	}

	// Delete not found
	if err := s.DeleteType(ctx(), "does.not.exist"); !errors.Is(err, fanout.ErrEventTypeNotFound) {
		t.Fatalf("expected ErrEventTypeNotFound, got %v", err)
	}
}

func TestCatalogListWithGroupFilter(t *testing.T) {
	s := New()

	for _, name := range []string{"invoice.created", "invoice.paid", "user.created"} {
		group := "invoice"
		if name == "user.created" {
			group = "user"
		}
		et := &catalog.EventType{
			Entity: entity.New(),
			ID:     id.NewEventTypeID(),
			Definition: catalog.Definition{
				Name:  name,
				Group: group,
			},
		}
		if err := s.RegisterType(ctx(), et); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := s.ListTypes(ctx(), catalog.ListOpts{Group: "invoice"})
	if len(list) != 2 {
		t.Fatalf("expected 2 invoice types, got %d", len(list))
	}
}

func TestCatalogListPagination(t *testing.T) {
	s := New()

	for _, name := range []string{"a.type", "b.type", "c.type", "d.type"} {
		et := &catalog.EventType{
			Entity:     entity.New(),
			ID:         id.NewEventTypeID(),
			Definition: catalog.Definition{Name: name},
		}
		if err := s.RegisterType(ctx(), et); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := s.ListTypes(ctx(), catalog.ListOpts{Offset: 1, Limit: 2})
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].Definition.Name != "b.type" || list[1].Definition.Name != "c.type" {
		t.Fatalf("unexpected pagination results: %q, %q", list[0].Definition.Name, list[1].Definition.Name)
	}
}

func TestCatalogMatchTypes(t *testing.T) {
	s := New()

	for _, name := range []string{"invoice.created", "invoice.paid", "user.created"} {
		et := &catalog.EventType{
			Entity:     entity.New(),
			ID:         id.NewEventTypeID(),
			Definition: catalog.Definition{Name: name},
		}
		_ = s.RegisterType(ctx(), et)
	}

	result, _ := s.MatchTypes(ctx(), "invoice.*")
	if len(result) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(result))
	}

	result, _ = s.MatchTypes(ctx(), "*")
	if len(result) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(result))
	}
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

func newWebhook(ownerID string, events []string) *webhook.Webhook {
	return &webhook.Webhook{
		Entity:      entity.New(),
		ID:          id.NewWebhookID(),
		OwnerID:     ownerID,
		Name:        "test hook",
		URL:         "https://example.com/webhook",
		Secret:      "whsec_test",
		Events:      events,
		Active:      true,
		RetryPolicy: webhook.DefaultRetryPolicy(),
	}
}

func TestWebhookCRUD(t *testing.T) {
	s := New()

	wh := newWebhook("owner1", []string{"invoice.*"})

	// Create
	if err := s.CreateWebhook(ctx(), wh); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetWebhook(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID != "owner1" {
		t.Fatalf("got owner %q", got.OwnerID)
	}

	// Get not found
	_, err = s.GetWebhook(ctx(), id.NewWebhookID())
	if !errors.Is(err, fanout.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}

	// Update
	wh.Name = "renamed"
	if err := s.UpdateWebhook(ctx(), wh); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetWebhook(ctx(), wh.ID)
	if got.Name != "renamed" {
		t.Fatalf("expected updated name")
	}

	// Update not found
	fake := newWebhook("owner1", nil)
	if err := s.UpdateWebhook(ctx(), fake); !errors.Is(err, fanout.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}

	// List
	list, err := s.ListWebhooks(ctx(), "owner1", webhook.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1, got %d", len(list))
	}

	// Delete
	if err := s.DeleteWebhook(ctx(), wh.ID); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetWebhook(ctx(), wh.ID)
	if !errors.Is(err, fanout.ErrWebhookNotFound) {
		t.Fatalf("expected deleted")
	}
}

func TestWebhookSetActive(t *testing.T) {
	s := New()

	wh := newWebhook("o1", []string{"*"})
	_ = s.CreateWebhook(ctx(), wh)

	if err := s.SetActive(ctx(), wh.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetWebhook(ctx(), wh.ID)
	if got.Active {
		t.Fatal("expected inactive")
	}

	if err := s.SetActive(ctx(), id.NewWebhookID(), true); !errors.Is(err, fanout.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestResolveWebhooks(t *testing.T) {
	s := New()

	wh1 := newWebhook("o1", []string{"invoice.*"})
	wh2 := newWebhook("o1", []string{"user.*"})
	wh3 := newWebhook("o2", []string{"*"})
	whInactive := newWebhook("o1", []string{"*"})
	whInactive.Active = false

	for _, wh := range []*webhook.Webhook{wh1, wh2, wh3, whInactive} {
		_ = s.CreateWebhook(ctx(), wh)
	}

	// invoice.created → wh1 + wh3 (not wh2, not inactive). Resolution is
	// owner-agnostic: all subscribed active webhooks receive the event.
	result, err := s.ResolveWebhooks(ctx(), "invoice.created")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 resolved, got %d", len(result))
	}
}

func TestWebhookListFilters(t *testing.T) {
	s := New()

	wh1 := newWebhook("o1", []string{"*"})
	wh2 := newWebhook("o1", []string{"*"})
	wh2.Active = false
	_ = s.CreateWebhook(ctx(), wh1)
	_ = s.CreateWebhook(ctx(), wh2)
	_ = s.CreateWebhook(ctx(), newWebhook("o2", []string{"*"}))

	active := true
	list, _ := s.ListWebhooks(ctx(), "o1", webhook.ListOpts{Active: &active})
	if len(list) != 1 {
		t.Fatalf("expected 1 active, got %d", len(list))
	}

	// Empty owner lists everything.
	list, _ = s.ListWebhooks(ctx(), "", webhook.ListOpts{})
	if len(list) != 3 {
		t.Fatalf("expected 3, got %d", len(list))
	}
}

// ──────────────────────────────────────────────────
// integration.Store
// ──────────────────────────────────────────────────

func newSlackIntegration(ownerID string, events ...string) *integration.Integration {
	mappings := make([]integration.EventMapping, 0, len(events))
	for _, e := range events {
		mappings = append(mappings, integration.EventMapping{Event: e, Template: "{{title}}", Enabled: true})
	}
	return &integration.Integration{
		Entity:        entity.New(),
		ID:            id.NewIntegrationID(),
		OwnerID:       ownerID,
		Name:          "team slack",
		Kind:          integration.KindSlack,
		Config:        integration.Config{WebhookURL: "https://hooks.slack.com/services/T/B/X"},
		EventMappings: mappings,
		Active:        true,
	}
}

func TestIntegrationCRUD(t *testing.T) {
	s := New()

	intg := newSlackIntegration("o1", "task.created")

	if err := s.CreateIntegration(ctx(), intg); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetIntegration(ctx(), intg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != integration.KindSlack {
		t.Fatalf("got kind %q", got.Kind)
	}

	_, err = s.GetIntegration(ctx(), id.NewIntegrationID())
	if !errors.Is(err, fanout.ErrIntegrationNotFound) {
		t.Fatalf("expected ErrIntegrationNotFound, got %v", err)
	}

	intg.Name = "renamed"
	if err := s.UpdateIntegration(ctx(), intg); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetIntegration(ctx(), intg.ID)
	if got.Name != "renamed" {
		t.Fatal("expected updated name")
	}

	list, _ := s.ListIntegrations(ctx(), "o1", integration.ListOpts{})
	if len(list) != 1 {
		t.Fatalf("expected 1, got %d", len(list))
	}

	if err := s.DeleteIntegration(ctx(), intg.ID); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetIntegration(ctx(), intg.ID)
	if !errors.Is(err, fanout.ErrIntegrationNotFound) {
		t.Fatal("expected deleted")
	}
}

func TestResolveIntegrations(t *testing.T) {
	s := New()

	withMapping := newSlackIntegration("o1", "task.created")
	otherEvent := newSlackIntegration("o1", "invoice.paid")
	inactive := newSlackIntegration("o1", "task.created")
	inactive.Active = false
	disabledMapping := newSlackIntegration("o1")
	disabledMapping.EventMappings = []integration.EventMapping{
		{Event: "task.created", Enabled: false},
	}

	for _, intg := range []*integration.Integration{withMapping, otherEvent, inactive, disabledMapping} {
		_ = s.CreateIntegration(ctx(), intg)
	}

	result, err := s.ResolveIntegrations(ctx(), "task.created")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0].ID != withMapping.ID {
		t.Fatalf("expected only the active integration with an enabled mapping, got %d", len(result))
	}
}

func TestIntegrationListFilters(t *testing.T) {
	s := New()

	slack := newSlackIntegration("o1", "task.created")
	teams := newSlackIntegration("o1", "task.created")
	teams.Kind = integration.KindTeams
	_ = s.CreateIntegration(ctx(), slack)
	_ = s.CreateIntegration(ctx(), teams)

	list, _ := s.ListIntegrations(ctx(), "o1", integration.ListOpts{Kind: integration.KindTeams})
	if len(list) != 1 || list[0].Kind != integration.KindTeams {
		t.Fatalf("expected 1 teams integration, got %d", len(list))
	}
}

func TestSetIntegrationActive(t *testing.T) {
	s := New()

	intg := newSlackIntegration("o1", "task.created")
	_ = s.CreateIntegration(ctx(), intg)

	if err := s.SetIntegrationActive(ctx(), intg.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetIntegration(ctx(), intg.ID)
	if got.Active {
		t.Fatal("expected inactive")
	}
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func newEvent(eventType string) *event.Event {
	return &event.Event{
		Entity: entity.New(),
		ID:     id.NewEventID(),
		Type:   eventType,
		Data:   map[string]any{"key": "value"},
	}
}

func TestEventCRUD(t *testing.T) {
	s := New()

	evt := newEvent("invoice.created")

	// Create
	if err := s.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetEvent(ctx(), evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "invoice.created" {
		t.Fatalf("got type %q", got.Type)
	}

	// Get not found
	_, err = s.GetEvent(ctx(), id.NewEventID())
	if !errors.Is(err, fanout.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventIdempotencyKey(t *testing.T) {
	s := New()

	evt := newEvent("invoice.created")
	evt.IdempotencyKey = "unique-key-1"

	if err := s.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// Duplicate idempotency key
	evt2 := newEvent("invoice.created")
	evt2.IdempotencyKey = "unique-key-1"
	if err := s.CreateEvent(ctx(), evt2); !errors.Is(err, fanout.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}

	// Empty idempotency key is fine
	evt3 := newEvent("invoice.created")
	if err := s.CreateEvent(ctx(), evt3); err != nil {
		t.Fatal(err)
	}
}

func TestEventListFilters(t *testing.T) {
	s := New()

	for _, typ := range []string{"invoice.created", "invoice.paid", "user.created"} {
		_ = s.CreateEvent(ctx(), newEvent(typ))
	}

	// Filter by type
	list, _ := s.ListEvents(ctx(), event.ListOpts{Type: "invoice.created"})
	if len(list) != 1 {
		t.Fatalf("expected 1, got %d", len(list))
	}

	// All
	list, _ = s.ListEvents(ctx(), event.ListOpts{})
	if len(list) != 3 {
		t.Fatalf("expected 3, got %d", len(list))
	}
}

func TestEventListTimeFilter(t *testing.T) {
	s := New()

	_ = s.CreateEvent(ctx(), newEvent("a"))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	list, _ := s.ListEvents(ctx(), event.ListOpts{From: &past, To: &future})
	if len(list) != 1 {
		t.Fatalf("expected 1, got %d", len(list))
	}

	list, _ = s.ListEvents(ctx(), event.ListOpts{From: &future})
	if len(list) != 0 {
		t.Fatalf("expected 0, got %d", len(list))
	}
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

func newDelivery(evtID, whID id.ID) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		EventID:       evtID,
		WebhookID:     whID,
		EventType:     "test.event",
		Payload:       json.RawMessage(`{"event":"test.event"}`),
		State:         delivery.StatePending,
		MaxAttempts:   5,
		NextAttemptAt: time.Now().Add(-time.Second), // ready for dequeue
	}
}

func TestDeliveryCRUD(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	whID := id.NewWebhookID()
	d := newDelivery(evtID, whID)

	// Enqueue
	if err := s.Enqueue(ctx(), d); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetDelivery(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != delivery.StatePending {
		t.Fatalf("expected pending, got %s", got.State)
	}

	// Update
	d.State = delivery.StateDelivered
	if err := s.UpdateDelivery(ctx(), d); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetDelivery(ctx(), d.ID)
	if got.State != delivery.StateDelivered {
		t.Fatalf("expected delivered, got %s", got.State)
	}

	// Get not found
	_, err = s.GetDelivery(ctx(), id.NewDeliveryID())
	if !errors.Is(err, fanout.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestDeliveryEnqueueBatch(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	ds := []*delivery.Delivery{
		newDelivery(evtID, id.NewWebhookID()),
		newDelivery(evtID, id.NewWebhookID()),
		newDelivery(evtID, id.NewWebhookID()),
	}

	if err := s.EnqueueBatch(ctx(), ds); err != nil {
		t.Fatal(err)
	}

	count, _ := s.CountPending(ctx())
	if count != 3 {
		t.Fatalf("expected 3 pending, got %d", count)
	}
}

func TestDeliveryDequeue(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	for i := 0; i < 5; i++ {
		_ = s.Enqueue(ctx(), newDelivery(evtID, id.NewWebhookID()))
	}

	// Dequeue with limit
	batch, err := s.Dequeue(ctx(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3, got %d", len(batch))
	}

	// Second dequeue should get remaining 2 (first 3 are locked)
	batch2, _ := s.Dequeue(ctx(), 10)
	if len(batch2) != 2 {
		t.Fatalf("expected 2, got %d", len(batch2))
	}

	// Third dequeue should get 0 (all locked)
	batch3, _ := s.Dequeue(ctx(), 10)
	if len(batch3) != 0 {
		t.Fatalf("expected 0, got %d", len(batch3))
	}

	// Update (release lock) on first batch item, then dequeue again
	batch[0].State = delivery.StateDelivered
	_ = s.UpdateDelivery(ctx(), batch[0])

	batch4, _ := s.Dequeue(ctx(), 10)
	// The delivered item shouldn't be dequeued (state != pending)
	if len(batch4) != 0 {
		t.Fatalf("expected 0 (delivered items not dequeued), got %d", len(batch4))
	}
}

func TestDeliveryDequeueRespectsNextAttemptAt(t *testing.T) {
	s := New()

	d := newDelivery(id.NewEventID(), id.NewWebhookID())
	d.NextAttemptAt = time.Now().Add(time.Hour) // future
	_ = s.Enqueue(ctx(), d)

	batch, _ := s.Dequeue(ctx(), 10)
	if len(batch) != 0 {
		t.Fatalf("expected 0 (not ready), got %d", len(batch))
	}
}

func TestDeliveryDequeueReturnsCopies(t *testing.T) {
	s := New()

	d := newDelivery(id.NewEventID(), id.NewWebhookID())
	_ = s.Enqueue(ctx(), d)

	batch, _ := s.Dequeue(ctx(), 1)
	if len(batch) != 1 {
		t.Fatal("expected 1")
	}

	// Mutating the dequeued copy must not leak into the stored delivery.
	batch[0].Attempts = append(batch[0].Attempts, delivery.Attempt{Number: 1})
	got, _ := s.GetDelivery(ctx(), d.ID)
	if got.AttemptCount() != 0 {
		t.Fatal("dequeued delivery should be a copy")
	}
}

func TestDeliveryListByWebhook(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	whID := id.NewWebhookID()

	d1 := newDelivery(evtID, whID)
	d2 := newDelivery(evtID, whID)
	d3 := newDelivery(evtID, id.NewWebhookID()) // different webhook

	_ = s.Enqueue(ctx(), d1)
	_ = s.Enqueue(ctx(), d2)
	_ = s.Enqueue(ctx(), d3)

	list, _ := s.ListByWebhook(ctx(), whID, delivery.ListOpts{})
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
}

func TestDeliveryListByEvent(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	d1 := newDelivery(evtID, id.NewWebhookID())
	d2 := newDelivery(evtID, id.NewWebhookID())
	d3 := newDelivery(id.NewEventID(), id.NewWebhookID()) // different event

	_ = s.Enqueue(ctx(), d1)
	_ = s.Enqueue(ctx(), d2)
	_ = s.Enqueue(ctx(), d3)

	list, _ := s.ListByEvent(ctx(), evtID)
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
}

func TestDeliveryCountPending(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	d1 := newDelivery(evtID, id.NewWebhookID())
	d2 := newDelivery(evtID, id.NewWebhookID())
	_ = s.Enqueue(ctx(), d1)
	_ = s.Enqueue(ctx(), d2)

	// Mark one as delivered
	d1.State = delivery.StateDelivered
	_ = s.UpdateDelivery(ctx(), d1)

	count, _ := s.CountPending(ctx())
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}

func TestDeliveryStats(t *testing.T) {
	s := New()

	whID := id.NewWebhookID()
	now := time.Now().UTC()

	delivered := newDelivery(id.NewEventID(), whID)
	delivered.State = delivery.StateDelivered
	delivered.Attempts = []delivery.Attempt{{Number: 1, Status: delivery.AttemptSuccess}}
	delivered.CompletedAt = &now

	failed := newDelivery(id.NewEventID(), whID)
	failed.State = delivery.StateFailed
	failed.Attempts = []delivery.Attempt{
		{Number: 1, Status: delivery.AttemptFailed},
		{Number: 2, Status: delivery.AttemptFailed},
		{Number: 3, Status: delivery.AttemptFailed},
	}
	failed.CompletedAt = &now

	pending := newDelivery(id.NewEventID(), whID)
	other := newDelivery(id.NewEventID(), id.NewWebhookID())

	for _, d := range []*delivery.Delivery{delivered, failed, pending, other} {
		_ = s.Enqueue(ctx(), d)
	}

	stats, err := s.DeliveryStats(ctx(), whID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Fatalf("total: got %d, want 3", stats.Total)
	}
	if stats.Delivered != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected breakdown: %+v", stats)
	}
	// (1 + 3 + 0) attempts across 3 deliveries, pending included.
	want := 4.0 / 3.0
	if stats.AverageAttempts != want {
		t.Fatalf("average attempts: got %f, want %f", stats.AverageAttempts, want)
	}

	// Nil ID aggregates across all webhooks.
	all, err := s.DeliveryStats(ctx(), id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 4 {
		t.Fatalf("all total: got %d, want 4", all.Total)
	}
	if all.AverageAttempts != 1.0 {
		t.Fatalf("all average attempts: got %f, want 1", all.AverageAttempts)
	}
}

func TestDeliveryListAllWebhooks(t *testing.T) {
	s := New()

	evtID := id.NewEventID()
	_ = s.Enqueue(ctx(), newDelivery(evtID, id.NewWebhookID()))
	_ = s.Enqueue(ctx(), newDelivery(evtID, id.NewWebhookID()))
	_ = s.Enqueue(ctx(), newDelivery(evtID, id.NewWebhookID()))

	list, err := s.ListByWebhook(ctx(), id.Nil, delivery.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3, got %d", len(list))
	}
}

func TestDeliveryUpdateReleasesClaim(t *testing.T) {
	s := New()

	d := newDelivery(id.NewEventID(), id.NewWebhookID())
	_ = s.Enqueue(ctx(), d)

	batch, _ := s.Dequeue(ctx(), 1)
	if len(batch) != 1 {
		t.Fatal("expected 1")
	}

	// Claimed deliveries stay invisible until the outcome is written back.
	batch2, _ := s.Dequeue(ctx(), 1)
	if len(batch2) != 0 {
		t.Fatalf("expected 0 while claimed, got %d", len(batch2))
	}

	// A still-pending write-back (e.g. a throttled attempt) releases the claim.
	batch[0].NextAttemptAt = time.Now().Add(-time.Second)
	_ = s.UpdateDelivery(ctx(), batch[0])

	batch3, _ := s.Dequeue(ctx(), 1)
	if len(batch3) != 1 {
		t.Fatalf("expected requeued delivery, got %d", len(batch3))
	}
}

func TestPurgeDeliveries(t *testing.T) {
	s := New()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	oldDone := newDelivery(id.NewEventID(), id.NewWebhookID())
	oldDone.State = delivery.StateDelivered
	oldDone.CompletedAt = &old

	recentDone := newDelivery(id.NewEventID(), id.NewWebhookID())
	recentDone.State = delivery.StateDelivered
	recentDone.CompletedAt = &recent

	stillPending := newDelivery(id.NewEventID(), id.NewWebhookID())

	for _, d := range []*delivery.Delivery{oldDone, recentDone, stillPending} {
		_ = s.Enqueue(ctx(), d)
	}

	purged, err := s.PurgeDeliveries(ctx(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	if _, err := s.GetDelivery(ctx(), oldDone.ID); !errors.Is(err, fanout.ErrDeliveryNotFound) {
		t.Fatal("old terminal delivery should be gone")
	}
	if _, err := s.GetDelivery(ctx(), stillPending.ID); err != nil {
		t.Fatal("pending delivery must survive purge")
	}
}

func TestHistoryCapEvictsOldestTerminal(t *testing.T) {
	s := NewWithHistoryCap(2)

	now := time.Now().UTC()
	var terminal []*delivery.Delivery
	for i := 0; i < 4; i++ {
		d := newDelivery(id.NewEventID(), id.NewWebhookID())
		d.CreatedAt = now.Add(time.Duration(i) * time.Second)
		d.State = delivery.StateDelivered
		d.CompletedAt = &now
		terminal = append(terminal, d)
		_ = s.Enqueue(ctx(), d)
	}
	pending := newDelivery(id.NewEventID(), id.NewWebhookID())
	_ = s.Enqueue(ctx(), pending)

	// The two oldest terminal deliveries are evicted.
	for _, d := range terminal[:2] {
		if _, err := s.GetDelivery(ctx(), d.ID); !errors.Is(err, fanout.ErrDeliveryNotFound) {
			t.Fatalf("expected %s evicted", d.ID)
		}
	}
	for _, d := range terminal[2:] {
		if _, err := s.GetDelivery(ctx(), d.ID); err != nil {
			t.Fatalf("expected %s kept: %v", d.ID, err)
		}
	}
	if _, err := s.GetDelivery(ctx(), pending.ID); err != nil {
		t.Fatal("pending delivery must never be evicted")
	}
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

func newDLQEntry(evtID, whID id.ID) *dlq.Entry {
	return &dlq.Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		DeliveryID:     id.NewDeliveryID(),
		EventID:        evtID,
		WebhookID:      whID,
		EventType:      "test.event",
		OwnerID:        "o1",
		Payload:        json.RawMessage(`{"test":true}`),
		Error:          "connection refused",
		AttemptCount:   3,
		LastStatusCode: 500,
		FailedAt:       time.Now().UTC(),
	}
}

func TestDLQCRUD(t *testing.T) {
	s := New()

	entry := newDLQEntry(id.NewEventID(), id.NewWebhookID())

	// Push
	if err := s.Push(ctx(), entry); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetDLQ(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error != "connection refused" {
		t.Fatalf("got error %q", got.Error)
	}

	// Get not found
	_, err = s.GetDLQ(ctx(), id.NewDLQID())
	if !errors.Is(err, fanout.ErrDLQNotFound) {
		t.Fatalf("expected ErrDLQNotFound, got %v", err)
	}

	// Count
	count, _ := s.CountDLQ(ctx())
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}

func TestDLQList(t *testing.T) {
	s := New()

	whID := id.NewWebhookID()
	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), whID))
	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), id.NewWebhookID()))

	// List all for owner
	list, _ := s.ListDLQ(ctx(), dlq.ListOpts{OwnerID: "o1"})
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}

	// Filter by webhook
	list, _ = s.ListDLQ(ctx(), dlq.ListOpts{WebhookID: &whID})
	if len(list) != 1 {
		t.Fatalf("expected 1, got %d", len(list))
	}
}

func TestDLQReplay(t *testing.T) {
	s := New()

	entry := newDLQEntry(id.NewEventID(), id.NewWebhookID())
	_ = s.Push(ctx(), entry)

	// Before replay, 0 pending deliveries
	count, _ := s.CountPending(ctx())
	if count != 0 {
		t.Fatalf("expected 0 pending, got %d", count)
	}

	// Replay
	if err := s.Replay(ctx(), entry.ID); err != nil {
		t.Fatal(err)
	}

	// After replay, 1 pending delivery carrying the original envelope
	count, _ = s.CountPending(ctx())
	if count != 1 {
		t.Fatalf("expected 1 pending, got %d", count)
	}
	replayed, _ := s.ListByEvent(ctx(), entry.EventID)
	if len(replayed) != 1 {
		t.Fatal("expected replayed delivery")
	}
	if string(replayed[0].Payload) != string(entry.Payload) {
		t.Fatal("replayed delivery should carry the DLQ payload")
	}
	if replayed[0].MaxAttempts != entry.AttemptCount {
		t.Fatalf("replayed budget: got %d, want %d", replayed[0].MaxAttempts, entry.AttemptCount)
	}

	// Entry should have ReplayedAt set
	got, _ := s.GetDLQ(ctx(), entry.ID)
	if got.ReplayedAt == nil {
		t.Fatal("expected ReplayedAt to be set")
	}

	// Replay not found
	if err := s.Replay(ctx(), id.NewDLQID()); !errors.Is(err, fanout.ErrDLQNotFound) {
		t.Fatalf("expected ErrDLQNotFound, got %v", err)
	}
}

func TestDLQReplayBulk(t *testing.T) {
	s := New()

	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), id.NewWebhookID()))
	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), id.NewWebhookID()))

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	count, err := s.ReplayBulk(ctx(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}

	// Replaying again should return 0 (already replayed)
	count, _ = s.ReplayBulk(ctx(), from, to)
	if count != 0 {
		t.Fatalf("expected 0 on second replay, got %d", count)
	}
}

func TestDLQPurge(t *testing.T) {
	s := New()

	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), id.NewWebhookID()))
	_ = s.Push(ctx(), newDLQEntry(id.NewEventID(), id.NewWebhookID()))

	// Purge entries that failed before "far future" → all
	count, _ := s.Purge(ctx(), time.Now().Add(time.Hour))
	if count != 2 {
		t.Fatalf("expected 2 purged, got %d", count)
	}

	remaining, _ := s.CountDLQ(ctx())
	if remaining != 0 {
		t.Fatalf("expected 0, got %d", remaining)
	}
}
