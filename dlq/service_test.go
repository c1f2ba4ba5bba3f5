package dlq_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/store/memory"
	"github.com/fanouthq/fanout/webhook"
)

func ctx() context.Context { return context.Background() }

func newService() (*dlq.Service, *memory.Store) {
	store := memory.New()
	svc := dlq.NewService(store, nil)
	return svc, store
}

func failedDelivery() (*delivery.Delivery, *webhook.Webhook) {
	whID := id.NewWebhookID()
	d := &delivery.Delivery{
		Entity:    entity.New(),
		ID:        id.NewDeliveryID(),
		EventID:   id.NewEventID(),
		WebhookID: whID,
		EventType: "invoice.paid",
		Payload:   json.RawMessage(`{"event":"invoice.paid","data":{"amount":100}}`),
		Attempts: []delivery.Attempt{
			{Number: 1, Status: delivery.AttemptFailed, StatusCode: 500},
			{Number: 2, Status: delivery.AttemptFailed, StatusCode: 500},
			{Number: 3, Status: delivery.AttemptFailed, StatusCode: 500},
		},
		LastStatusCode: 500,
	}
	wh := &webhook.Webhook{
		Entity:  entity.New(),
		ID:      whID,
		OwnerID: "owner-1",
		URL:     "https://example.com/webhook",
	}
	return d, wh
}

func TestPushFailed(t *testing.T) {
	svc, store := newService()

	d, wh := failedDelivery()
	if err := svc.PushFailed(ctx(), d, wh, "server error", 500); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ListDLQ(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.DeliveryID != d.ID {
		t.Fatalf("delivery ID mismatch: got %v, want %v", entry.DeliveryID, d.ID)
	}
	if entry.EventID != d.EventID {
		t.Fatal("event ID mismatch")
	}
	if entry.WebhookID != d.WebhookID {
		t.Fatal("webhook ID mismatch")
	}
	if entry.EventType != "invoice.paid" {
		t.Fatalf("event type: got %q", entry.EventType)
	}
	if entry.OwnerID != "owner-1" {
		t.Fatalf("owner ID: got %q", entry.OwnerID)
	}
	if entry.URL != "https://example.com/webhook" {
		t.Fatal("URL mismatch")
	}
	if string(entry.Payload) != string(d.Payload) {
		t.Fatal("payload should be the delivery envelope")
	}
	if entry.Error != "server error" {
		t.Fatalf("error: got %q", entry.Error)
	}
	if entry.AttemptCount != 3 {
		t.Fatalf("attempt count: got %d, want 3", entry.AttemptCount)
	}
	if entry.LastStatusCode != 500 {
		t.Fatalf("status code: got %d, want 500", entry.LastStatusCode)
	}
}

func TestPushMultipleAndList(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		d, wh := failedDelivery()
		if err := svc.PushFailed(ctx(), d, wh, "err", 500); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := svc.List(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestGetDLQEntry(t *testing.T) {
	svc, _ := newService()

	d, wh := failedDelivery()
	if err := svc.PushFailed(ctx(), d, wh, "err", 500); err != nil {
		t.Fatal(err)
	}

	entries, _ := svc.List(ctx(), dlq.ListOpts{Limit: 1})
	if len(entries) == 0 {
		t.Fatal("expected at least 1 entry")
	}

	got, err := svc.Get(ctx(), entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != entries[0].ID {
		t.Fatal("ID mismatch on Get")
	}
}

func TestListFilterByWebhook(t *testing.T) {
	svc, _ := newService()

	d1, wh1 := failedDelivery()
	d2, wh2 := failedDelivery()
	svc.PushFailed(ctx(), d1, wh1, "err", 500)
	svc.PushFailed(ctx(), d2, wh2, "err", 500)

	entries, err := svc.List(ctx(), dlq.ListOpts{Limit: 10, WebhookID: &wh1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].WebhookID != wh1.ID {
		t.Fatalf("expected 1 entry for webhook %v, got %d", wh1.ID, len(entries))
	}
}

func TestCount(t *testing.T) {
	svc, _ := newService()

	count, err := svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}

	for range 5 {
		d, wh := failedDelivery()
		svc.PushFailed(ctx(), d, wh, "err", 500)
	}

	count, err = svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("expected 5, got %d", count)
	}
}

func TestReplay(t *testing.T) {
	svc, store := newService()

	d, wh := failedDelivery()
	svc.PushFailed(ctx(), d, wh, "err", 500)

	entries, _ := svc.List(ctx(), dlq.ListOpts{Limit: 1})
	if len(entries) == 0 {
		t.Fatal("expected entry")
	}

	if err := svc.Replay(ctx(), entries[0].ID); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetDLQ(ctx(), entries[0].ID)
	if got.ReplayedAt == nil {
		t.Fatal("expected replayed_at to be set")
	}
}

func TestPurge(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		d, wh := failedDelivery()
		svc.PushFailed(ctx(), d, wh, "err", 500)
	}

	purged, err := svc.Purge(ctx(), time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}

	count, _ := svc.Count(ctx())
	if count != 0 {
		t.Fatalf("expected 0 after purge, got %d", count)
	}
}
