package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/api"
	"github.com/fanouthq/fanout/store/memory"
)

// testServer creates a Handler backed by a memory store and returns the test server.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	f, err := fanout.New(fanout.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("fanout.New: %v", err)
	}

	h := api.NewHandler(f, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// --- Event Types ---

func TestEventTypes_CRUD(t *testing.T) {
	srv := testServer(t)

	// Create
	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":        "order.created",
		"description": "Fired when an order is created",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var et map[string]any
	decodeBody(t, resp, &et)
	def, _ := et["definition"].(map[string]any)
	if def == nil || def["name"] != "order.created" {
		t.Fatalf("expected definition.name order.created, got %v", et)
	}

	// Get by name
	resp = doJSON(t, "GET", srv.URL+"/event-types/order.created", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// List
	resp = doJSON(t, "GET", srv.URL+"/event-types", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 event type, got %d", len(list))
	}

	// Delete (soft-delete marks as deprecated)
	resp = doJSON(t, "DELETE", srv.URL+"/event-types/order.created", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get after soft-delete returns 200 with deprecated=true
	resp = doJSON(t, "GET", srv.URL+"/event-types/order.created", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get after delete: expected 200, got %d", resp.StatusCode)
	}
	var deletedET map[string]any
	decodeBody(t, resp, &deletedET)
	if deletedET["deprecated"] != true {
		t.Fatalf("expected deprecated=true, got %v", deletedET["deprecated"])
	}
}

func TestEventTypes_CreateMissingName(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"description": "no name",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Webhooks ---

func TestWebhooks_CRUD(t *testing.T) {
	srv := testServer(t)

	// Create
	resp := doJSON(t, "POST", srv.URL+"/webhooks", map[string]any{
		"owner_id": "user-1",
		"name":     "order hook",
		"url":      "https://example.com/webhook",
		"events":   []string{"order.*"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var wh map[string]any
	decodeBody(t, resp, &wh)
	whID, ok := wh["id"].(string)
	if !ok || whID == "" {
		t.Fatal("expected non-empty webhook ID")
	}
	if secret, _ := wh["secret"].(string); secret == "" {
		t.Fatal("expected secret in create response")
	}

	// Get: secret must not leak outside the create response
	resp = doJSON(t, "GET", srv.URL+"/webhooks/"+whID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var fetched map[string]any
	decodeBody(t, resp, &fetched)
	if _, leaked := fetched["secret"]; leaked {
		t.Fatal("secret must not be serialized on get")
	}

	// List
	resp = doJSON(t, "GET", srv.URL+"/webhooks?owner_id=user-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var whs []map[string]any
	decodeBody(t, resp, &whs)
	if len(whs) != 1 {
		t.Fatalf("expected 1 webhook, got %d", len(whs))
	}

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/webhooks/"+whID, map[string]any{
		"url":    "https://example.com/updated",
		"events": []string{"order.*", "invoice.*"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["url"] != "https://example.com/updated" {
		t.Fatalf("expected updated URL, got %v", updated["url"])
	}

	// Disable
	resp = doJSON(t, "PATCH", srv.URL+"/webhooks/"+whID+"/disable", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Enable
	resp = doJSON(t, "PATCH", srv.URL+"/webhooks/"+whID+"/enable", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("enable: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Rotate secret
	resp = doJSON(t, "POST", srv.URL+"/webhooks/"+whID+"/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var rotated map[string]string
	decodeBody(t, resp, &rotated)
	if rotated["secret"] == "" {
		t.Fatal("expected new secret")
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/webhooks/"+whID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Get after delete
	resp = doJSON(t, "GET", srv.URL+"/webhooks/"+whID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhooks_InvalidID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/webhooks/not-a-typeid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhooks_ListRequiresOwner(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/webhooks", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Integrations ---

func TestIntegrations_CRUD(t *testing.T) {
	srv := testServer(t)

	// Create
	resp := doJSON(t, "POST", srv.URL+"/integrations", map[string]any{
		"kind":     "slack",
		"owner_id": "user-1",
		"name":     "ops channel",
		"config":   map[string]any{"webhook_url": "https://hooks.slack.com/services/T/B/X"},
		"event_mappings": []map[string]any{
			{"event": "order.created", "template": "New order!", "enabled": true},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var intg map[string]any
	decodeBody(t, resp, &intg)
	intgID, ok := intg["id"].(string)
	if !ok || intgID == "" {
		t.Fatal("expected non-empty integration ID")
	}

	// Get
	resp = doJSON(t, "GET", srv.URL+"/integrations/"+intgID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// List filtered by kind
	resp = doJSON(t, "GET", srv.URL+"/integrations?owner_id=user-1&kind=slack", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var intgs []map[string]any
	decodeBody(t, resp, &intgs)
	if len(intgs) != 1 {
		t.Fatalf("expected 1 integration, got %d", len(intgs))
	}

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/integrations/"+intgID, map[string]any{
		"name": "renamed channel",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["name"] != "renamed channel" {
		t.Fatalf("expected renamed channel, got %v", updated["name"])
	}

	// Disable
	resp = doJSON(t, "PATCH", srv.URL+"/integrations/"+intgID+"/disable", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/integrations/"+intgID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIntegrations_CreateUnknownKind(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/integrations", map[string]any{
		"kind":     "carrier-pigeon",
		"owner_id": "user-1",
		"name":     "nope",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Events ---

func TestEvents_TriggerAndList(t *testing.T) {
	srv := testServer(t)

	// Subscribe a webhook so the trigger fans out.
	resp := doJSON(t, "POST", srv.URL+"/webhooks", map[string]any{
		"owner_id": "user-1",
		"name":     "order hook",
		"url":      "https://example.com/webhook",
		"events":   []string{"order.*"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create webhook: expected 201, got %d", resp.StatusCode)
	}
	var wh map[string]any
	decodeBody(t, resp, &wh)
	whID := wh["id"].(string)

	// Trigger
	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "order.created",
		"data": map[string]any{"orderId": "o-1", "amount": 42},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger: expected 202, got %d", resp.StatusCode)
	}
	var evt map[string]any
	decodeBody(t, resp, &evt)
	evtID, ok := evt["id"].(string)
	if !ok || evtID == "" {
		t.Fatal("expected non-empty event ID")
	}

	// List events
	resp = doJSON(t, "GET", srv.URL+"/events?type=order.created", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list events: expected 200, got %d", resp.StatusCode)
	}
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// Get event
	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get event: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delivery history for the event
	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("event deliveries: expected 200, got %d", resp.StatusCode)
	}
	var eventDeliveries []map[string]any
	decodeBody(t, resp, &eventDeliveries)
	if len(eventDeliveries) != 1 {
		t.Fatalf("expected 1 delivery for event, got %d", len(eventDeliveries))
	}

	// Delivery history for the webhook
	resp = doJSON(t, "GET", srv.URL+"/webhooks/"+whID+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook deliveries: expected 200, got %d", resp.StatusCode)
	}
	var whDeliveries []map[string]any
	decodeBody(t, resp, &whDeliveries)
	if len(whDeliveries) != 1 {
		t.Fatalf("expected 1 delivery for webhook, got %d", len(whDeliveries))
	}
	if whDeliveries[0]["state"] != "pending" {
		t.Fatalf("expected pending delivery, got %v", whDeliveries[0]["state"])
	}
}

func TestEvents_TriggerMissingType(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"data": map[string]any{"orderId": "o-1"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_TriggerDeprecatedType(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":        "legacy.ping",
		"description": "old event",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "DELETE", srv.URL+"/event-types/legacy.ping", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deprecate: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "legacy.ping",
		"data": map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for deprecated type, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_TriggerSchemaViolation(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":        "order.created",
		"description": "with schema",
		"schema": map[string]any{
			"type":     "object",
			"required": []string{"orderId"},
			"properties": map[string]any{
				"orderId": map[string]any{"type": "string"},
			},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "order.created",
		"data": map[string]any{"amount": 42},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for schema violation, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/webhooks", map[string]any{
		"owner_id": "user-1",
		"name":     "hook",
		"url":      "https://example.com/webhook",
		"events":   []string{"*"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create webhook: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "anything.happened",
		"data": map[string]any{},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger: expected 202, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]float64
	decodeBody(t, resp, &stats)
	if stats["total"] != 1 || stats["pending"] != 1 {
		t.Fatalf("expected 1 total/1 pending, got %v", stats)
	}
	if stats["delivered"] != 0 || stats["failed"] != 0 {
		t.Fatalf("expected no outcomes yet, got %v", stats)
	}
	if stats["dlq_size"] != 0 {
		t.Fatalf("expected empty DLQ, got %v", stats["dlq_size"])
	}

	// Unscoped delivery history sees the queued delivery too.
	resp = doJSON(t, "GET", srv.URL+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliveries: expected 200, got %d", resp.StatusCode)
	}
	var all []map[string]any
	decodeBody(t, resp, &all)
	if len(all) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(all))
	}
	if all[0]["state"] != "pending" {
		t.Fatalf("expected pending, got %v", all[0]["state"])
	}
}

// --- DLQ ---

func TestDLQ_EmptyListAndBadReplay(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/dlq", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/dlq/not-an-id/replay", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad DLQ ID, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/dlq/replay", map[string]any{
		"from": "not-a-time",
		"to":   "2026-01-01T00:00:00Z",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time range, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
