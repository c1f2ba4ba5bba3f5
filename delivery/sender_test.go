package delivery_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
	"github.com/fanouthq/fanout/signature"
	"github.com/fanouthq/fanout/webhook"
)

func newTestWebhook(url string) *webhook.Webhook {
	return &webhook.Webhook{
		Entity:      entity.New(),
		ID:          id.NewWebhookID(),
		OwnerID:     "owner-1",
		Name:        "test hook",
		URL:         url,
		Secret:      "whsec_test_secret_1234567890abcdef1234567890abcdef",
		Events:      []string{"task.created"},
		Active:      true,
		RetryPolicy: webhook.DefaultRetryPolicy(),
	}
}

func newTestDelivery(t *testing.T, wh *webhook.Webhook) *delivery.Delivery {
	t.Helper()
	payload, err := delivery.NewEnvelope("task.created", map[string]any{"title": "ship it"}, nil, wh.ID, wh.Name)
	if err != nil {
		t.Fatal(err)
	}
	return &delivery.Delivery{
		Entity:      entity.New(),
		ID:          id.NewDeliveryID(),
		EventID:     id.NewEventID(),
		WebhookID:   wh.ID,
		EventType:   "task.created",
		Payload:     payload,
		State:       delivery.StatePending,
		MaxAttempts: 3,
	}
}

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook(srv.URL)
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Response != `{"ok":true}` {
		t.Fatalf("unexpected response: %s", result.Response)
	}
	if !result.Success() {
		t.Fatal("expected Success()")
	}

	// The body must be the exact envelope snapshot.
	if string(receivedBody) != string(del.Payload) {
		t.Fatalf("body: got %q, want %q", receivedBody, del.Payload)
	}
	if !strings.Contains(string(receivedBody), `"event":"task.created"`) {
		t.Fatalf("envelope missing event field: %s", receivedBody)
	}

	// Verify standard headers.
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Fatal("missing Content-Type")
	}
	if got := receivedHeaders.Get("User-Agent"); got != "Fanout-Webhook/1.0" {
		t.Fatalf("User-Agent: got %q", got)
	}
	if receivedHeaders.Get("X-Webhook-Event") != "task.created" {
		t.Fatal("missing X-Webhook-Event")
	}
	if receivedHeaders.Get("X-Webhook-Delivery") != del.ID.String() {
		t.Fatal("missing X-Webhook-Delivery")
	}
	if receivedHeaders.Get("X-Webhook-Timestamp") == "" {
		t.Fatal("missing X-Webhook-Timestamp")
	}
}

func TestSenderSignature(t *testing.T) {
	var receivedSig string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Webhook-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook(srv.URL)
	del := newTestDelivery(t, wh)

	sender.Send(context.Background(), wh, del)

	if !strings.HasPrefix(receivedSig, "sha256=") {
		t.Fatalf("signature should start with sha256=, got %q", receivedSig)
	}
	if !signature.Verify(receivedBody, wh.Secret, receivedSig) {
		t.Fatal("signature verification failed")
	}
}

func TestSenderNoSecretNoSignature(t *testing.T) {
	var receivedSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook(srv.URL)
	wh.Secret = ""
	del := newTestDelivery(t, wh)

	sender.Send(context.Background(), wh, del)

	if receivedSig != "" {
		t.Fatalf("expected no signature header, got %q", receivedSig)
	}
}

func TestSenderCustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook(srv.URL)
	wh.Headers = map[string]string{
		"X-Custom-Header": "custom-value",
		"Authorization":   "Bearer token123",
		"X-Webhook-Event": "spoofed", // must not shadow the standard header
	}
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if receivedHeaders.Get("X-Custom-Header") != "custom-value" {
		t.Fatal("missing custom header")
	}
	if receivedHeaders.Get("Authorization") != "Bearer token123" {
		t.Fatal("missing Authorization header")
	}
	if receivedHeaders.Get("X-Webhook-Event") != "task.created" {
		t.Fatal("custom header shadowed X-Webhook-Event")
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(50*time.Millisecond, "", 0)
	wh := newTestWebhook(srv.URL)
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on timeout, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Fatal("expected error on timeout")
	}
	if result.Success() {
		t.Fatal("timeout must not count as success")
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook("http://127.0.0.1:1") // port 1 should refuse connections
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on connection refused, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Fatal("expected error on connection refused")
	}
}

func TestSenderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 0)
	wh := newTestWebhook(srv.URL)
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if result.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", result.StatusCode)
	}
	if result.Response != "internal error" {
		t.Fatalf("unexpected response: %s", result.Response)
	}
	if result.Error == "" {
		t.Fatal("non-2xx should record an error string")
	}
}

func TestSenderResponseCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5*time.Second, "", 1024)
	wh := newTestWebhook(srv.URL)
	del := newTestDelivery(t, wh)

	result := sender.Send(context.Background(), wh, del)

	if len(result.Response) != 1024 {
		t.Fatalf("response should be capped at 1024 bytes, got %d", len(result.Response))
	}
}
