package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fanouthq/fanout/signature"
	"github.com/fanouthq/fanout/webhook"
)

const defaultMaxResponseBody = 1024 // 1KB cap on response body storage

// Sender performs HTTP webhook delivery.
type Sender struct {
	client       *http.Client
	userAgent    string
	maxRespBytes int64
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration, userAgent string, maxRespBytes int64) *Sender {
	if userAgent == "" {
		userAgent = "Fanout-Webhook/1.0"
	}
	if maxRespBytes <= 0 {
		maxRespBytes = defaultMaxResponseBody
	}
	return &Sender{
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxRespBytes: maxRespBytes,
	}
}

// Send posts the delivery's payload envelope to the webhook and returns the
// result. The body is the exact envelope snapshot taken at enqueue time, so
// every retry sends identical bytes and the signature stays valid.
func (s *Sender) Send(ctx context.Context, wh *webhook.Webhook, d *Delivery) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Standard headers.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Webhook-Event", d.EventType)
	req.Header.Set("X-Webhook-Delivery", d.ID.String())
	req.Header.Set("X-Webhook-Timestamp", d.CreatedAt.UTC().Format(time.RFC3339))

	// Custom webhook headers may not shadow the standard set.
	for k, v := range wh.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	// HMAC signature over the exact request body.
	if wh.Secret != "" {
		req.Header.Set("X-Webhook-Signature", signature.Sign(d.Payload, wh.Secret))
	}

	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	duration := time.Since(start)

	if err != nil {
		return Result{
			Error:    err.Error(),
			Duration: duration,
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, s.maxRespBytes))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			Duration:   duration,
		}
	}

	res := Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		Duration:   duration,
	}
	if !res.Success() {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return res
}
