package delivery

import (
	"encoding/json"
	"time"

	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// State represents the current state of a delivery.
type State string

const (
	// StatePending indicates the delivery is awaiting an attempt.
	StatePending State = "pending"

	// StateDelivered indicates the delivery was successfully sent.
	// Terminal: a delivered delivery never transitions again.
	StateDelivered State = "delivered"

	// StateFailed indicates the delivery permanently failed after exhausting
	// its retry budget. Terminal.
	StateFailed State = "failed"
)

// Delivery is one unit of work: one event occurrence delivered to one webhook.
// The payload is an immutable envelope snapshot taken at queue time.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery.
	ID id.ID `json:"id"`

	// WebhookID references the target webhook.
	WebhookID id.ID `json:"webhook_id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// EventType is the event type name, denormalized for filtering and headers.
	EventType string `json:"event_type"`

	// Payload is the JSON envelope snapshot POSTed to the webhook URL.
	Payload json.RawMessage `json:"payload"`

	// Attempts is the ordered history of HTTP attempts. Attempt numbers are
	// contiguous starting at 1.
	Attempts []Attempt `json:"attempts"`

	// State is the current delivery state.
	State State `json:"state"`

	// MaxAttempts is the total attempt budget, snapshotted from the webhook's
	// retry policy at queue time.
	MaxAttempts int `json:"max_attempts"`

	// NextAttemptAt is when the next attempt should occur.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// DeliveredAt is set when the delivery succeeds.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// CompletedAt is set when the delivery reaches a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AttemptCount returns the number of attempts made so far.
func (d *Delivery) AttemptCount() int {
	return len(d.Attempts)
}

// Terminal reports whether the delivery has reached a terminal state.
func (d *Delivery) Terminal() bool {
	return d.State == StateDelivered || d.State == StateFailed
}

// AttemptStatus is the outcome of a single attempt.
type AttemptStatus string

const (
	// AttemptSuccess marks a 2xx response.
	AttemptSuccess AttemptStatus = "success"

	// AttemptFailed marks a non-2xx response or transport error.
	AttemptFailed AttemptStatus = "failed"
)

// Attempt is one HTTP call within a delivery's retry sequence.
type Attempt struct {
	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// Number is the 1-based position in the delivery's attempt sequence.
	Number int `json:"number"`

	// Status is the attempt outcome.
	Status AttemptStatus `json:"status"`

	// StatusCode is the HTTP status code, 0 on transport failure.
	StatusCode int `json:"status_code,omitempty"`

	// Response is the response body, best-effort, capped.
	Response string `json:"response,omitempty"`

	// Error is the failure detail on non-2xx or transport error.
	Error string `json:"error,omitempty"`

	// Timestamp is when the attempt started.
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is the attempt latency in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// Stats aggregates delivery outcomes for the audit surface.
type Stats struct {
	Total           int64   `json:"total"`
	Delivered       int64   `json:"delivered"`
	Failed          int64   `json:"failed"`
	Pending         int64   `json:"pending"`
	AverageAttempts float64 `json:"average_attempts"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
