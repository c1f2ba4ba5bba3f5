package delivery

import (
	"time"

	"github.com/fanouthq/fanout/webhook"
)

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt succeeded (2xx).
	Delivered Decision = iota

	// Retry means the delivery should be attempted again after backoff.
	Retry

	// Failed means the retry budget is exhausted and the delivery is
	// permanently failed.
	Failed
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	Duration   time.Duration
}

// Success reports whether the attempt got a 2xx response.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Retrier decides what to do after a delivery attempt.
//
// Any non-2xx response or transport error retries until the attempt budget
// is spent; failing webhooks are never disabled automatically — a persistently
// failing webhook just accumulates failed deliveries in the audit history.
type Retrier struct{}

// NewRetrier creates a retrier.
func NewRetrier() *Retrier {
	return &Retrier{}
}

// Decide determines what to do with a delivery after an attempt has been
// recorded on it.
func (r *Retrier) Decide(res Result, d *Delivery) Decision {
	if res.Success() {
		return Delivered
	}
	if d.AttemptCount() >= d.MaxAttempts {
		return Failed
	}
	return Retry
}

// NextAttemptAt returns when the next attempt should run after the given
// failed attempt number, per the webhook's retry policy:
// now + InitialDelay × BackoffMultiplier^(attempt-1).
func (r *Retrier) NextAttemptAt(policy webhook.RetryPolicy, attempt int) time.Time {
	return time.Now().UTC().Add(policy.Backoff(attempt))
}
