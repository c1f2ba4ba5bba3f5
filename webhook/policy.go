package webhook

import (
	"math"
	"time"
)

// RetryPolicy controls how many delivery attempts a webhook gets and how the
// delay between attempts grows.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts, including the first. Minimum 1.
	MaxRetries int `json:"max_retries"`

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration `json:"initial_delay"`

	// BackoffMultiplier scales the delay for each subsequent attempt. Must be > 1.
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryPolicy returns the policy applied when a webhook is created
// without one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based):
// InitialDelay * BackoffMultiplier^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	return time.Duration(d)
}

// Validate reports whether the policy is usable.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 1 {
		return &ValidationError{Field: "retry_policy.max_retries", Message: "must be at least 1"}
	}
	if p.BackoffMultiplier <= 1 {
		return &ValidationError{Field: "retry_policy.backoff_multiplier", Message: "must be greater than 1"}
	}
	if p.InitialDelay <= 0 {
		return &ValidationError{Field: "retry_policy.initial_delay", Message: "must be positive"}
	}
	return nil
}

// IsZero reports whether the policy is unset.
func (p RetryPolicy) IsZero() bool {
	return p.MaxRetries == 0 && p.InitialDelay == 0 && p.BackoffMultiplier == 0
}
