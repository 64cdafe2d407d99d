// Package workqueue provides the asynchronous reconciliation machinery: a
// bounded worker pool, per-key serialization, and geometric retry with a
// dead-letter escape hatch for permanently failing items.
package workqueue

import (
	"context"
	"errors"
	"time"

	"github.com/syncbridge/backend/internal/domain/shared"
)

// RetryPolicy controls how transient failures are rescheduled. Delays grow
// geometrically from BaseDelay by Multiplier per attempt, capped at MaxDelay.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the first failure
	MaxRetries int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// Multiplier scales the delay for each subsequent retry
	Multiplier float64
	// MaxDelay caps the computed delay
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the production defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Minute,
	}
}

// Delay returns the wait before retry number attempt (zero-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
		if time.Duration(delay) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d := time.Duration(delay); d < p.MaxDelay {
		return d
	}
	return p.MaxDelay
}

// IsTransient reports whether an error is worth retrying. Validation and
// resolution errors are deterministic: replaying the same input yields the
// same failure, so only failures marked transient re-enter the queue.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrTransientFailure) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
