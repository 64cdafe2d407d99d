// Package ratelimit enforces webhook admission limits per platform and sender
// identifier over two fixed windows, requests per minute and requests per
// hour, with a shared burst allowance on top of both caps. Counters live
// behind the CounterStore port so a single instance uses in-process state
// while a fleet shares Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// CounterStore increments and reads windowed counters. Keys are opaque to
// the store; the limiter derives them from platform, sender identifier and
// window start.
type CounterStore interface {
	// Incr adds one to the counter and returns the new value. The ttl is a
	// hint for expiring the counter after its window closes.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// ---------------------------------------------------------------------------
// Limits
// ---------------------------------------------------------------------------

// Limits is the per-platform admission budget. Burst extends both windows:
// with PerMinute 60 and Burst 15, requests 61 through 75 within one minute
// are still admitted and request 76 is rejected.
type Limits struct {
	PerMinute int
	PerHour   int
	Burst     int
	// RetryAfter is a configured floor for the suggested wait on rejection;
	// zero leaves the computed window boundary as the suggestion.
	RetryAfter time.Duration
}

// Decision reports the outcome of one admission check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	// ResetAt is when the governing window rolls over: the minute window
	// while admitted, the exceeded window on rejection.
	ResetAt time.Time
}

// ---------------------------------------------------------------------------
// Limiter
// ---------------------------------------------------------------------------

// Limiter applies per-platform limits against a counter store
type Limiter struct {
	store    CounterStore
	clock    Clock
	logger   *zap.Logger
	limits   map[unified.Platform]Limits
	fallback Limits
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the limiter clock
func WithClock(clock Clock) Option {
	return func(l *Limiter) { l.clock = clock }
}

// WithFallback sets the limits applied to platforms with no explicit entry
func WithFallback(limits Limits) Option {
	return func(l *Limiter) { l.fallback = limits }
}

// NewLimiter creates a limiter over the given store and per-platform limits
func NewLimiter(store CounterStore, limits map[unified.Platform]Limits, logger *zap.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		store:    store,
		clock:    SystemClock(),
		logger:   logger,
		limits:   limits,
		fallback: Limits{PerMinute: 60, PerHour: 1000, Burst: 10},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LimitsFor returns the effective limits for a platform
func (l *Limiter) LimitsFor(platform unified.Platform) Limits {
	if limits, ok := l.limits[platform]; ok {
		return limits
	}
	return l.fallback
}

// Allow checks whether one more request from the identified sender fits
// inside both windows. Counters are scoped to (platform, identifier) so one
// noisy store never starves the platform's other senders. A counter store
// failure admits the request: dropping authentic webhooks over a degraded
// counter backend loses data, letting a few extra through does not.
func (l *Limiter) Allow(ctx context.Context, platform unified.Platform, identifier string) Decision {
	limits := l.LimitsFor(platform)
	now := l.clock.Now()
	minuteEnd := now.Truncate(time.Minute).Add(time.Minute)
	hourEnd := now.Truncate(time.Hour).Add(time.Hour)

	minuteCount, err := l.store.Incr(ctx, windowKey(platform, identifier, "m", now.Truncate(time.Minute)), 2*time.Minute)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, admitting request",
			zap.String("platform", string(platform)),
			zap.String("identifier", identifier),
			zap.Error(err))
		return Decision{Allowed: true, Limit: limits.PerMinute + limits.Burst, ResetAt: minuteEnd}
	}
	hourCount, err := l.store.Incr(ctx, windowKey(platform, identifier, "h", now.Truncate(time.Hour)), 2*time.Hour)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, admitting request",
			zap.String("platform", string(platform)),
			zap.String("identifier", identifier),
			zap.Error(err))
		return Decision{Allowed: true, Limit: limits.PerMinute + limits.Burst, ResetAt: minuteEnd}
	}

	minuteCap := int64(limits.PerMinute + limits.Burst)
	hourCap := int64(limits.PerHour + limits.Burst)

	decision := Decision{
		Allowed: minuteCount <= minuteCap && hourCount <= hourCap,
		Limit:   int(minuteCap),
		ResetAt: minuteEnd,
	}
	if remaining := minuteCap - minuteCount; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	if !decision.Allowed {
		if minuteCount > minuteCap {
			decision.ResetAt = minuteEnd
		} else {
			decision.ResetAt = hourEnd
		}
		decision.RetryAfter = decision.ResetAt.Sub(now)
		if limits.RetryAfter > decision.RetryAfter {
			decision.RetryAfter = limits.RetryAfter
		}
	}
	return decision
}

func windowKey(platform unified.Platform, identifier, window string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s:%d", platform, identifier, window, start.Unix())
}
