package ratelimit

import (
	"context"
	"time"

	"admission-chatbot-be/internal/pkg/logger"
)

// Identity is the caller of a chat request. Authenticated identities are
// never throttled; anonymous visitors share a fixed-window quota.
type Identity struct {
	Key           string // "visitor:<id>" or "user:<id>"
	Authenticated bool
}

// Result is the outcome of a single gate check.
type Result struct {
	Allowed   bool          `json:"allowed"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
	ResetTime time.Time     `json:"reset_time"`
}

// Policy describes the active limit for external callers (UI banner etc).
type Policy struct {
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
	Description   string `json:"description"`
}

// CounterStore is the persistence boundary for window counters. Incr must be
// atomic: concurrent calls for the same key may never observe the same count.
type CounterStore interface {
	// Incr increments the counter for key, starting a new window of the
	// given duration when none is active. It returns the incremented count
	// and the remaining time until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Limiter gates anonymous chat usage with a fixed-window counter.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	log    logger.ILogger
}

func NewLimiter(store CounterStore, limit int, window time.Duration, log logger.ILogger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// CheckAndConsume admits or rejects one request for the identity. The
// increment and the limit check ride on a single atomic store operation, so
// two racing requests from the same visitor cannot both take the last slot.
// When the store is unreachable the limiter fails open: chat availability
// outranks strict quota enforcement.
func (l *Limiter) CheckAndConsume(ctx context.Context, identity Identity) Result {
	now := time.Now()

	if identity.Authenticated {
		return Result{
			Allowed:   true,
			Remaining: l.limit,
			ResetIn:   0,
			ResetTime: now,
		}
	}

	count, resetIn, err := l.store.Incr(ctx, l.key(identity), l.window)
	if err != nil {
		l.log.Warn("RateLimiter", "Counter store unreachable, failing open", map[string]interface{}{
			"identity": identity.Key,
			"error":    err.Error(),
		})
		return Result{
			Allowed:   true,
			Remaining: l.limit,
			ResetIn:   l.window,
			ResetTime: now.Add(l.window),
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(l.limit),
		Remaining: remaining,
		ResetIn:   resetIn,
		ResetTime: now.Add(resetIn),
	}
}

// Policy returns the read-only description of the active limit.
func (l *Limiter) Policy() Policy {
	return Policy{
		Limit:         l.limit,
		WindowSeconds: int(l.window.Seconds()),
		Description:   "Anonymous visitors may send a limited number of questions per window. Sign in to lift the limit.",
	}
}

func (l *Limiter) key(identity Identity) string {
	return "ratelimit:" + identity.Key
}
