package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/taskhub/taskhub/internal/ratelimit/store"
)

// FixedWindowLimiter counts requests in non-overlapping windows of fixed
// duration. The counter state lives entirely in the injected store, so the
// limiter itself carries no shared mutable state.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(s store.Store, limit int, window time.Duration) *FixedWindowLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if limit <= 0 {
		limit = 100
	}

	return &FixedWindowLimiter{
		store:  s,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// windowStart returns the start of the window containing t.
func (l *FixedWindowLimiter) windowStart(t time.Time) time.Time {
	windowNanos := l.window.Nanoseconds()
	return time.Unix(0, (t.UnixNano()/windowNanos)*windowNanos)
}

// windowKey namespaces the counter key by window start so an elapsed
// window naturally starts from a fresh counter.
func (l *FixedWindowLimiter) windowKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s:fw:%d", key, windowStart.UnixNano())
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	windowStart := l.windowStart(now)
	windowKey := l.windowKey(key, windowStart)

	// Expiry gets a one second buffer so the counter outlives its window
	// under clock skew.
	count, err := l.store.IncrementWithExpiry(ctx, windowKey, 1, l.window+time.Second)
	if err != nil {
		return nil, err
	}

	allowed := count <= int64(l.limit)

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := windowStart.Add(l.window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	windowStart := l.windowStart(l.now())
	return l.store.Delete(ctx, l.windowKey(key, windowStart))
}
