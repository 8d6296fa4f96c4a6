package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketTTL is how long an idle per-key bucket is kept before cleanup.
const bucketTTL = 10 * time.Minute

// TokenBucketLimiter shapes traffic with a per-key token bucket refilled at
// limit/window. Bucket state is process-local.
type TokenBucketLimiter struct {
	limit  int
	window time.Duration
	burst  int

	mu      sync.Mutex
	buckets map[string]*bucketEntry
	stopCh  chan struct{}
	once    sync.Once
}

// bucketEntry holds a limiter and its last access time for TTL cleanup.
type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
func NewTokenBucketLimiter(limit int, window time.Duration, burst int) *TokenBucketLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if limit <= 0 {
		limit = 100
	}
	if burst <= 0 {
		burst = limit
	}

	l := &TokenBucketLimiter{
		limit:   limit,
		window:  window,
		burst:   burst,
		buckets: make(map[string]*bucketEntry),
		stopCh:  make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bucket := l.bucket(key)
	allowed := bucket.Allow()

	result := &Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: int(bucket.Tokens()),
	}
	if !allowed {
		// Time until the next token becomes available.
		result.RetryAfter = time.Duration(float64(time.Second) / float64(bucket.Limit()))
		result.ResetAfter = result.RetryAfter
	}

	return result, nil
}

// Reset implements Limiter.
func (l *TokenBucketLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Close stops the cleanup goroutine.
func (l *TokenBucketLimiter) Close() error {
	l.once.Do(func() { close(l.stopCh) })
	return nil
}

// bucket returns the bucket for key, creating it if needed.
func (l *TokenBucketLimiter) bucket(key string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		refill := rate.Limit(float64(l.limit) / l.window.Seconds())
		e = &bucketEntry{limiter: rate.NewLimiter(refill, l.burst)}
		l.buckets[key] = e
	}
	e.lastAccess = now

	return e.limiter
}

// cleanupLoop removes idle buckets.
func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-bucketTTL)
			l.mu.Lock()
			for key, e := range l.buckets {
				if e.lastAccess.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
