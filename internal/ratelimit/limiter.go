// Package ratelimit provides request rate limiting for the middleware
// pipeline. The default algorithm is a fixed window counter; a token
// bucket variant is available for smoother shaping.
package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/ratelimit/store"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a single request is allowed for the given key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset resets the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAfter is the duration until the rate limit resets.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when not allowed).
	RetryAfter time.Duration
}

// Algorithm names accepted by New.
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc uses the client network address as the rate limit key.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// New creates a limiter from the configuration with the given counter store.
func New(cfg *config.RateLimitConfig, s store.Store) (Limiter, error) {
	if cfg == nil || !cfg.Enabled {
		return NewNoopLimiter(), nil
	}

	switch cfg.Algorithm {
	case AlgorithmFixedWindow, "":
		return NewFixedWindowLimiter(s, cfg.Requests, cfg.Window.Duration()), nil
	case AlgorithmTokenBucket:
		return NewTokenBucketLimiter(cfg.Requests, cfg.Window.Duration(), cfg.Burst), nil
	default:
		return nil, errors.New("unknown rate limit algorithm: " + cfg.Algorithm)
	}
}

// NoopLimiter is a rate limiter that always allows requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(_ context.Context, _ string) error {
	return nil
}
