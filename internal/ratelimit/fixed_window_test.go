package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/ratelimit/store"
)

func newTestFixedWindow(t *testing.T, limit int, window time.Duration) *FixedWindowLimiter {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return NewFixedWindowLimiter(s, limit, window)
}

func TestFixedWindowLimiter_AllowUpToLimit(t *testing.T) {
	limiter := newTestFixedWindow(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 5-(i+1), result.Remaining)
	}
}

func TestFixedWindowLimiter_RejectOverLimit(t *testing.T) {
	limiter := newTestFixedWindow(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	// The (max+1)th request inside the window is rejected.
	result, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newTestFixedWindow(t, 1, time.Minute)
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = limiter.Allow(ctx, "client-2")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "a different client gets its own window")
}

func TestFixedWindowLimiter_WindowElapseResets(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	limiter := NewFixedWindowLimiter(s, 1, time.Minute)
	current := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return current }

	ctx := context.Background()

	result, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Advance past the window boundary: the counter starts fresh.
	current = current.Add(2 * time.Minute)

	result, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFixedWindowLimiter_Reset(t *testing.T) {
	limiter := newTestFixedWindow(t, 1, time.Minute)
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, "client-1"))

	result, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFixedWindowLimiter_Defaults(t *testing.T) {
	limiter := newTestFixedWindow(t, 0, 0)

	result, err := limiter.Allow(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, 100, result.Limit)
}
