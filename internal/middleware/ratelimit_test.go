package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/ratelimit"
	"github.com/taskhub/taskhub/internal/ratelimit/store"
)

func rateLimitRouter(t *testing.T, limit int, skipPaths ...string) *gin.Engine {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	limiter := ratelimit.NewFixedWindowLimiter(s, limit, time.Minute)

	engine := gin.New()
	engine.Use(RateLimit(RateLimitConfig{
		Limiter:   limiter,
		Logger:    observability.NopLogger(),
		SkipPaths: skipPaths,
	}))
	handler := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	engine.GET("/api/todos", handler)
	engine.GET("/healthz", handler)

	return engine
}

func doRequest(engine *gin.Engine, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRateLimit_OverLimitReturns429(t *testing.T) {
	engine := rateLimitRouter(t, 3)

	for i := 0; i < 3; i++ {
		w := doRequest(engine, "/api/todos", "10.0.0.1:1234")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doRequest(engine, "/api/todos", "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	engine := rateLimitRouter(t, 5)

	w := doRequest(engine, "/api/todos", "10.0.0.1:1234")

	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	engine := rateLimitRouter(t, 1)

	w := doRequest(engine, "/api/todos", "10.0.0.1:1234")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, "/api/todos", "10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "same host, different port shares the key")

	w = doRequest(engine, "/api/todos", "10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, w.Code, "different host gets its own window")
}

func TestRateLimit_SkipPaths(t *testing.T) {
	engine := rateLimitRouter(t, 1, "/healthz")

	w := doRequest(engine, "/api/todos", "10.0.0.1:1234")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(engine, "/api/todos", "10.0.0.1:1234").Code)

	for i := 0; i < 5; i++ {
		w = doRequest(engine, "/healthz", "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

type failingLimiter struct{}

func (f *failingLimiter) Allow(context.Context, string) (*ratelimit.Result, error) {
	return nil, errors.New("counter store down")
}

func (f *failingLimiter) Reset(context.Context, string) error { return nil }

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimit(RateLimitConfig{
		Limiter: &failingLimiter{},
		Logger:  observability.NopLogger(),
	}))
	engine.GET("/api/todos", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := doRequest(engine, "/api/todos", "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, w.Code)
}
