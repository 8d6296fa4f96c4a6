package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub/taskhub/internal/cache"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/middleware"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/ratelimit"
)

// Options carries the collaborators the server wires into its pipeline.
type Options struct {
	Config   *config.Config
	Logger   observability.Logger
	Metrics  *observability.Metrics
	Handlers *Handlers

	// Guard authenticates guarded routes.
	Guard *middleware.AuthGuard

	// Limiter applies when rate limiting is enabled; nil disables it.
	Limiter ratelimit.Limiter

	// Cache backs the cache-aside middleware on cached routes; nil
	// disables response caching.
	Cache cache.Cache

	// Routes is the route table. Defaults to Routes(Handlers).
	Routes []Route
}

// Server is the HTTP server hosting the API pipeline.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger observability.Logger
	cfg    *config.Config
}

// New assembles the middleware pipeline and route table into a server.
//
// Global order is request ID, logging, recovery, then rate limiting; the
// auth guard and the cache layer mount per route, guard first, so cached
// responses are keyed by an authenticated principal.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if opts.Handlers == nil {
		return nil, fmt.Errorf("server: handlers are required")
	}
	if opts.Guard == nil {
		return nil, fmt.Errorf("server: auth guard is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Routes == nil {
		opts.Routes = Routes(opts.Handlers)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	engine.Use(middleware.Recovery(opts.Logger))

	if opts.Limiter != nil && opts.Config.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:   opts.Limiter,
			Logger:    opts.Logger,
			Metrics:   opts.Metrics,
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}

	var cacheLayer gin.HandlerFunc
	if opts.Cache != nil && opts.Config.Cache.Enabled {
		cacheLayer = middleware.ResponseCache(middleware.CacheConfig{
			Cache:   opts.Cache,
			TTL:     time.Duration(opts.Config.Cache.TTL),
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
		})
	}

	guard := opts.Guard.Handler()
	for _, route := range opts.Routes {
		chain := make([]gin.HandlerFunc, 0, 3)
		if route.Guarded {
			chain = append(chain, guard)
		}
		if route.Cached && cacheLayer != nil {
			chain = append(chain, cacheLayer)
		}
		chain = append(chain, route.Handler)
		engine.Handle(route.Method, route.Path, chain...)
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	srv := &http.Server{
		Addr:         opts.Config.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(opts.Config.Server.ReadTimeout),
		WriteTimeout: time.Duration(opts.Config.Server.WriteTimeout),
	}

	return &Server{
		engine: engine,
		http:   srv,
		logger: opts.Logger,
		cfg:    opts.Config,
	}, nil
}

// Handler returns the underlying handler, used by tests to drive the full
// pipeline without a listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("server starting",
		observability.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.http.Shutdown(ctx)
}
