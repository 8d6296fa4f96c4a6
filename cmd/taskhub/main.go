// Package main is the entry point for the taskhub API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskhub/taskhub/internal/auth/password"
	"github.com/taskhub/taskhub/internal/auth/token"
	"github.com/taskhub/taskhub/internal/cache"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/middleware"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/ratelimit"
	ratestore "github.com/taskhub/taskhub/internal/ratelimit/store"
	"github.com/taskhub/taskhub/internal/server"
	"github.com/taskhub/taskhub/internal/store"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting taskhub",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	run(cfg, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("TASKHUB_CONFIG_PATH", ""),
		"Path to configuration file (defaults apply when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("taskhub version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes and registers the global logger.
func initLogger(cfg *config.Config) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// run wires the application together and serves until a termination signal.
func run(cfg *config.Config, logger observability.Logger) {
	ctx := context.Background()

	accounts, todos, posts, closeStores := buildStores(ctx, cfg, logger)
	defer closeStores()

	responseCache, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		logger.Fatal("failed to initialize cache", observability.Error(err))
	}
	defer func() { _ = responseCache.Close() }()

	limiter := buildLimiter(cfg, logger)

	tokens, err := token.NewService([]byte(cfg.Auth.JWTSecret),
		token.WithTTL(time.Duration(cfg.Auth.TokenTTL)))
	if err != nil {
		logger.Fatal("failed to initialize token service", observability.Error(err))
	}

	metrics := observability.NewMetrics("")
	hasher := password.NewHasher(cfg.Auth.BcryptCost)
	handlers := server.NewHandlers(accounts, todos, posts, hasher, tokens, responseCache, logger)
	guard := middleware.NewAuthGuard(tokens, accounts, logger, metrics)

	srv, err := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Handlers: handlers,
		Guard:    guard,
		Limiter:  limiter,
		Cache:    responseCache,
	})
	if err != nil {
		logger.Fatal("failed to initialize server", observability.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", observability.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
	}
}

// buildStores creates the persistence layer for the configured backend.
func buildStores(ctx context.Context, cfg *config.Config, logger observability.Logger) (store.AccountStore, store.TodoStore, store.PostStore, func()) {
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		db, err := sql.Open("pgx", cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", observability.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to reach postgres", observability.Error(err))
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("failed to apply schema", observability.Error(err))
		}
		stores := store.NewPostgresStores(db)
		logger.Info("using postgres storage")
		return stores.Accounts, stores.Todos, stores.Posts, func() { _ = db.Close() }
	default:
		stores := store.NewMemoryStores()
		logger.Info("using in-memory storage")
		return stores.Accounts, stores.Todos, stores.Posts, func() {}
	}
}

// buildLimiter creates the rate limiter, or nil when disabled.
func buildLimiter(cfg *config.Config, logger observability.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	var counter ratestore.Store
	if cfg.RateLimit.Store == config.BackendRedis {
		redisCounter, err := ratestore.NewRedisStore(cfg.RateLimit.RedisURL, "")
		if err != nil {
			logger.Fatal("failed to connect rate limit store", observability.Error(err))
		}
		counter = redisCounter
	} else {
		counter = ratestore.NewMemoryStore()
	}

	limiter, err := ratelimit.New(&cfg.RateLimit, counter)
	if err != nil {
		logger.Fatal("failed to initialize rate limiter", observability.Error(err))
	}
	return limiter
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
