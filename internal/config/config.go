// Package config provides configuration types and loading for the server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend type constants shared by the cache and rate limit configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Storage type constants.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the root configuration for the server.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Log contains logging configuration.
	Log LogConfig `yaml:"log"`

	// Auth contains token and credential configuration.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit contains rate limiting configuration.
	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Cache contains response cache configuration.
	Cache CacheConfig `yaml:"cache"`

	// Storage contains persistence configuration.
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `yaml:"addr"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout Duration `yaml:"readTimeout,omitempty"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the encoder format: json or console.
	Format string `yaml:"format"`

	// Output is the log destination: stdout or stderr.
	Output string `yaml:"output"`
}

// AuthConfig contains token service and password hashing configuration.
type AuthConfig struct {
	// JWTSecret is the HMAC signing secret. Overridden by TASKHUB_JWT_SECRET.
	JWTSecret string `yaml:"jwtSecret"`

	// TokenTTL is the bearer token lifetime.
	TokenTTL Duration `yaml:"tokenTTL,omitempty"`

	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost int `yaml:"bcryptCost,omitempty"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	// Enabled indicates whether rate limiting is enabled.
	Enabled bool `yaml:"enabled"`

	// Algorithm selects the limiter: fixed_window or token_bucket.
	Algorithm string `yaml:"algorithm,omitempty"`

	// Requests is the maximum number of requests allowed per window.
	Requests int `yaml:"requests,omitempty"`

	// Window is the time window for the limit.
	Window Duration `yaml:"window,omitempty"`

	// Burst is the maximum burst size for the token bucket algorithm.
	Burst int `yaml:"burst,omitempty"`

	// Store selects the counter backend: memory or redis.
	Store string `yaml:"store,omitempty"`

	// RedisURL is the Redis connection URL when Store is redis.
	RedisURL string `yaml:"redisURL,omitempty"`
}

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	// Enabled indicates whether response caching is enabled.
	Enabled bool `yaml:"enabled"`

	// Type is the cache backend: memory or redis.
	Type string `yaml:"type,omitempty"`

	// TTL is the time-to-live for cached responses.
	TTL Duration `yaml:"ttl,omitempty"`

	// MaxEntries bounds the memory cache.
	MaxEntries int `yaml:"maxEntries,omitempty"`

	// KeyPrefix is prepended to every cache key.
	KeyPrefix string `yaml:"keyPrefix,omitempty"`

	// RedisURL is the Redis connection URL when Type is redis.
	RedisURL string `yaml:"redisURL,omitempty"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Type is the store backend: memory or postgres.
	Type string `yaml:"type,omitempty"`

	// PostgresDSN is the connection string when Type is postgres.
	// Overridden by TASKHUB_POSTGRES_DSN.
	PostgresDSN string `yaml:"postgresDSN,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			TokenTTL:   Duration(time.Hour),
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Algorithm: "fixed_window",
			Requests:  100,
			Window:    Duration(15 * time.Minute),
			Store:     BackendMemory,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Type:       BackendMemory,
			TTL:        Duration(time.Hour),
			MaxEntries: 10000,
		},
		Storage: StorageConfig{
			Type: StorageMemory,
		},
	}
}

// Load reads the configuration file at path, applies it over the defaults,
// and then applies environment overrides. An empty path returns defaults
// with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides for secrets.
func (c *Config) applyEnv() {
	if v := os.Getenv("TASKHUB_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TASKHUB_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("TASKHUB_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		c.RateLimit.RedisURL = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rateLimit.requests must be positive")
	}
	if c.RateLimit.Store == BackendRedis && c.RateLimit.RedisURL == "" {
		return fmt.Errorf("rateLimit.redisURL is required for the redis store")
	}
	if c.Cache.Type == BackendRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redisURL is required for the redis cache")
	}
	if c.Storage.Type == StoragePostgres && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgresDSN is required for postgres storage")
	}
	return nil
}
