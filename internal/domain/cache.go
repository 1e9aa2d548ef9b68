package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "none", "memory" or "redis"
	Type string `mapstructure:"type" json:"type"`

	// Local LRU cache settings
	LocalMaxSize int           `mapstructure:"localMaxSize" json:"localMaxSize"`
	LocalTTL     time.Duration `mapstructure:"localTTL" json:"localTTL"`

	// Redis settings
	RedisAddr     string `mapstructure:"redisAddr" json:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword" json:"-"`
	RedisDB       int    `mapstructure:"redisDB" json:"redisDB"`

	// Two-phase settings
	EnableTwoPhase bool `mapstructure:"enableTwoPhase" json:"enableTwoPhase"` // If true, check local first, then Redis

	// AlertTTL bounds how long per-account alert listings stay cached.
	AlertTTL time.Duration `mapstructure:"alertTTL" json:"alertTTL"`
}
