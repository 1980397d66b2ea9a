// Package cache provides a Redis-backed cache for published listings and
// per-user permission sets. Every method is a no-op (or a miss) when the
// client is nil, so the API runs unchanged without Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casei/internal/logger"
)

const (
	TTLPublished   = 5 * time.Minute
	TTLPermissions = 10 * time.Minute
)

const (
	PrefixPublished   = "published:"
	PrefixPermissions = "perms:"
)

// ErrMiss is returned when a key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

// Service is the cache contract used by the services layer.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetPublished(ctx context.Context, contentType, query string) ([]byte, error)
	SetPublished(ctx context.Context, contentType, query string, data []byte) error
	InvalidatePublished(ctx context.Context, contentType string) error

	GetPermissions(ctx context.Context, userID string) ([]string, error)
	SetPermissions(ctx context.Context, userID string, codenames []string) error
	InvalidatePermissions(ctx context.Context, userID string) error
	InvalidateAllPermissions(ctx context.Context) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service. client may be nil.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Connect builds the Service for REDIS_URL. An empty url, or a server that
// does not answer, yields a Service on which every call is a miss. The
// returned func closes the client.
func Connect(ctx context.Context, url string) (Service, func()) {
	if url == "" {
		return NewService(nil), func() {}
	}
	client, err := NewClient(ctx, url)
	if err != nil {
		logger.Named("cache").Warnw("redis unavailable, caching disabled", "error", err.Error())
		return NewService(nil), func() {}
	}
	return NewService(client), func() { _ = client.Close() }
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// ========================================
// Published listings
// ========================================

func publishedKey(contentType, query string) string {
	return PrefixPublished + contentType + ":" + query
}

func (c *redisCache) GetPublished(ctx context.Context, contentType, query string) ([]byte, error) {
	if c.client == nil {
		return nil, ErrMiss
	}
	data, err := c.client.Get(ctx, publishedKey(contentType, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *redisCache) SetPublished(ctx context.Context, contentType, query string, data []byte) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, publishedKey(contentType, query), data, TTLPublished).Err()
}

func (c *redisCache) InvalidatePublished(ctx context.Context, contentType string) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixPublished+contentType+":*")
}

// ========================================
// Permission sets
// ========================================

func (c *redisCache) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	var codenames []string
	if err := c.Get(ctx, PrefixPermissions+userID, &codenames); err != nil {
		return nil, err
	}
	return codenames, nil
}

func (c *redisCache) SetPermissions(ctx context.Context, userID string, codenames []string) error {
	return c.Set(ctx, PrefixPermissions+userID, codenames, TTLPermissions)
}

func (c *redisCache) InvalidatePermissions(ctx context.Context, userID string) error {
	return c.Delete(ctx, PrefixPermissions+userID)
}

func (c *redisCache) InvalidateAllPermissions(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.deleteByPattern(ctx, PrefixPermissions+"*")
}

func (c *redisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
