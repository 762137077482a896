// Package cache provides the two-tier reference data cache used by the
// catalog endpoints. Prediction results are never cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/metrics"
)

const keyPrefix = "ontani:catalog:"

// CatalogCache keeps JSON encoded catalog responses in an in-memory LRU
// (tier 1) and, when configured, in Redis (tier 2). Cache failures are
// logged and treated as misses.
type CatalogCache struct {
	memory *expirable.LRU[string, []byte]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	memoryHits   atomic.Int64
	memoryMisses atomic.Int64
	redisHits    atomic.Int64
	redisMisses  atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	MemoryItems  int   `json:"memory_items"`
}

// NewCatalogCache builds the cache from configuration, connecting to Redis
// when a URL is set.
func NewCatalogCache(cfg domain.CacheConfig, logger *logrus.Logger) (*CatalogCache, error) {
	if cfg.RedisURL == "" {
		return NewCatalogCacheWithClient(cfg, nil, logger), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCatalogCacheWithClient(cfg, client, logger), nil
}

// NewCatalogCacheWithClient builds the cache around an existing Redis client,
// which may be nil for a memory-only cache.
func NewCatalogCacheWithClient(cfg domain.CacheConfig, client *redis.Client, logger *logrus.Logger) *CatalogCache {
	size := cfg.MemorySize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &CatalogCache{
		memory: expirable.NewLRU[string, []byte](size, nil, ttl),
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *CatalogCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if data, ok := c.memory.Get(key); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			c.memoryHits.Add(1)
			metrics.RecordCacheLookup("memory", true)
			return true
		}
		c.memory.Remove(key)
	}
	c.memoryMisses.Add(1)
	metrics.RecordCacheLookup("memory", false)

	if c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("Redis cache read failed")
		}
		c.redisMisses.Add(1)
		metrics.RecordCacheLookup("redis", false)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, keyPrefix+key)
		c.redisMisses.Add(1)
		metrics.RecordCacheLookup("redis", false)
		return false
	}

	c.redisHits.Add(1)
	metrics.RecordCacheLookup("redis", true)
	c.memory.Add(key, data)
	return true
}

// Set stores value under key in every tier.
func (c *CatalogCache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return
	}

	c.memory.Add(key, data)

	if c.redis != nil {
		if err := c.redis.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Redis cache write failed")
		}
	}
}

// Purge drops every memory entry and every Redis entry under the catalog prefix.
func (c *CatalogCache) Purge(ctx context.Context) error {
	c.memory.Purge()
	if c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting cache key: %w", err)
		}
	}
	return iter.Err()
}

// Ping checks the Redis tier. A memory-only cache is always healthy.
func (c *CatalogCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Distributed reports whether a Redis tier is attached.
func (c *CatalogCache) Distributed() bool {
	return c.redis != nil
}

// Stats returns the current counters.
func (c *CatalogCache) Stats() Stats {
	return Stats{
		MemoryHits:   c.memoryHits.Load(),
		MemoryMisses: c.memoryMisses.Load(),
		RedisHits:    c.redisHits.Load(),
		RedisMisses:  c.redisMisses.Load(),
		MemoryItems:  c.memory.Len(),
	}
}

// Close releases the Redis client.
func (c *CatalogCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
