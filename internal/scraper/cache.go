package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a scrape result is reused.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "scrape:v1:"

// RedisCache stores scrape results in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at redisURL.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisCache(client, ttl), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(pageURL string) string {
	return cacheKeyPrefix + pageURL
}

// Get returns the stored result for pageURL or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	data, err := c.client.Get(ctx, cacheKey(pageURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failure: %w", err)
	}

	var result ScrapeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached scrape: %w", err)
	}
	if runeLen(result.Content) < MinContentLength {
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// Set stores result for pageURL.
func (c *RedisCache) Set(ctx context.Context, pageURL string, result *ScrapeResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal scrape: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(pageURL), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failure: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
