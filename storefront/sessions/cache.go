package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "session:"

// RedisCache implements the best-effort cache tier on go-redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// creates a Redis-backed cache from a URL, verifying connectivity
func NewRedisCacheFromURL(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) key(sessionKey string) string {
	return cacheKeyPrefix + sessionKey
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()

	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get cached session: %w", err)
	}

	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached session: %w", err)
	}

	return nil
}

// closes the redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying connection for sharing with other
// redis-backed components.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// NoopCache is the cache tier used when no cache is deployed: every read
// misses and writes vanish, so the durable store answers everything.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (NoopCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (NoopCache) Delete(ctx context.Context, key string) error {
	return nil
}
