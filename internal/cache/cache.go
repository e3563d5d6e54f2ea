package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache fronts the public site endpoints; a nil *Cache is a valid no-op so
// the service runs without Redis in development.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...).Err()
}

func PublicMenuKey(restaurantCode string) string {
	return "public:menu:" + restaurantCode
}

func PublicSiteKey(restaurantCode string) string {
	return "public:site:" + restaurantCode
}
