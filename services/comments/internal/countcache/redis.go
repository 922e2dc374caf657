package countcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(dsn string, ttl time.Duration) *redisCache {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return &redisCache{client: redis.NewClient(opts), ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, postID string) (int, bool, error) {
	n, err := c.client.Get(ctx, key(postID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *redisCache) Set(ctx context.Context, postID string, n int) error {
	return c.client.Set(ctx, key(postID), n, c.ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, postID string) error {
	return c.client.Del(ctx, key(postID)).Err()
}

func (c *redisCache) Close() error { return c.client.Close() }
