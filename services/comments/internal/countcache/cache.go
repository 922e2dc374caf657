// Package countcache caches the post-wide comment count sent with root
// listings.
//
// Primary backend: Redis with TTL (env REDIS_URL).
// If it is not configured, an in-memory cache is used (development only).
package countcache

import (
	"context"
	"errors"
	"time"
)

// Cache stores comment counts per post.
type Cache interface {
	// Get returns the cached count; ok is false on a miss.
	Get(ctx context.Context, postID string) (n int, ok bool, err error)
	Set(ctx context.Context, postID string, n int) error
	Invalidate(ctx context.Context, postID string) error
}

const DefaultTTL = 5 * time.Minute

// New creates the best available cache: Redis > in-memory (dev fallback).
// When isProd is true, the in-memory fallback is not allowed.
func New(redisURL string, ttl time.Duration, isProd bool) (Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisURL != "" {
		return newRedisCache(redisURL, ttl), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL for the comment count cache; in-memory cache is not allowed")
	}
	return newMemoryCache(ttl, time.Now), nil
}

func key(postID string) string { return "comments:count:" + postID }
