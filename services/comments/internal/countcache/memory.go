package countcache

import (
	"context"
	"sync"
	"time"
)

// memoryCache is a development-only in-memory cache.
type memoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	n       int
	expires time.Time
}

func newMemoryCache(ttl time.Duration, now func() time.Time) *memoryCache {
	return &memoryCache{ttl: ttl, now: now, entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, postID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(postID)]
	if !ok {
		return 0, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key(postID))
		return 0, false, nil
	}
	return e.n, true, nil
}

func (c *memoryCache) Set(_ context.Context, postID string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(postID)] = memoryEntry{n: n, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, postID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(postID))
	return nil
}
