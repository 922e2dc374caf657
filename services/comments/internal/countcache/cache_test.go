package countcache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMemoryCache_MissThenHit(t *testing.T) {
	c := newMemoryCache(time.Minute, time.Now)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "p1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	_ = c.Set(ctx, "p1", 7)
	n, ok, err := c.Get(ctx, "p1")
	if err != nil || !ok || n != 7 {
		t.Fatalf("expected hit with 7, got %d ok=%v err=%v", n, ok, err)
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newMemoryCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_ = c.Set(ctx, "p1", 3)
	now = now.Add(59 * time.Second)
	if _, ok, _ := c.Get(ctx, "p1"); !ok {
		t.Fatal("entry expired too early")
	}
	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "p1"); ok {
		t.Fatal("expected entry to expire after ttl")
	}
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := newMemoryCache(time.Minute, time.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "p1", 1)
	_ = c.Set(ctx, "p2", 2)
	_ = c.Invalidate(ctx, "p1")

	if _, ok, _ := c.Get(ctx, "p1"); ok {
		t.Fatal("p1 should be gone")
	}
	if n, ok, _ := c.Get(ctx, "p2"); !ok || n != 2 {
		t.Fatal("invalidating p1 must not touch p2")
	}
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*memoryCache); !ok {
		t.Fatalf("expected memory cache, got %T", c)
	}
}

func TestNew_ProdRequiresRedis(t *testing.T) {
	if _, err := New("", 0, true); err == nil {
		t.Fatal("expected error in production without redis")
	}
}

func TestNew_PrefersRedis(t *testing.T) {
	c, err := New("redis://localhost:6379/0", time.Second, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc, ok := c.(*redisCache)
	if !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	_ = rc.Close()
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	c := newRedisCache(url, time.Minute)
	defer c.Close()
	ctx := context.Background()

	post := "countcache-test"
	_ = c.Invalidate(ctx, post)
	if _, ok, err := c.Get(ctx, post); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, post, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n, ok, err := c.Get(ctx, post); err != nil || !ok || n != 42 {
		t.Fatalf("expected 42, got %d ok=%v err=%v", n, ok, err)
	}
	_ = c.Invalidate(ctx, post)
}
