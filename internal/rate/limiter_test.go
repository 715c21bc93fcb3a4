package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedis(client, "test", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "login:192.0.2.1"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "login:192.0.2.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if err := l.Allow(ctx, "login:192.0.2.2"); err != nil {
		t.Fatalf("other key must be independent: %v", err)
	}
	if ttl := mr.TTL("test:rl:login:192.0.2.1"); ttl != time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Allow(ctx, "login:192.0.2.1"); err != nil {
		t.Fatalf("new window: %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedis(client, "", 1, time.Minute)
	if err := l.Allow(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected redis unavailable, got %v", err)
	}
}

func TestLocalTokenBucket(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(1, 2)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Allow(ctx, "a"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.Allow(ctx, "a"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := l.Allow(ctx, "a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected burst exhausted, got %v", err)
	}
	if err := l.Allow(ctx, "b"); err != nil {
		t.Fatalf("independent key: %v", err)
	}

	now = now.Add(time.Second)
	if err := l.Allow(ctx, "a"); err != nil {
		t.Fatalf("refill: %v", err)
	}
}

func TestLocalEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(1, 1)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_ = l.Allow(ctx, "a")
	now = now.Add(10 * time.Minute)
	_ = l.Allow(ctx, "b")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["a"]; ok {
		t.Fatal("idle bucket not evicted")
	}
}
