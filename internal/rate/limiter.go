package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// Limiter admits or rejects one hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Redis enforces at most Max hits per key in each Window, shared across
// replicas.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	max    int64
	window time.Duration
}

// NewRedis creates a fixed-window limiter backed by the given Redis client.
func NewRedis(client redis.UniversalClient, prefix string, max int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "hmsauth"
	}
	return &Redis{redis: client, prefix: prefix, max: int64(max), window: window}
}

func (l *Redis) Allow(ctx context.Context, key string) error {
	count, err := l.incrementWithTTL(ctx, l.prefix+":rl:"+key)
	if err != nil {
		return err
	}
	if count > l.max {
		return ErrRateLimited
	}
	return nil
}

func (l *Redis) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

type bucket struct {
	lim  *xrate.Limiter
	seen time.Time
}

// Local keeps one token bucket per key in memory. Buckets idle for longer
// than idleTTL are evicted on the next Allow.
type Local struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond xrate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLocal returns a Local limiter refilling perSecond tokens up to burst.
func NewLocal(perSecond float64, burst int) *Local {
	if burst < 1 {
		burst = 1
	}
	return &Local{
		buckets:   make(map[string]*bucket),
		perSecond: xrate.Limit(perSecond),
		burst:     burst,
		idleTTL:   5 * time.Minute,
		now:       time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: xrate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	if !b.lim.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}
