package jwt

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	Deny(ctx context.Context, jti string, ttl time.Duration) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

const defaultDenylistPrefix = "hms:deny"

// RedisDenylist stores one key per revoked jti with a TTL.
type RedisDenylist struct {
	redis  redis.UniversalClient
	prefix string
}

var _ Denylist = (*RedisDenylist)(nil)

// NewRedisDenylist returns a deny-list over client. An empty prefix selects
// the default key prefix.
func NewRedisDenylist(client redis.UniversalClient, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = defaultDenylistPrefix
	}
	return &RedisDenylist{redis: client, prefix: prefix}
}

func (d *RedisDenylist) key(jti string) string {
	return d.prefix + ":" + jti
}

func (d *RedisDenylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	return d.redis.Set(ctx, d.key(jti), "1", ttl).Err()
}

func (d *RedisDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := d.redis.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryDenylist is an in-process deny-list for single-node deployments
// and tests.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ Denylist = (*MemoryDenylist)(nil)

// NewMemoryDenylist returns an empty deny-list. now may be nil.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{entries: make(map[string]time.Time), now: now}
}

func (d *MemoryDenylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[jti] = d.now().Add(ttl)
	return nil
}

func (d *MemoryDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, until := range d.entries {
		if !until.After(now) {
			delete(d.entries, id)
		}
	}
	_, ok := d.entries[jti]
	return ok, nil
}
