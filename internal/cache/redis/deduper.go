package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seapigy/procuro-site-sub000/internal/alert"
)

const keyPrefix = "pricewatch:alert:"

// setNXer is the slice of redis.Cmdable the deduper needs.
type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduper implements alert.Deduper with SETNX and a TTL so every replica
// shares one suppression window.
type Deduper struct {
	rdb setNXer
	ttl time.Duration
	now func() time.Time
}

// NewDeduper builds a Deduper on top of c.
func NewDeduper(c *Client, ttl time.Duration) (*Deduper, error) {
	if c == nil {
		return nil, errors.New("redis: client is required")
	}
	return newDeduper(c.Underlying(), ttl)
}

func newDeduper(rdb setNXer, ttl time.Duration) (*Deduper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redis: dedup ttl must be positive, got %s", ttl)
	}
	return &Deduper{rdb: rdb, ttl: ttl, now: time.Now}, nil
}

// Claim implements alert.Deduper.
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, keyPrefix+key, d.now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim %s: %w", key, err)
	}
	return ok, nil
}

// Release implements alert.Deduper.
func (d *Deduper) Release(ctx context.Context, key string) error {
	if err := d.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: release %s: %w", key, err)
	}
	return nil
}

var _ alert.Deduper = (*Deduper)(nil)
