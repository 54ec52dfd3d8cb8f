package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeSetNX struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeSetNX) SetNX(_ context.Context, key string, _ any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if f.keys == nil {
		f.keys = make(map[string]time.Duration)
	}
	if _, exists := f.keys[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeSetNX) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestDeduperClaim(t *testing.T) {
	t.Parallel()

	fake := &fakeSetNX{}
	d, err := newDeduper(fake, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "item-1|walmart|47.00")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = d.Claim(ctx, "item-1|walmart|47.00")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, time.Hour, fake.keys[keyPrefix+"item-1|walmart|47.00"])
}

func TestDeduperPropagatesErrors(t *testing.T) {
	t.Parallel()

	d, err := newDeduper(&fakeSetNX{err: errors.New("connection refused")}, time.Minute)
	require.NoError(t, err)

	ok, err := d.Claim(context.Background(), "k")
	require.ErrorContains(t, err, "connection refused")
	require.False(t, ok)
}

func TestNewDeduperValidation(t *testing.T) {
	t.Parallel()

	_, err := NewDeduper(nil, time.Minute)
	require.Error(t, err)

	_, err = newDeduper(&fakeSetNX{}, 0)
	require.Error(t, err)
}

func TestNewRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), ClientConfig{})
	require.Error(t, err)
}

func TestDeduperReleaseAllowsReclaim(t *testing.T) {
	t.Parallel()

	fake := &fakeSetNX{}
	d, err := newDeduper(fake, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "item-1|target|46.00")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, d.Release(ctx, "item-1|target|46.00"))
	require.NotContains(t, fake.keys, keyPrefix+"item-1|target|46.00")

	ok, err = d.Claim(ctx, "item-1|target|46.00")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeduperReleasePropagatesErrors(t *testing.T) {
	t.Parallel()

	d, err := newDeduper(&fakeSetNX{err: errors.New("connection refused")}, time.Minute)
	require.NoError(t, err)
	require.ErrorContains(t, d.Release(context.Background(), "k"), "redis: release k: connection refused")
}
