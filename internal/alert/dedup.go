package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Dedup policies accepted by configuration.
const (
	PolicyNone   = "none"
	PolicyMemory = "memory"
	PolicyRedis  = "redis"
)

// Deduper decides whether an alert may be emitted. Claim records the key when
// it returns true so a repeat inside the window is suppressed. Release drops
// a claim whose alert was never stored.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key identifies an alert for deduplication: the same item, retailer and
// price. A further drop produces a new key and alerts again.
func Key(a pricing.Alert) string {
	return strings.Join([]string{a.ItemID, a.Retailer, a.NewPrice.StringFixed(2)}, "|")
}

// NoDedup lets every qualifying alert through.
type NoDedup struct{}

// Claim implements Deduper.
func (NoDedup) Claim(context.Context, string) (bool, error) {
	return true, nil
}

// Release implements Deduper.
func (NoDedup) Release(context.Context, string) error {
	return nil
}

// MemoryDeduper suppresses repeats within a TTL window inside one process.
// It is safe for concurrent use.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDeduper builds a MemoryDeduper. clock may be nil.
func NewMemoryDeduper(ttl time.Duration, clock pricing.Clock) (*MemoryDeduper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("alert: dedup ttl must be positive, got %s", ttl)
	}
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl, now: now}, nil
}

// Claim implements Deduper.
func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return false, nil
	}
	d.seen[key] = now
	d.sweep(now)
	return true, nil
}

// Release implements Deduper.
func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// sweep drops expired keys. Callers hold mu.
func (d *MemoryDeduper) sweep(now time.Time) {
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

// Len reports how many keys are currently tracked.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
