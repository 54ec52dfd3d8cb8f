// Package system provides the wall clock and a fixed clock for tests.
package system

import (
	"sync"
	"time"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Clock implements pricing.Clock using time.Now.
type Clock struct{}

var (
	_ pricing.Clock = Clock{}
	_ pricing.Clock = (*Fixed)(nil)
)

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a manually advanced clock.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a Fixed clock set to t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now returns the current fixed time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
