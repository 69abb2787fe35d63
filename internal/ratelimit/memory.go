package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepThreshold is the map size above which expired windows are
// dropped on the next Check.
const DefaultSweepThreshold = 1024

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps fixed-window counters in a mutex-guarded map.  State
// is lost on restart and is not shared between processes.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*window
	threshold int
	nextSweep time.Time
	// lastSweep throttles size-triggered sweeps to one per second, so a map
	// full of live windows is not rescanned on every Check.
	lastSweep time.Time

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewMemoryLimiter returns a limiter that sweeps expired entries at most once
// a second while the map is larger than threshold, and once a minute
// otherwise.  A threshold
// of zero or less uses DefaultSweepThreshold.
func NewMemoryLimiter(threshold int) *MemoryLimiter {
	if threshold <= 0 {
		threshold = DefaultSweepThreshold
	}
	return &MemoryLimiter{
		entries:   make(map[string]*window),
		threshold: threshold,
		Now:       time.Now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, max int, win time.Duration) (Decision, error) {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if (len(l.entries) > l.threshold && now.Sub(l.lastSweep) >= time.Second) || !now.Before(l.nextSweep) {
		l.sweep(now)
	}

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		l.entries[key] = &window{count: 1, resetAt: now.Add(win)}
		return Decision{Allowed: true, Count: 1}, nil
	}
	if e.count >= max {
		return Decision{Allowed: false, Count: e.count, RetryAfter: e.resetAt.Sub(now)}, nil
	}
	e.count++
	return Decision{Allowed: true, Count: e.count}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
	l.nextSweep = now.Add(time.Minute)
}
