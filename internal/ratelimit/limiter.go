// Package ratelimit provides an injected, explicitly scoped keyed
// token-bucket limiter. Instances are constructed and wired where needed;
// there is no process-wide state.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter maintains one token bucket per key. Idle buckets are swept
// after ttl so the map stays bounded.
type KeyedLimiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

// NewKeyedLimiter creates a limiter allowing limit events per second with the
// given burst per key, evicting keys idle longer than ttl.
func NewKeyedLimiter(limit rate.Limit, burst int, ttl time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		entries:   make(map[string]*entry),
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		lastSweep: time.Now(),
	}
}

// Allow reports whether the event for key may proceed now.
func (l *KeyedLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweepLocked(now)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Len reports how many keys currently hold a bucket.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > l.ttl {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
