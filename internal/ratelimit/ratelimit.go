// Package ratelimit provides per-key token-bucket rate limiting for the API.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// InMemoryRateLimiter keeps one token bucket per key in process memory.
// Suitable for a single server instance.
type InMemoryRateLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*entry

	maxAge time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewInMemoryRateLimiter creates a limiter allowing rps requests per second
// per key with bursts up to burst. Idle keys are evicted in the background
// until Stop is called.
func NewInMemoryRateLimiter(rps float64, burst int) *InMemoryRateLimiter {
	l := &InMemoryRateLimiter{
		rate:    rate.Limit(rps),
		burst:   burst,
		entries: make(map[string]*entry),
		maxAge:  10 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop(5 * time.Minute)
	return l
}

// Allow implements RateLimiter.
func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *InMemoryRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *InMemoryRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops keys not seen within maxAge.
func (l *InMemoryRateLimiter) evictIdle() {
	cutoff := l.now().Add(-l.maxAge)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Stop ends background eviction. Safe to call more than once.
func (l *InMemoryRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
