// Package ratelimit throttles public endpoints per client address and the
// authenticated API per actor.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter decides whether one more request under key fits the budget.
type Counter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Limiter is an in-process sliding-window Counter. It serves single-instance
// deployments and the fallback when Redis is not configured.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

// NewLimiter allows maxRequests per window for each key.
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
	}
}

// Allow implements Counter.
func (l *Limiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.window)
	kept := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.requests = kept
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		return false, nil
	}
	b.requests = append(b.requests, now)
	return true, nil
}

// Sweep drops buckets idle for longer than the window. Run it periodically.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	stale := l.now().Add(-l.window)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(stale) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
