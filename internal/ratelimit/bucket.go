// Package ratelimit implements a per-key, lazily-refilled token bucket
// limiter guarding outbound fetches from overwhelming any one host.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	mu           sync.Mutex
	tokens       int
	lastRefill   time.Time
	requestCount int
}

// Limiter is a process-global, per-key token bucket. It is safe for
// concurrent use; updates to a single key's bucket are atomic relative to
// each other.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

func (l *Limiter) getBucket(key string, maxRequests int) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: maxRequests, lastRefill: time.Now()}
		l.buckets[key] = b
	}
	return b
}

// Allow lazily refills key's bucket based on elapsed time, then grants or
// denies a single request against it.
func (l *Limiter) Allow(key string, maxRequests int, window time.Duration) bool {
	if maxRequests <= 0 || window <= 0 {
		return false
	}
	b := l.getBucket(key, maxRequests)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		windows := int(elapsed / window)
		if windows > 0 {
			b.tokens += windows * maxRequests
			if b.tokens > maxRequests {
				b.tokens = maxRequests
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(windows) * window)
		}
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	b.requestCount++
	return true
}

// Remaining reports the current token count for key without consuming one.
func (l *Limiter) Remaining(key string, maxRequests int) int {
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return maxRequests
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Reset drops the bucket for key, as if it had never been seen.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
