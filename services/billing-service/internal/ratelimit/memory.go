// services/billing-service/internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter is a token bucket per key: Limit tokens, refilled evenly over Window.
// It is safe for concurrent use within one process.
type MemoryLimiter struct {
	policy Policy
	clock  func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		clock:   time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		every := rate.Every(l.policy.Window / time.Duration(l.policy.Limit))
		b = &bucket{limiter: rate.NewLimiter(every, l.policy.Limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		// give the token back; a refused call must not push the next slot further out
		r.CancelAt(now)
		return &LimitError{Key: key, RetryAfter: delay}
	}
	return nil
}

// sweep drops buckets idle for a whole window; they would be full again anyway.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.policy.Window {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}
