// services/billing-service/internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError is returned when a key is over budget. RetryAfter is when the next call may succeed.
type LimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Key, e.RetryAfter.Round(time.Millisecond))
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterSeconds rounds up so a client waiting that long is never refused again.
func (e *LimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// Limiter allows at most a fixed number of calls per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Policy is limit calls per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", p.Window)
	}
	return nil
}
