package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidLimit is returned for non-positive limits or windows.
var ErrInvalidLimit = errors.New("ratelimit: limit and window must be positive")

// Decision is the outcome of counting one request against a fixed window.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the wait until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	if rounded := wait.Truncate(time.Second); rounded != wait {
		return rounded + time.Second
	}
	return wait
}

// Store counts requests per key. CheckAndIncrement counts the request only when it is allowed.
type Store interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Sweeper drops counters whose window ended before now.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

func decide(count, limit int, resetAt time.Time, allowed bool) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: allowed, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}
