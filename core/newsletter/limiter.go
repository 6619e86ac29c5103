package newsletter

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrRateLimited = errors.New("too many subscription attempts, try again later")

// CounterStore counts hits per key over a fixed window that starts with the key's first hit.
type CounterStore interface {
	// Incr increments key and returns the new count. The count resets once window has elapsed since
	// the first hit.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Allow reports whether the count-th hit of a window is within limit.
func Allow(count int64, limit int) bool {
	return count <= int64(limit)
}

type Limiter struct {
	Store  CounterStore
	Limit  int
	Window time.Duration
	Prefix string
}

// Allow counts a hit for clientID and reports whether it is within the limit.
func (l Limiter) Allow(ctx context.Context, clientID string) (bool, error) {
	if l.Limit <= 0 {
		return true, nil
	}
	count, err := l.Store.Incr(ctx, l.Prefix+clientID, l.Window)
	if err != nil {
		return false, errors.Wrap(err, "incrementing rate counter")
	}
	return Allow(count, l.Limit), nil
}
