package cache

import (
	"context"
	"time"
)

// Entry is a cached payload along with the time it was written.
type Entry struct {
	Payload  []byte
	StoredAt time.Time
}

// Store is the shared key-value store used as a read-through cache.
// Expiration is owned by the store; callers never track freshness themselves.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Noop implements a zero-effect store that never hits.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, nil
}

// Set performs no operation and always succeeds.
func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
