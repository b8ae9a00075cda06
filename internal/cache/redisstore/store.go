package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sergiodxa/blog/internal/cache"
)

const defaultOpTimeout = 600 * time.Millisecond

// Store implements cache.Store backed by Redis.
type Store struct {
	client    *redis.Client
	opTimeout time.Duration
}

type envelope struct {
	StoredAt time.Time `json:"stored_at"`
	Payload  string    `json:"payload"`
}

// New constructs a Redis-backed cache store and verifies connectivity.
func New(rawURL string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, opTimeout: defaultOpTimeout}
}

// Client returns the underlying redis client.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close terminates the underlying Redis client connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get retrieves a cached entry if present.
func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.Entry{}, false, nil
		}
		return cache.Entry{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return cache.Entry{}, false, fmt.Errorf("decode cached payload %q: %w", key, err)
	}

	return cache.Entry{
		Payload:  []byte(env.Payload),
		StoredAt: env.StoredAt,
	}, true, nil
}

// Set stores a cached entry with the provided TTL.
func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	env := envelope{
		StoredAt: time.Now().UTC(),
		Payload:  string(payload),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cached payload %q: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}

	return nil
}
