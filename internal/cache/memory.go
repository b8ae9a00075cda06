package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	storedAt  time.Time
	expiresAt time.Time
}

// Memory is a process-local Store with per-entry expiry.
// It is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu    sync.RWMutex
	index map[string]memoryEntry
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{index: map[string]memoryEntry{}, now: time.Now}
}

// Get returns the entry for key. Expired entries are evicted and reported as a miss.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	now := m.now()

	m.mu.RLock()
	item, ok := m.index[key]
	m.mu.RUnlock()

	if !ok {
		return Entry{}, false, nil
	}

	if !item.expiresAt.IsZero() && !now.Before(item.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.index[key]; ok && cur.expiresAt.Equal(item.expiresAt) {
			delete(m.index, key)
		}
		m.mu.Unlock()
		return Entry{}, false, nil
	}

	return Entry{
		Payload:  append([]byte(nil), item.payload...),
		StoredAt: item.storedAt,
	}, true, nil
}

// Set stores payload under key. A ttl <= 0 never expires.
func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	now := m.now()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	m.index[key] = memoryEntry{
		payload:   append([]byte(nil), payload...),
		storedAt:  now.UTC(),
		expiresAt: expiresAt,
	}
	m.mu.Unlock()

	return nil
}

// Len reports how many entries are held, including ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}
