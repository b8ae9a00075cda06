package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("# Hello"), time.Minute))

	entry, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "# Hello", string(entry.Payload))
	assert.False(t, entry.StoredAt.IsZero())
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpiryEvictsOnAccess(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "e", []byte("x"), 300*time.Second))

	now = now.Add(299 * time.Second)
	_, ok, _ := m.Get(ctx, "e")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "e")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	payload := []byte("abc")

	require.NoError(t, m.Set(ctx, "k", payload, 0))
	payload[0] = 'z'

	entry, _, _ := m.Get(ctx, "k")
	entry.Payload[1] = 'z'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again.Payload))
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), time.Second))

	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			_ = m.Set(ctx, "k", []byte("v"), time.Second)
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_, _, _ = m.Get(ctx, "k")
		}
	}()
	wg.Wait()
}
