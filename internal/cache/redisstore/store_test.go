package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestStoreSetGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "hello-world", []byte("# Hello"), 300*time.Second))
	assert.Equal(t, 300*time.Second, mr.TTL("hello-world"))

	entry, ok, err := store.Get(ctx, "hello-world")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "# Hello", string(entry.Payload))
	assert.WithinDuration(t, time.Now(), entry.StoredAt, 5*time.Second)
}

func TestStoreMissAndExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(time.Minute)

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreCorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("bad", "not-json"))

	_, ok, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Set(context.Background(), "k", []byte("v"), time.Minute)
	assert.Error(t, err)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("://nope")
	assert.Error(t, err)
}
