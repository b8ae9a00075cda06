package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergiodxa/blog/internal/cache"
	"github.com/sergiodxa/blog/internal/cache/redisstore"
	"github.com/sergiodxa/blog/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load([]string{"--listen_addr", "127.0.0.1:0", "--log.level", "debug"})
	require.NoError(t, err)
	return cfg
}

func TestNewUsesMemoryStoreWithoutRedis(t *testing.T) {
	var logs bytes.Buffer
	a, err := NewWithOutput(testConfig(t), &logs)
	require.NoError(t, err)

	_, ok := a.cache.(*cache.Memory)
	assert.True(t, ok)
	assert.Nil(t, a.stopCache)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), `"msg":"handled request"`)
}

func TestNewUsesRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := NewWithOutput(cfg, &bytes.Buffer{})
	require.NoError(t, err)

	_, ok := a.cache.(*redisstore.Store)
	assert.True(t, ok)
	require.NoError(t, a.stopCache())
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	mr.Close()

	_, err := NewWithOutput(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewRejectsBadLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Level = "loud"

	_, err := NewWithOutput(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a, err := NewWithOutput(testConfig(t), &bytes.Buffer{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
