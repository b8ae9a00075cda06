package transport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergiodxa/blog/internal/config"
)

func TestNewHTTPClientLogsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := NewHTTPClient(config.Config{
		DialTimeout:      time.Second,
		TransportTimeout: 5 * time.Second,
		IdleConnTimeout:  time.Second,
	}, logger)
	assert.Equal(t, 5*time.Second, client.Timeout)

	resp, err := client.Get(srv.URL + "/repos/x")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Contains(t, buf.String(), "outbound request")
	assert.Contains(t, buf.String(), "path=/repos/x")
	assert.Contains(t, buf.String(), "status=418")
}
