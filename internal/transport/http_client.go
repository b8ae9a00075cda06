package transport

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sergiodxa/blog/internal/config"
)

// NewHTTPClient constructs the http.Client used for content provider calls.
func NewHTTPClient(cfg config.Config, logger *slog.Logger) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 60 * time.Second}).DialContext,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 150 * time.Millisecond,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(64),
		},
	}

	return &http.Client{
		Transport: &loggingTransport{
			next:   base,
			logger: logger.With(slog.String("component", "http-client")),
		},
		Timeout: cfg.TransportTimeout,
	}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	attrs := []any{
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.Warn("outbound request failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}

	t.logger.Debug("outbound request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}
