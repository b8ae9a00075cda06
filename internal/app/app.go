package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sergiodxa/blog/internal/cache"
	"github.com/sergiodxa/blog/internal/cache/redisstore"
	"github.com/sergiodxa/blog/internal/config"
	"github.com/sergiodxa/blog/internal/content"
	"github.com/sergiodxa/blog/internal/github"
	"github.com/sergiodxa/blog/internal/server"
	"github.com/sergiodxa/blog/internal/transport"
)

// App wires configuration, dependencies, and the HTTP server together.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	cache     cache.Store
	stopCache func() error
	httpSrv   *http.Server
}

// New creates a fully initialised application logging to stdout.
func New(cfg config.Config) (*App, error) {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New with the log destination supplied by the caller.
func NewWithOutput(cfg config.Config, logOut io.Writer) (*App, error) {
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	store, stopCache, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := transport.NewHTTPClient(cfg, logger)

	provider, err := github.New(httpClient, github.Options{
		Owner:   cfg.GitHub.Owner,
		Repo:    cfg.GitHub.Repo,
		Ref:     cfg.GitHub.Ref,
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		if stopCache != nil {
			_ = stopCache()
		}
		return nil, fmt.Errorf("build github provider: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []content.Option{
		content.WithTTL(cfg.Content.CacheTTL),
		content.WithPathLayout(cfg.Content.Prefix, cfg.Content.Extension),
		content.WithMetrics(content.NewMetrics(reg)),
	}
	if cfg.Content.DedupeMisses {
		opts = append(opts, content.WithMissDeduplication())
	}
	fetcher := content.NewFetcher(provider, store, logger, opts...)

	handler := server.NewHandler(fetcher, server.Options{
		Logger:         logger,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		MaxAge:         fetcher.TTL(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + cfg.TransportTimeout,
		WriteTimeout:      cfg.TransportTimeout + cfg.RequestTimeout,
		IdleTimeout:       cfg.IdleConnTimeout,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		cache:     store,
		stopCache: stopCache,
		httpSrv:   httpSrv,
	}, nil
}

// Handler exposes the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

// Run blocks until the server shuts down or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	defer func() {
		if a.stopCache != nil {
			if err := a.stopCache(); err != nil {
				a.logger.Warn("cache close failed", slog.String("error", err.Error()))
			}
		}
	}()

	go func() {
		a.logger.Info("blog server starting",
			slog.String("addr", a.cfg.ListenAddr),
			slog.String("repo", a.cfg.GitHub.Owner+"/"+a.cfg.GitHub.Repo))
		err := a.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newStore(cfg config.Config) (cache.Store, func() error, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), nil, nil
	}

	redisStore, err := redisstore.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("setup redis: %w", err)
	}
	return redisStore, redisStore.Close, nil
}

func newLogger(cfg config.Log, out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(out, opts)), nil
}
