// Package content serves article text from a remote content repository through
// a shared read-through cache store.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sergiodxa/blog/internal/cache"
)

const (
	DefaultTTL       = 5 * time.Minute
	DefaultPrefix    = "articles"
	DefaultExtension = ".md"

	writeTimeout = 2 * time.Second
	fillTimeout  = 30 * time.Second
)

// Blob is the raw body returned by a Provider together with its media type.
type Blob struct {
	Data      []byte
	MediaType string
}

// Provider reads raw file content at a repository path.
type Provider interface {
	Fetch(ctx context.Context, path string) (Blob, error)
}

// Result is the outcome of a lookup. StoredAt is only set on cache hits.
type Result struct {
	Text     string
	Hit      bool
	StoredAt time.Time
}

// Fetcher returns article text, hitting the provider at most once per cache window.
type Fetcher struct {
	provider  Provider
	store     cache.Store
	logger    *slog.Logger
	metrics   *Metrics
	ttl       time.Duration
	prefix    string
	extension string
	dedupe    bool
	sgroup    singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTTL sets the expiration window written with every cache entry.
func WithTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithPathLayout sets the directory and file extension used to build provider paths.
func WithPathLayout(prefix, extension string) Option {
	return func(f *Fetcher) {
		f.prefix = prefix
		f.extension = extension
	}
}

// WithMetrics records hits, misses and failures on m.
func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithMissDeduplication collapses concurrent misses for the same identifier
// into a single provider call.
func WithMissDeduplication() Option {
	return func(f *Fetcher) {
		f.dedupe = true
	}
}

// NewFetcher constructs a fetcher over provider and store.
func NewFetcher(provider Provider, store cache.Store, logger *slog.Logger, opts ...Option) *Fetcher {
	if store == nil {
		store = cache.Noop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f := &Fetcher{
		provider:  provider,
		store:     store,
		logger:    logger.With(slog.String("component", "content-fetcher")),
		ttl:       DefaultTTL,
		prefix:    DefaultPrefix,
		extension: DefaultExtension,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TTL reports the expiration window used for cache writes.
func (f *Fetcher) TTL() time.Duration {
	return f.ttl
}

// Path returns the provider path for id, e.g. articles/hello-world.md.
func (f *Fetcher) Path(id string) string {
	return path.Join(f.prefix, id+f.extension)
}

// Content returns the text for id.
func (f *Fetcher) Content(ctx context.Context, id string) (string, error) {
	res, err := f.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Fetch returns the text for id along with whether it was served from the cache.
func (f *Fetcher) Fetch(ctx context.Context, id string) (Result, error) {
	if !validIdentifier(id) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	entry, ok, err := f.store.Get(ctx, id)
	switch {
	case err != nil:
		f.metrics.readFailure()
		f.logger.Warn("cache read failed", slog.String("key", id), slog.String("error", err.Error()))
	case ok:
		text, reason := checkText(entry.Payload, "")
		if reason != "" {
			f.metrics.cacheInvalid()
			f.logger.Warn("cached payload rejected", slog.String("key", id), slog.String("reason", reason))
			return Result{}, &ValidationError{Key: id, Source: SourceCache, Reason: reason}
		}
		f.metrics.hit()
		return Result{Text: text, Hit: true, StoredAt: entry.StoredAt}, nil
	}

	f.metrics.miss()

	if !f.dedupe {
		return f.fill(ctx, id)
	}

	// The flight outlives any single caller, so it runs detached from the
	// caller's cancellation and each caller waits on its own context.
	ch := f.sgroup.DoChan(id, func() (any, error) {
		fillCtx, cancel := f.detachedFillContext(ctx)
		defer cancel()
		return f.fill(fillCtx, id)
	})

	select {
	case <-ctx.Done():
		return Result{}, &RemoteFetchError{Path: f.Path(id), Kind: KindTransport, Err: ctx.Err()}
	case r := <-ch:
		if r.Shared {
			f.logger.Debug("shared in-flight fetch", slog.String("key", id))
		}
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (f *Fetcher) detachedFillContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithTimeout(detached, fillTimeout)
}

func (f *Fetcher) fill(ctx context.Context, id string) (Result, error) {
	p := f.Path(id)

	start := time.Now()
	blob, err := f.provider.Fetch(ctx, p)
	f.metrics.observeFetch(time.Since(start))
	if err != nil {
		kind := classify(err)
		f.metrics.fetchError(string(kind))
		return Result{}, &RemoteFetchError{Path: p, Kind: kind, Err: err}
	}

	text, reason := checkText(blob.Data, blob.MediaType)
	if reason != "" {
		f.metrics.fetchError("invalid")
		return Result{}, &ValidationError{Key: id, Source: SourceRemote, Reason: reason}
	}

	f.logger.Info("fetched content", slog.String("key", id), slog.String("path", p), slog.Int("bytes", len(text)))

	if err := f.storeWithTTL(ctx, id, text); err != nil {
		f.metrics.writeFailure()
		f.logger.Warn("cache store failed", slog.String("key", id), slog.String("error", err.Error()))
	}

	return Result{Text: text}, nil
}

func (f *Fetcher) storeWithTTL(ctx context.Context, key, text string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	return f.store.Set(ctx, key, []byte(text), f.ttl)
}
