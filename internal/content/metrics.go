package content

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache behaviour of a Fetcher. A nil *Metrics records nothing.
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	fetchErrors   *prometheus.CounterVec
	writeFailures prometheus.Counter
	readFailures  prometheus.Counter
	cacheInvalids prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blog_content_cache_hits_total",
			Help: "Content lookups served from the cache store.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blog_content_cache_misses_total",
			Help: "Content lookups that required a remote fetch.",
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_content_fetch_errors_total",
			Help: "Failed remote fetches by kind.",
		}, []string{"kind"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blog_content_cache_write_failures_total",
			Help: "Cache write-backs that failed after a successful fetch.",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blog_content_cache_read_failures_total",
			Help: "Cache reads that failed and were treated as a miss.",
		}),
		cacheInvalids: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blog_content_cache_invalid_total",
			Help: "Cached payloads rejected because they were not text.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blog_content_fetch_duration_seconds",
			Help:    "Latency of remote content fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.hits, m.misses, m.fetchErrors, m.writeFailures, m.readFailures, m.cacheInvalids, m.fetchDuration)
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) fetchError(kind string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) writeFailure() {
	if m != nil {
		m.writeFailures.Inc()
	}
}

func (m *Metrics) readFailure() {
	if m != nil {
		m.readFailures.Inc()
	}
}

func (m *Metrics) cacheInvalid() {
	if m != nil {
		m.cacheInvalids.Inc()
	}
}

func (m *Metrics) observeFetch(d time.Duration) {
	if m != nil {
		m.fetchDuration.Observe(d.Seconds())
	}
}
