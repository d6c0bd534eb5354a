// Package metrics exposes gateway, authentication and aggregation activity as
// Prometheus collectors. A *Metrics satisfies catalog.Recorder,
// auth.Recorder and media.Recorder.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trakt"

type Metrics struct {
	gatherer prometheus.Gatherer

	cacheLookups *prometheus.CounterVec
	upstream     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	authAttempts *prometheus.CounterVec
	listSize     *prometheus.GaugeVec
	listFailures *prometheus.CounterVec
	lookups      *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests; nil means the default registry.
func New(reg *prometheus.Registry) *Metrics {
	var (
		r prometheus.Registerer = prometheus.DefaultRegisterer
		g prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		r, g = reg, reg
	}
	f := promauto.With(r)

	return &Metrics{
		gatherer: g,
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		upstream: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the listing service by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests to the listing service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Requests retried after re-authentication.",
		}, []string{"endpoint"}),
		authAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication outcomes: success, failure, shared, resumed.",
		}, []string{"outcome"}),
		listSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curated_list_ids",
			Help:      "Ids kept for each curated list on its last assembly.",
		}, []string{"slug"}),
		listFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curated_list_failures_total",
			Help:      "Curated lists left out because their fetch failed.",
		}, []string{"slug"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_lookups_total",
			Help:      "Detail lookups by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

func (m *Metrics) UpstreamRequest(endpoint string, status int, elapsed time.Duration) {
	m.upstream.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) Retry(endpoint string) {
	m.retries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) AuthAttempt(outcome string) {
	m.authAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CuratedList(slug string, count int, err error) {
	if err != nil {
		m.listFailures.WithLabelValues(slug).Inc()
		return
	}
	m.listSize.WithLabelValues(slug).Set(float64(count))
}

func (m *Metrics) DetailLookup(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lookups.WithLabelValues(result).Inc()
}
