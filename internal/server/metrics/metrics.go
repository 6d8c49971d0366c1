// Package metrics instruments request handling. Every request carries a
// Timings aggregate; the hot cache and origin decorators add their call
// durations to it, and the middleware turns it into Prometheus observations
// and, for a sampled share of requests, a timing log line.
package metrics

import (
	"math/rand/v2"
	"net/http"

	"github.com/andres-erbsen/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/casedge/internal/logging"
)

const namespace = "casedge"

type Options struct {
	Clock      clock.Clock
	Logger     logging.Logger
	SampleRate float64
	// Rand returns a number in [0, 1); it decides which requests are sampled.
	Rand func() float64
}

type Metrics struct {
	registry *prometheus.Registry
	clock    clock.Clock
	logger   logging.Logger
	sample   float64
	rand     func() float64

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestCache    *prometheus.HistogramVec
	requestOrigin   *prometheus.HistogramVec
	cacheOps        *prometheus.HistogramVec
	originCalls     *prometheus.HistogramVec
}

// New registers the collectors on reg, or on a private registry when reg is
// nil.
func New(reg *prometheus.Registry, opts Options) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		clock:    opts.Clock,
		logger:   opts.Logger.With("module", "metrics"),
		sample:   opts.SampleRate,
		rand:     opts.Rand,

		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Handled requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "End-to-end handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		requestCache: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_hot_cache_seconds",
			Help:      "Time a request spent in hot cache calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		requestOrigin: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_origin_seconds",
			Help:      "Time a request spent in origin calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		cacheOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hot_cache_operation_seconds",
			Help:      "Hot cache call latency by operation and result.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op", "result"}),
		originCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "origin_request_duration_seconds",
			Help:      "Origin call latency by path and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) sampled() bool {
	return m.sample > 0 && m.rand() < m.sample
}
