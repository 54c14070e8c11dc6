// Package metrics exposes Prometheus counters/gauges for the server and
// the per-request metric carrier used to build access-log lines,
// grounded on the teacher's metrics/request_info.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var factory = prometheus.WrapRegistererWithPrefix("originserver_", prometheus.DefaultRegisterer)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_total",
		Help: "Total requests handled, labeled by status class.",
	}, []string{"status_class"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Content cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Content cache misses.",
	})

	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_connections",
		Help: "Connections currently being processed by the worker pool.",
	})

	PhpInvocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "php_invocation_duration_seconds",
		Help:    "Duration of PHP interpreter invocations.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	factory.MustRegister(RequestsTotal, CacheHitsTotal, CacheMissesTotal, ActiveConnections, PhpInvocationDuration)
}
