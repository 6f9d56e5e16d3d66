// Package metrics exposes Prometheus instrumentation for the registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	swaps    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	entries  prometheus.Gauge
	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		swaps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotswap_swaps_total",
			Help: "Implementations installed, by operation",
		}, []string{"op"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotswap_failures_total",
			Help: "Failed registry operations, by operation",
		}, []string{"op"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotswap_operation_duration_seconds",
			Help:    "Registry operation latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}, []string{"op"}),
		entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "hotswap_entries",
			Help: "Registered entries",
		}),
		gatherer: g,
	}
}

// Observe records one operation outcome. swapped marks operations that
// installed a new current value.
func (m *Metrics) Observe(op string, start time.Time, swapped bool, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		m.failures.WithLabelValues(op).Inc()
	case swapped:
		m.swaps.WithLabelValues(op).Inc()
	}
}

// SetEntries updates the entry gauge.
func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
