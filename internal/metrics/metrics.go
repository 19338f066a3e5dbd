// Package metrics exposes the prometheus collectors of a bidio process.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"bidio/internal/packet"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the operation collectors. It satisfies
// channel.Recorder.
type Metrics struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	subscribers *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bidio",
			Name:      "operations_total",
			Help:      "Bid operations handled, by channel, packet type and outcome",
		}, []string{"channel", "type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bidio",
			Name:      "operation_duration_seconds",
			Help:      "Time to handle one bid operation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"channel", "type"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bidio",
			Name:      "subscribers",
			Help:      "Connections attached to a channel",
		}, []string{"channel"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOperation(channel string, t packet.Type, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(channel, t.String(), outcome).Inc()
	m.duration.WithLabelValues(channel, t.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) SetSubscribers(channel string, n int) {
	m.subscribers.WithLabelValues(channel).Set(float64(n))
}

// WatchPebble exports the internals of the embedded pebble database.
func (m *Metrics) WatchPebble(db *pebble.DB) error {
	return m.registry.Register(NewPebbleCollector(db))
}

// WatchSQL exports the connection pool stats of the sqlite database.
func (m *Metrics) WatchSQL(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}
