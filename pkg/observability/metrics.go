package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects transaction counters on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Events     *prometheus.CounterVec
	Pending    prometheus.Gauge
	Resolution *prometheus.HistogramVec

	mu        sync.Mutex
	requested map[string]time.Time // txn id -> request time
}

// NewMetrics registers the scenesync collectors on registry.
// A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenesync_transaction_events_total",
				Help: "Transaction lifecycle events by type",
			},
			[]string{"event"},
		),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scenesync_transactions_pending",
			Help: "Transactions waiting for an authority answer",
		}),
		Resolution: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scenesync_transaction_resolution_seconds",
				Help:    "Time from request to commit or rollback",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		requested: make(map[string]time.Time),
	}
	registry.MustRegister(m.Events, m.Pending, m.Resolution)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.TransactionHooks {
	return domain.TransactionHooks{
		OnRequest: func(_ context.Context, e *domain.TransactionEvent) {
			m.Events.WithLabelValues(string(e.Type)).Inc()
			m.Pending.Inc()
			m.mu.Lock()
			m.requested[e.TransactionID] = e.Timestamp
			m.mu.Unlock()
		},
		OnCommit: func(_ context.Context, e *domain.TransactionEvent) {
			m.resolve(e, "committed")
		},
		OnRollback: func(_ context.Context, e *domain.TransactionEvent) {
			m.resolve(e, "rolled_back")
		},
		OnEvict: func(_ context.Context, e *domain.TransactionEvent) {
			m.resolve(e, "")
		},
		OnFail: func(_ context.Context, e *domain.TransactionEvent) {
			m.Events.WithLabelValues(string(e.Type)).Inc()
		},
	}
}

// resolve records the end of a transaction. An empty outcome counts the
// event without observing latency.
func (m *Metrics) resolve(e *domain.TransactionEvent, outcome string) {
	m.Events.WithLabelValues(string(e.Type)).Inc()

	m.mu.Lock()
	start, ok := m.requested[e.TransactionID]
	delete(m.requested, e.TransactionID)
	m.mu.Unlock()

	// Authority-side commits were never requested through these hooks.
	if !ok {
		return
	}
	m.Pending.Dec()
	if outcome != "" {
		m.Resolution.WithLabelValues(outcome).Observe(e.Timestamp.Sub(start).Seconds())
	}
}
