package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the bookfill collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	workItems      *prometheus.CounterVec
	rowsPersisted  *prometheus.CounterVec
	fetchErrors    prometheus.Counter
	collectorDays  *prometheus.CounterVec
	unresolvedGaps prometheus.Gauge
}

// New creates and registers the bookfill collectors along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		workItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfill_workitems_total",
				Help: "Backfill work items processed, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		rowsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfill_rows_persisted_total",
				Help: "Snapshots written to the store, by provenance",
			},
			[]string{"provenance"},
		),

		fetchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bookfill_fetch_errors_total",
				Help: "Failed fetches from the market-data source",
			},
		),

		collectorDays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookfill_collector_days_total",
				Help: "Days processed by the daily collector, by outcome",
			},
			[]string{"outcome"},
		),

		unresolvedGaps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bookfill_unresolved_gaps",
				Help: "Work items left unfilled by the last backfill run",
			},
		),
	}

	m.registry.MustRegister(
		m.workItems,
		m.rowsPersisted,
		m.fetchErrors,
		m.collectorDays,
		m.unresolvedGaps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WorkItem counts one processed work item.
func (m *Metrics) WorkItem(kind, outcome string) {
	if m == nil {
		return
	}
	m.workItems.WithLabelValues(kind, outcome).Inc()
}

// RowsPersisted counts n written rows.
func (m *Metrics) RowsPersisted(provenance string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsPersisted.WithLabelValues(provenance).Add(float64(n))
}

// FetchError counts one failed fetch.
func (m *Metrics) FetchError() {
	if m == nil {
		return
	}
	m.fetchErrors.Inc()
}

// CollectorDay counts one collector day.
func (m *Metrics) CollectorDay(outcome string) {
	if m == nil {
		return
	}
	m.collectorDays.WithLabelValues(outcome).Inc()
}

// SetUnresolvedGaps records the unresolved gap count of the latest run.
func (m *Metrics) SetUnresolvedGaps(n int) {
	if m == nil {
		return
	}
	m.unresolvedGaps.Set(float64(n))
}
