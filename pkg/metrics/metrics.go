package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	SeriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retention_series_total",
			Help: "Total number of series records in the store",
		},
	)

	AuditEventsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retention_audit_events_total",
			Help: "Total number of audit events in the store",
		},
	)

	// Write metrics
	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_writes_total",
			Help: "Total number of committed writes by action",
		},
		[]string{"action"},
	)

	WriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_write_failures_total",
			Help: "Total number of aborted writes by reason",
		},
		[]string{"reason"},
	)

	BulkRecordsUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_bulk_records_updated_total",
			Help: "Total number of records touched by schedule cascades",
		},
	)

	// Query metrics
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retention_search_duration_seconds",
			Help:    "Search execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Exchange metrics
	ImportRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_import_records_total",
			Help: "Total number of imported rows by outcome",
		},
		[]string{"outcome"},
	)

	// Migration metrics
	MigrationRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_migration_records_total",
			Help: "Total number of records touched by schema migration by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SeriesTotal)
	prometheus.MustRegister(AuditEventsTotal)
	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(WriteFailures)
	prometheus.MustRegister(BulkRecordsUpdated)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(ImportRecords)
	prometheus.MustRegister(MigrationRecords)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
