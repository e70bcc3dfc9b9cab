// Package metrics holds the prometheus collectors for the pipeline and ingestion paths.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tariqi"

var (
	once sync.Once

	ReportsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "reports_fetched_total",
		Help:      "Raw reports pulled by pipeline runs.",
	})

	ReportsRelevant = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "reports_relevant_total",
		Help:      "Raw reports classified as relevant.",
	})

	ExtractFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "extract_failures_total",
		Help:      "Raw reports whose extraction failed and were excluded from grouping.",
	})

	IncidentsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "incidents_verified_total",
		Help:      "Groups promoted to verified incidents.",
	})

	IncidentsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "incidents_persisted_total",
		Help:      "Verified incidents saved to storage.",
	})

	IncidentPersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "incident_persist_failures_total",
		Help:      "Verified incidents that could not be saved.",
	})

	MarkProcessedFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "mark_processed_failures_total",
		Help:      "Bulk mark-processed updates that failed, per origin.",
	})

	IncidentsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "incidents_published_total",
		Help:      "Persisted incidents handed to the message broker, labeled by result.",
	}, []string{"result"})

	RunDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one pipeline run.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	ReportsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "reports_ingested_total",
		Help:      "Raw reports received by ingestion collaborators, labeled by origin and status.",
	}, []string{"origin", "status"})
)

// Register registers all collectors with the default registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsFetched,
			ReportsRelevant,
			ExtractFailures,
			IncidentsVerified,
			IncidentsPersisted,
			IncidentPersistFailures,
			MarkProcessedFailures,
			IncidentsPublished,
			RunDurationSeconds,
			ReportsIngested,
		)
	})
}
