package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "station_pipeline_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	stageRuns    *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec

	rowsLoaded   *prometheus.CounterVec
	rowsRejected *prometheus.CounterVec
	rowsDeleted  *prometheus.CounterVec
	rowsPromoted *prometheus.CounterVec
	rowsBuilt    *prometheus.CounterVec

	viewsPublished *prometheus.CounterVec
)

// Init registers pipeline metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		stageRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stage_runs_total",
				Help: "Total stage executions by stage and result",
			},
			[]string{"stage", "result"},
		)
		stageLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stage_latency_seconds",
				Help:    "Stage execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "result"},
		)

		rowsLoaded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_loaded_total",
				Help: "Rows loaded into staging by entity",
			},
			[]string{"entity"},
		)
		rowsRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_rejected_total",
				Help: "Extract rows rejected during staging load by entity",
			},
			[]string{"entity"},
		)
		rowsDeleted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_deleted_total",
				Help: "Staging rows deleted by the validator by entity",
			},
			[]string{"entity"},
		)
		rowsPromoted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_promoted_total",
				Help: "Rows promoted to production by entity",
			},
			[]string{"entity"},
		)
		rowsBuilt = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_built_total",
				Help: "Rows written to the dimensional model by table",
			},
			[]string{"table"},
		)

		viewsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "views_published_total",
				Help: "View publications by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			stageRuns,
			stageLatency,
			rowsLoaded,
			rowsRejected,
			rowsDeleted,
			rowsPromoted,
			rowsBuilt,
			viewsPublished,
		)
	})
}

// ObserveStage records one stage execution.
func ObserveStage(stage, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if stageRuns != nil {
		stageRuns.WithLabelValues(stage, result).Inc()
	}
	if stageLatency != nil {
		stageLatency.WithLabelValues(stage, result).Observe(duration.Seconds())
	}
}

// AddRowsLoaded increments the staging load counter.
func AddRowsLoaded(entity string, count int64) {
	if count > 0 && rowsLoaded != nil {
		rowsLoaded.WithLabelValues(entity).Add(float64(count))
	}
}

// AddRowsRejected increments the staging rejection counter.
func AddRowsRejected(entity string, count int64) {
	if count > 0 && rowsRejected != nil {
		rowsRejected.WithLabelValues(entity).Add(float64(count))
	}
}

// AddRowsDeleted increments the validator delete counter.
func AddRowsDeleted(entity string, count int64) {
	if count > 0 && rowsDeleted != nil {
		rowsDeleted.WithLabelValues(entity).Add(float64(count))
	}
}

// AddRowsPromoted increments the production transfer counter.
func AddRowsPromoted(entity string, count int64) {
	if count > 0 && rowsPromoted != nil {
		rowsPromoted.WithLabelValues(entity).Add(float64(count))
	}
}

// AddRowsBuilt increments the dimensional build counter.
func AddRowsBuilt(table string, count int64) {
	if count > 0 && rowsBuilt != nil {
		rowsBuilt.WithLabelValues(table).Add(float64(count))
	}
}

// IncViewPublished records one view publication attempt.
func IncViewPublished(result string) {
	if result == "" {
		result = resultSuccess
	}
	if viewsPublished != nil {
		viewsPublished.WithLabelValues(result).Inc()
	}
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
