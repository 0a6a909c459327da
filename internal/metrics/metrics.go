// Package metrics exposes Prometheus instrumentation for the pipeline and the export ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerprices_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"granularity", "status"}, // status: success|error
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerprices_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"granularity"},
	)

	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerprices_exports_total",
			Help: "Total number of CSV exports",
		},
		[]string{"view", "published"},
	)

	RecordsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerprices_records_loaded",
			Help: "Number of daily price records held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(Exports)
	prometheus.MustRegister(RecordsLoaded)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPipelineRun records one pipeline run.
func RecordPipelineRun(granularity string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PipelineRuns.WithLabelValues(granularity, status).Inc()
	PipelineDuration.WithLabelValues(granularity).Observe(duration.Seconds())
}

// RecordExport records one CSV export.
func RecordExport(view string, published bool) {
	p := "false"
	if published {
		p = "true"
	}
	Exports.WithLabelValues(view, p).Inc()
}
