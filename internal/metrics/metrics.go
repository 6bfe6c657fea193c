package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockstream_samples_total", Help: "Symbols processed by collection rounds"},
		[]string{"asset_type", "outcome"}, // outcome: inserted, skipped, failed
	)
	RoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockstream_round_duration_seconds",
			Help:    "Wall time of one collection round",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)
	TaskRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockstream_task_runs_total", Help: "Scheduled task executions"},
		[]string{"task", "status"}, // status: ok, error
	)
	SamplesPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "stockstream_samples_purged_total", Help: "Samples deleted by retention purges"},
	)
)

func init() {
	prometheus.MustRegister(SamplesTotal, RoundDuration, TaskRunsTotal, SamplesPurgedTotal)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
