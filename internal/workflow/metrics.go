package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stepExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteflow",
			Subsystem: "workflow",
			Name:      "step_executions_total",
			Help:      "Total number of step executions by step and result",
		},
		[]string{"step", "result"},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siteflow",
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Duration of step executions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"step"},
	)

	stepReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteflow",
			Subsystem: "workflow",
			Name:      "step_replays_total",
			Help:      "Steps answered from cache because their fingerprint was unchanged",
		},
		[]string{"step"},
	)
)

// RegisterMetrics registers the workflow collectors with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(stepExecutions, stepDuration, stepReplays)
}
