// Package metrics exposes pipeline metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystem = "docenrich"

	executionsStarted  = "executions_started_total"
	executionsFinished = "executions_finished_total"
	stageDuration      = "stage_duration_seconds"
	pollAttempts       = "poll_attempts_total"
	pollsPerExecution  = "polls_per_execution"

	// Labels
	statusLabel = "status"
	reasonLabel = "reason"
	stageLabel  = "stage"
	stateLabel  = "state"
)

var executionsStartedMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      executionsStarted,
		Help:      "number of executions created",
	},
)

var executionsFinishedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      executionsFinished,
		Help:      "number of executions that reached a terminal state, by status and failure reason",
	},
	[]string{statusLabel, reasonLabel},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      stageDuration,
		Help:      "time spent in each stage, including poll backoff",
		Buckets:   prometheus.ExponentialBuckets(0.05, 4, 10),
	},
	[]string{stageLabel},
)

var pollAttemptsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      pollAttempts,
		Help:      "number of text-detection job polls, by reported job state",
	},
	[]string{stateLabel},
)

var pollsPerExecutionMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      pollsPerExecution,
		Help:      "number of polls an execution needed before leaving the poll stage",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
	},
)

func IncreaseExecutionsStarted() {
	executionsStartedMetric.Inc()
}

func IncreaseExecutionsFinished(status, reason string) {
	labels := prometheus.Labels{
		statusLabel: status,
		reasonLabel: reason,
	}
	executionsFinishedMetric.With(labels).Inc()
}

func ObserveStageDuration(stage string, d time.Duration) {
	stageDurationMetric.With(prometheus.Labels{stageLabel: stage}).Observe(d.Seconds())
}

func IncreasePollAttempts(state string) {
	pollAttemptsMetric.With(prometheus.Labels{stateLabel: state}).Inc()
}

func ObservePollsPerExecution(attempts int) {
	pollsPerExecutionMetric.Observe(float64(attempts))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(executionsStartedMetric)
	prometheus.MustRegister(executionsFinishedMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(pollAttemptsMetric)
	prometheus.MustRegister(pollsPerExecutionMetric)
}
