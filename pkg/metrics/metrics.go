// Package metrics registers the campaign controller's prometheus collectors, mirroring
// Lens/modules/jobs/pkg/jobs/metrics.go's CounterVec/GaugeVec/HistogramVec-under-a-
// namespace pattern and registering them at package init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SchedulerTicksTotal counts every Scheduler Loop tick, successful or not.
	SchedulerTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "campaign_controller",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total number of scheduler loop ticks.",
	})

	// SchedulerQueueDepth is the number of pending campaigns observed at the most
	// recent tick that picked one.
	SchedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "campaign_controller",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Number of pending campaigns observed at the last tick.",
	})

	// ExecutorDuration tracks how long one Executor.Run invocation takes end to end.
	ExecutorDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "campaign_controller",
		Subsystem: "executor",
		Name:      "run_duration_seconds",
		Help:      "Duration of one campaign's Executor.Run call, in seconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 15),
	})

	// ReadinessOutcomesTotal counts terminal readiness outcomes by monitor kind and
	// outcome (ready/succeeded/failed/timed-out/disappeared).
	ReadinessOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_controller",
		Subsystem: "readiness",
		Name:      "outcomes_total",
		Help:      "Total terminal readiness outcomes, by monitor kind and outcome.",
	}, []string{"monitor", "outcome"})

	// StoreRetriesTotal counts retry attempts the Campaign Store's backoff wrapper made
	// before either succeeding or surfacing StoreUnavailable.
	StoreRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "campaign_controller",
		Subsystem: "store",
		Name:      "retries_total",
		Help:      "Total retry attempts made by the store's backoff wrapper.",
	})

	// CleanupOutcomesTotal counts Cleanup Engine invocations by success/failure.
	CleanupOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_controller",
		Subsystem: "cleanup",
		Name:      "outcomes_total",
		Help:      "Total cleanup_campaign invocations, by outcome (successful/failed).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		SchedulerTicksTotal,
		SchedulerQueueDepth,
		ExecutorDuration,
		ReadinessOutcomesTotal,
		StoreRetriesTotal,
		CleanupOutcomesTotal,
	)
}
