package readiness

import (
	"context"
	"time"

	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/metrics"
)

// EngineMonitorConfig holds the bounded-wait parameters for the engine release state
// machine (spec §4.4).
type EngineMonitorConfig struct {
	Timeout     time.Duration
	MaxFailures int
	RetryDelay  time.Duration
	PollPeriod  time.Duration
}

func (c EngineMonitorConfig) withDefaults() EngineMonitorConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.PollPeriod == 0 {
		c.PollPeriod = 10 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 600 * time.Second
	}
	return c
}

// EngineMonitor drives an engine release to {ready, failed, timed-out}.
type EngineMonitor struct {
	adapter kube.Adapter
	cfg     EngineMonitorConfig
}

func NewEngineMonitor(adapter kube.Adapter, cfg EngineMonitorConfig) *EngineMonitor {
	return &EngineMonitor{adapter: adapter, cfg: cfg.withDefaults()}
}

// Wait polls release_status and pod_readiness until the release reaches ready, fails
// past max_failures, or the timeout elapses.
func (m *EngineMonitor) Wait(ctx context.Context, releaseName, namespace, podSelector string, cancel CancelCheck) Result {
	consecutiveFailures := 0

	tick := func() (Result, bool) {
		status, err := m.adapter.ReleaseStatus(ctx, releaseName, namespace)
		if err != nil {
			consecutiveFailures++
			log.Warnf("engine readiness: release_status error for %s: %v (failures=%d)", releaseName, err, consecutiveFailures)
			if consecutiveFailures >= m.cfg.MaxFailures {
				return Result{Outcome: OutcomeFailed, Reason: "engine release exceeding maximum failures"}, true
			}
			time.Sleep(m.cfg.RetryDelay)
			return Result{}, false
		}

		switch status.Phase {
		case kube.ReleaseDeployed:
			ready, err := m.adapter.PodReadiness(ctx, podSelector, namespace)
			if err != nil || !ready {
				return Result{}, false
			}
			return Result{Outcome: OutcomeReady}, true
		case kube.ReleaseFailed:
			consecutiveFailures++
			if consecutiveFailures >= m.cfg.MaxFailures {
				return Result{Outcome: OutcomeFailed, Reason: "engine release exceeding maximum failures"}, true
			}
			time.Sleep(m.cfg.RetryDelay)
			return Result{}, false
		default:
			// pending-install/pending-upgrade/unknown: transitional, reset failures.
			consecutiveFailures = 0
			return Result{}, false
		}
	}

	result := pollLoop(ctx, m.cfg.Timeout, m.cfg.PollPeriod, cancel, tick)
	if result.Outcome != "" {
		metrics.ReadinessOutcomesTotal.WithLabelValues("engine", string(result.Outcome)).Inc()
	}
	return result
}
