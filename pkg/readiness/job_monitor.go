package readiness

import (
	"context"
	"time"

	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/metrics"
)

// JobMonitorConfig holds the bounded-wait parameters for the benchmark job state
// machine (spec §4.4).
type JobMonitorConfig struct {
	Timeout     time.Duration
	MaxFailures int
	RetryDelay  time.Duration
	PollPeriod  time.Duration
}

func (c JobMonitorConfig) withDefaults() JobMonitorConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 60 * time.Second
	}
	if c.PollPeriod == 0 {
		c.PollPeriod = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 3600 * time.Second
	}
	return c
}

// maxPolls is the hard safety cap: timeout/30 + 10 status polls (spec §4.4).
func (c JobMonitorConfig) maxPolls() int {
	return int(c.Timeout/(30*time.Second)) + 10
}

// JobMonitor drives a benchmark job to {succeeded, failed, timed-out, disappeared}.
type JobMonitor struct {
	adapter kube.Adapter
	cfg     JobMonitorConfig
}

func NewJobMonitor(adapter kube.Adapter, cfg JobMonitorConfig) *JobMonitor {
	return &JobMonitor{adapter: adapter, cfg: cfg.withDefaults()}
}

// Wait polls job_status until the job reaches a terminal state, applying the
// verify-after-succeeded and 5-miss-disappearance heuristics (spec §4.4). Any
// terminal non-success outcome triggers delete_job before returning.
func (m *JobMonitor) Wait(ctx context.Context, name, namespace string, cancel CancelCheck) Result {
	consecutiveFailures := 0
	consecutiveMisses := 0
	polls := 0
	maxPolls := m.cfg.maxPolls()

	tick := func() (Result, bool) {
		polls++
		if polls > maxPolls {
			return m.terminal(ctx, name, namespace, Result{Outcome: OutcomeTimedOut, Reason: "benchmark job exceeded safety poll cap"})
		}

		status, err := m.adapter.JobStatus(ctx, name, namespace)
		if err != nil {
			consecutiveFailures++
			log.Warnf("job readiness: job_status error for %s: %v (failures=%d)", name, err, consecutiveFailures)
			if consecutiveFailures >= m.cfg.MaxFailures {
				return m.terminal(ctx, name, namespace, Result{Outcome: OutcomeFailed, Reason: "benchmark job exceeding maximum failures"})
			}
			time.Sleep(m.cfg.RetryDelay)
			return Result{}, false
		}

		switch status.Phase {
		case kube.JobSucceeded:
			if m.verifySucceeded(ctx, name, namespace) {
				return Result{Outcome: OutcomeSucceeded}, true
			}
			// verification flipped to a non-terminal read; keep polling.
			return Result{}, false
		case kube.JobFailed:
			consecutiveFailures++
			if consecutiveFailures >= m.cfg.MaxFailures {
				reason := status.FailureReason
				if reason == "" {
					reason = "benchmark job exceeding maximum failures"
				}
				return m.terminal(ctx, name, namespace, Result{Outcome: OutcomeFailed, Reason: reason})
			}
			time.Sleep(m.cfg.RetryDelay)
			return Result{}, false
		case kube.JobNotFound:
			consecutiveMisses++
			if consecutiveMisses >= 5 {
				return m.classifyDisappearance(ctx, name, namespace)
			}
			return Result{}, false
		default:
			// running/pending: reset both counters.
			consecutiveFailures = 0
			consecutiveMisses = 0
			return Result{}, false
		}
	}

	result := pollLoop(ctx, m.cfg.Timeout, m.cfg.PollPeriod, cancel, tick)
	if result.Outcome == OutcomeTimedOut && polls <= maxPolls {
		// the wall-clock deadline fired outside tick, so terminal has not run yet.
		result, _ = m.terminal(ctx, name, namespace, result)
	}
	if result.Outcome != "" {
		metrics.ReadinessOutcomesTotal.WithLabelValues("job", string(result.Outcome)).Inc()
	}
	return result
}

// verifySucceeded re-polls after 5s; if the verifier returns succeeded or not_found,
// the job is genuinely succeeded (spec §4.4, §8 boundary behavior).
func (m *JobMonitor) verifySucceeded(ctx context.Context, name, namespace string) bool {
	time.Sleep(5 * time.Second)
	status, err := m.adapter.JobStatus(ctx, name, namespace)
	if err != nil {
		return true
	}
	return status.Phase == kube.JobSucceeded || status.Phase == kube.JobNotFound
}

// classifyDisappearance probes pods directly on >=5 consecutive misses: any pod
// Succeeded -> treat as succeeded; no pods at all -> disappeared (fatal).
func (m *JobMonitor) classifyDisappearance(ctx context.Context, name, namespace string) (Result, bool) {
	pods, err := m.adapter.ListPodsForJob(ctx, name, namespace)
	if err != nil || len(pods) == 0 {
		return m.terminal(ctx, name, namespace, Result{Outcome: OutcomeDisappeared, Reason: "job and its pods are no longer observable"})
	}
	for _, p := range pods {
		if p.Phase == "Succeeded" {
			return Result{Outcome: OutcomeSucceeded}, true
		}
	}
	return m.terminal(ctx, name, namespace, Result{Outcome: OutcomeDisappeared, Reason: "job missing but pods remain in a non-terminal phase"})
}

// terminal deletes the job before surfacing any non-success terminal state.
func (m *JobMonitor) terminal(ctx context.Context, name, namespace string, res Result) (Result, bool) {
	if _, err := m.adapter.DeleteJob(ctx, name, namespace); err != nil {
		log.Warnf("job readiness: failed to delete terminal job %s: %v", name, err)
	}
	return res, true
}
