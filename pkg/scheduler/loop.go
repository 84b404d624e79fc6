// Package scheduler implements the Scheduler Loop (spec §4.8): a single-flight loop
// picking the next eligible campaign by (priority, age) and invoking the Executor.
// The loop body is a hand-rolled time.Timer/select, not robfig/cron, because it needs
// a self-adjusting interval (error backoff) and an explicit "process now" wake signal
// that a crontab schedule cannot express.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/primus-bench/orchestrator/pkg/executor"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/metrics"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// Config is the cadence configuration (spec §4.8): default 30s, min 5s, max 3600s.
type Config struct {
	PollInterval time.Duration
	MinInterval  time.Duration
	MaxInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.MinInterval == 0 {
		c.MinInterval = 5 * time.Second
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = time.Hour
	}
	if c.PollInterval < c.MinInterval {
		c.PollInterval = c.MinInterval
	}
	return c
}

// Loop is the single-flight scheduler. At most one Executor runs per process at any
// time; the latch is acquired at the top of the tick and released on every exit path.
type Loop struct {
	campaigns *store.CampaignStore
	exec      *executor.Executor
	cfg       Config

	latch sync.Mutex

	wake     chan struct{}
	shutdown chan struct{}
	done     chan struct{}
}

func New(campaigns *store.CampaignStore, exec *executor.Executor, cfg Config) *Loop {
	return &Loop{
		campaigns: campaigns,
		exec:      exec,
		cfg:       cfg.withDefaults(),
		wake:      make(chan struct{}, 1),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ProcessNow requests an out-of-band tick without waiting for the current interval to
// elapse; it is non-blocking and coalesces with any already-pending wake request.
func (l *Loop) ProcessNow() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Shutdown signals the loop to stop after its current tick and blocks until it exits.
func (l *Loop) Shutdown() {
	close(l.shutdown)
	<-l.done
}

// Run blocks until Shutdown is called or ctx is cancelled. Consecutive loop-body
// errors extend the sleep up to 5x the interval (capped at 5 min), resetting on any
// clean tick (spec §4.8).
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	interval := l.cfg.PollInterval
	consecutiveErrors := 0

	for {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-l.shutdown:
			timer.Stop()
			return
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		}

		err := l.tick(ctx)
		metrics.SchedulerTicksTotal.Inc()

		if err != nil {
			consecutiveErrors++
			log.Errorf("scheduler: tick failed (consecutive=%d): %v", consecutiveErrors, err)
			interval = backoffInterval(l.cfg, consecutiveErrors)
		} else {
			consecutiveErrors = 0
			interval = l.cfg.PollInterval
		}
	}
}

func backoffInterval(cfg Config, consecutiveErrors int) time.Duration {
	multiplier := consecutiveErrors
	if multiplier > 5 {
		multiplier = 5
	}
	next := cfg.PollInterval * time.Duration(multiplier)
	cap5min := 5 * time.Minute
	if next > cap5min {
		next = cap5min
	}
	if next < cfg.MinInterval {
		next = cfg.MinInterval
	}
	if next > cfg.MaxInterval {
		next = cfg.MaxInterval
	}
	return next
}

// tick implements the pick policy (spec §4.8): if any campaign is processing, do
// nothing; else load pending campaigns, sort by (priority desc, created_at asc), pick
// first, run the Executor under the single-flight latch.
func (l *Loop) tick(ctx context.Context) error {
	if !l.latch.TryLock() {
		return nil
	}
	defer l.latch.Unlock()

	processing, err := l.campaigns.ListByStatus(ctx, model.PhaseProcessing)
	if err != nil {
		return err
	}
	if len(processing) > 0 {
		return nil
	}

	pending, err := l.campaigns.PendingOrdered(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	campaign := pending[0]
	metrics.SchedulerQueueDepth.Set(float64(len(pending)))

	start := time.Now()
	err = l.exec.Run(ctx, campaign)
	metrics.ExecutorDuration.Observe(time.Since(start).Seconds())
	return err
}
