// Package readiness implements the Readiness Monitor (spec §4.4): two bounded-wait
// state machines — one for engine releases, one for benchmark jobs — sharing a
// ticker-based poll skeleton, generalized from the teacher's kubectl-wait loop
// (bootstrap/installer/pkg/stage/wait.go) from "wait for a kubectl condition" to
// "wait for a typed terminal state returned by the Kube Adapter".
package readiness

import (
	"context"
	"time"
)

// Outcome is the terminal verdict a poll loop can reach.
type Outcome string

const (
	OutcomeReady      Outcome = "ready"
	OutcomeFailed     Outcome = "failed"
	OutcomeTimedOut   Outcome = "timed-out"
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeDisappeared Outcome = "disappeared"
)

// Result is returned by both monitors; Reason is set on any non-success outcome.
type Result struct {
	Outcome Outcome
	Reason  string
}

// CancelCheck is polled at each tick; when it returns true the loop returns a
// cancelled-shaped zero Result immediately so the Executor's cooperative cancellation
// token (spec §5) reaches into the monitor without the monitor needing to know about
// campaigns at all.
type CancelCheck func() bool

// pollLoop runs tick once immediately and then on every period until tick reports
// done, returning tick's Result. When the timeout elapses it returns OutcomeTimedOut
// with reason "readiness wait exceeded timeout"; when cancel() reports true or the
// parent ctx ends it returns an empty Outcome with reason "cancelled", mirroring
// waitForCondition's ctx.Done()/ticker.C select.
func pollLoop(ctx context.Context, timeout, period time.Duration, cancel CancelCheck, tick func() (Result, bool)) Result {
	deadline, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if res, done := tick(); done {
		return res
	}

	for {
		if cancel != nil && cancel() {
			return Result{Outcome: "", Reason: "cancelled"}
		}

		select {
		case <-deadline.Done():
			if deadline.Err() == context.DeadlineExceeded {
				return Result{Outcome: OutcomeTimedOut, Reason: "readiness wait exceeded timeout"}
			}
			return Result{Outcome: "", Reason: "cancelled"}
		case <-ticker.C:
			res, done := tick()
			if done {
				return res
			}
		}
	}
}
