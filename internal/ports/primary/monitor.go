package primary

import (
	"context"
	"time"
)

// MonitorService defines the primary port for the reminder scheduler.
type MonitorService interface {
	// RunCycle executes one full poll cycle: reload configuration,
	// enumerate monitored cards, and run each card's pipeline with
	// bounded concurrency. Per-card failures are reported in the result,
	// not returned; only cycle-level failures (invalid config, board
	// outage) return an error.
	RunCycle(ctx context.Context) (*CycleResult, error)

	// Run polls on the configured cadence until ctx is cancelled.
	// An in-flight cycle finishes before Run returns.
	Run(ctx context.Context) error
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// Paused is true when the cycle was skipped by the paused flag.
	Paused bool

	CardsSeen int
	Admitted  int
	Reopened  int
	Archived  int

	Outcomes []CardOutcome
}

// CardOutcome is the result of one card's pipeline within a cycle.
type CardOutcome struct {
	CardID string

	// Action is what the pipeline did: a policy action, "responded",
	// "deferred" (cycle deadline hit before start), or "error".
	Action string
	Level  int
	Reason string
	Err    string
}

// CardOutcome action constants beyond the policy actions.
const (
	OutcomeResponded = "responded"
	OutcomeDeferred  = "deferred"
	OutcomeError     = "error"
)

// Counts tallies outcome kinds for logs and the CLI summary.
func (r *CycleResult) Counts() (sent, responded, noops, deferred, errors int) {
	for _, o := range r.Outcomes {
		switch o.Action {
		case "send", "final":
			sent++
		case OutcomeResponded:
			responded++
		case OutcomeDeferred:
			deferred++
		case OutcomeError:
			errors++
		default:
			noops++
		}
	}
	return
}
