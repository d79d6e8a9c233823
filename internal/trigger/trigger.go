// Package trigger tracks per-pair recalculation triggers: hysteresis against
// an anchor price, debounce between runs, and in-flight job bookkeeping.
//
// A State is owned exclusively by the engine's coordinator goroutine, so no
// locks needed. The state machine cycles Idle → Stale → InProgress → Idle for
// the lifetime of the tracked pair.
package trigger

import (
	"fmt"
	"math"
	"time"
)

// State holds the trigger bookkeeping for a single tracked pair.
type State struct {
	threshold float64       // minimum relative move to go stale
	debounce  time.Duration // minimum spacing between completed runs

	anchor     float64 // price of the last accepted result
	hasAnchor  bool
	pending    float64 // qualifying price not yet scheduled
	hasPending bool
	active     float64 // price of the in-flight job
	hasActive  bool

	lastRunAt   time.Time // last completed (accepted or failed) job
	stale       bool
	inProgress  bool
	staleReason string
	staleSince  time.Time // first time the current staleness was observed

	now func() time.Time // test hook
}

// New creates an idle trigger state.
func New(threshold float64, debounce time.Duration) *State {
	return &State{
		threshold: threshold,
		debounce:  debounce,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock. Test use only.
func (s *State) SetClock(now func() time.Time) { s.now = now }

// ConsiderPriceMove compares price against the anchor (or the in-flight
// job's price, to detect follow-up moves) and returns true iff the relative
// move meets the hysteresis threshold.
//
// When no job is in flight a qualifying move marks the pair stale with
// pendingPrice = price. When a job IS in flight the move is recorded as a
// follow-up candidate: the running job is unaffected, and the candidate is
// returned by OnJobSuccess so the pair can be re-marked stale.
func (s *State) ConsiderPriceMove(price float64) bool {
	if s.inProgress {
		ref, ok := s.active, s.hasActive
		if !ok {
			ref, ok = s.anchor, s.hasAnchor
		}
		if !ok || relativeMove(ref, price) >= s.threshold {
			s.pending = price
			s.hasPending = true
			return true
		}
		return false
	}

	if !s.hasAnchor {
		s.markStale("initial analysis", price, true)
		return true
	}

	if pct := relativeMove(s.anchor, price); pct >= s.threshold {
		reason := fmt.Sprintf("price move %.2f%% (anchor %.4f -> %.4f)", pct*100, s.anchor, price)
		s.markStale(reason, price, true)
		return true
	}
	return false
}

// MarkStale forces staleness without seeding a pending price (e.g. a global
// parameter change; the scheduler will build params from the live price).
func (s *State) MarkStale(reason string) {
	s.markStale(reason, 0, false)
}

// MarkStalePending forces staleness and seeds pendingPrice (e.g. a follow-up
// move returned by OnJobSuccess).
func (s *State) MarkStalePending(reason string, price float64) {
	s.markStale(reason, price, true)
}

func (s *State) markStale(reason string, price float64, hasPrice bool) {
	if !s.stale {
		s.staleSince = s.now()
	}
	s.stale = true
	s.staleReason = reason
	if hasPrice {
		s.pending = price
		s.hasPending = true
	}
}

// OnJobScheduled transitions Stale → InProgress for a job dispatched at the
// given price. The pending price is consumed by the dispatch.
func (s *State) OnJobScheduled(price float64) {
	s.inProgress = true
	s.stale = false
	s.active = price
	s.hasActive = true
	s.pending = 0
	s.hasPending = false
}

// OnJobSuccess records an accepted result computed at resultPrice: the anchor
// moves to resultPrice and the pair returns to Idle. If a follow-up candidate
// was recorded while the job ran it is returned with ok=true; the caller
// re-marks the pair stale with it.
func (s *State) OnJobSuccess(resultPrice float64) (nextPrice float64, ok bool) {
	nextPrice, ok = s.pending, s.hasPending
	s.anchor = resultPrice
	s.hasAnchor = true
	s.active = 0
	s.hasActive = false
	s.pending = 0
	s.hasPending = false
	s.inProgress = false
	s.lastRunAt = s.now()
	s.staleReason = ""
	return nextPrice, ok
}

// OnJobFailure records a failed run. The anchor is left unchanged so the same
// target can be retried; the pair goes back to Stale with the failure reason.
// If no follow-up candidate arrived during the run, the failed job's price is
// re-seeded as the pending target.
func (s *State) OnJobFailure(reason string) {
	if !s.hasPending && s.hasActive {
		s.pending = s.active
		s.hasPending = true
	}
	s.active = 0
	s.hasActive = false
	s.inProgress = false
	s.lastRunAt = s.now()
	s.markStale(reason, 0, false)
}

// OnJobCanceled clears the in-flight state. The pair is re-marked stale only
// if a superseding request (follow-up candidate) exists; otherwise it goes
// back to Idle.
func (s *State) OnJobCanceled() {
	s.active = 0
	s.hasActive = false
	s.inProgress = false
	if s.hasPending {
		s.markStale("superseded while in flight", 0, false)
	}
}

// ClearInFlight drops the in-flight marker without touching staleness.
// Used when a result is discarded for parameter mismatch: the scheduler
// re-evaluates the pair on the next drain.
func (s *State) ClearInFlight() {
	s.active = 0
	s.hasActive = false
	s.inProgress = false
}

// ReadyToSchedule reports Stale with no job in flight.
func (s *State) ReadyToSchedule() bool {
	return s.stale && !s.inProgress
}

// DebounceElapsed reports whether enough wall-clock time has passed since the
// last completed run.
func (s *State) DebounceElapsed() bool {
	if s.lastRunAt.IsZero() {
		return true
	}
	return s.now().Sub(s.lastRunAt) >= s.debounce
}

// Eligible reports whether the scheduler may dispatch this pair now.
func (s *State) Eligible() bool {
	return s.ReadyToSchedule() && s.DebounceElapsed()
}

// Accessors for the scheduler and diagnostics.

func (s *State) InProgress() bool      { return s.inProgress }
func (s *State) Stale() bool           { return s.stale }
func (s *State) StaleReason() string   { return s.staleReason }
func (s *State) StaleSince() time.Time { return s.staleSince }
func (s *State) LastRunAt() time.Time  { return s.lastRunAt }

// AnchorPrice returns the anchor and whether one exists.
func (s *State) AnchorPrice() (float64, bool) { return s.anchor, s.hasAnchor }

// PendingPrice returns the pending target and whether one exists.
func (s *State) PendingPrice() (float64, bool) { return s.pending, s.hasPending }

// ActivePrice returns the in-flight job's price and whether one exists.
func (s *State) ActivePrice() (float64, bool) { return s.active, s.hasActive }

func relativeMove(anchor, price float64) float64 {
	denom := math.Abs(anchor)
	if denom < math.SmallestNonzeroFloat64 {
		denom = math.SmallestNonzeroFloat64
	}
	return math.Abs(price-anchor) / denom
}
