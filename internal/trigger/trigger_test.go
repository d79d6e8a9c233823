package trigger

import (
	"testing"
	"time"
)

func approxEq(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestInitialPriceMarksStaleAndReady(t *testing.T) {
	s := New(0.01, 5*time.Second)

	if !s.ConsiderPriceMove(10000.0) {
		t.Fatal("first price should qualify")
	}
	if !s.ReadyToSchedule() {
		t.Error("expected ready to schedule")
	}
	p, ok := s.PendingPrice()
	if !ok || !approxEq(p, 10000.0) {
		t.Errorf("pendingPrice = %v (ok=%v), want 10000", p, ok)
	}
	if s.StaleReason() == "" {
		t.Error("expected a stale reason")
	}
}

func TestHysteresisThreshold(t *testing.T) {
	s := New(0.01, 5*time.Second)
	s.ConsiderPriceMove(100.0)
	s.OnJobScheduled(100.0)
	s.OnJobSuccess(100.0) // anchor = 100

	if s.ConsiderPriceMove(100.5) {
		t.Error("0.5% move should not qualify at 1% threshold")
	}
	if _, ok := s.PendingPrice(); ok {
		t.Error("sub-threshold move must not set pendingPrice")
	}

	if !s.ConsiderPriceMove(101.5) {
		t.Error("1.5% move should qualify at 1% threshold")
	}
	p, ok := s.PendingPrice()
	if !ok || !approxEq(p, 101.5) {
		t.Errorf("pendingPrice = %v (ok=%v), want 101.5", p, ok)
	}
}

func TestFollowUpQueuedDuringInFlightRun(t *testing.T) {
	s := New(0.01, 5*time.Second)
	s.ConsiderPriceMove(100.0)
	s.OnJobScheduled(100.0)
	s.OnJobSuccess(100.0)

	if !s.ConsiderPriceMove(101.5) {
		t.Fatal("move should qualify")
	}
	s.OnJobScheduled(101.5)
	if !s.InProgress() {
		t.Fatal("expected in progress")
	}
	if _, ok := s.PendingPrice(); ok {
		t.Error("scheduling must clear pendingPrice")
	}

	// 1.48% from active price 101.5, a follow-up candidate.
	if !s.ConsiderPriceMove(103.0) {
		t.Error("follow-up move should qualify against active price")
	}
	if s.InProgress() != true {
		t.Error("follow-up must not interrupt the running job")
	}

	next, ok := s.OnJobSuccess(101.5)
	if !ok || !approxEq(next, 103.0) {
		t.Errorf("follow-up = %v (ok=%v), want 103.0", next, ok)
	}
	anchor, _ := s.AnchorPrice()
	if !approxEq(anchor, 101.5) {
		t.Errorf("anchor = %v, want 101.5", anchor)
	}
	if s.InProgress() {
		t.Error("success must clear inProgress")
	}
}

// Scenario from the follow-up design walkthrough: anchor 50000, threshold 1%,
// debounce 5s. The follow-up at 51200 re-stales the pair after the job for
// 50600 completes, and the next dispatch waits out the debounce window.
func TestFollowUpScenarioWithDebounce(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s := New(0.01, 5*time.Second)
	s.SetClock(func() time.Time { return clock })

	// Seed anchor at 50000.
	s.ConsiderPriceMove(50000)
	s.OnJobScheduled(50000)
	s.OnJobSuccess(50000)

	// t=0: 1.2% move → stale → scheduled.
	if !s.ConsiderPriceMove(50600) {
		t.Fatal("1.2% move should qualify")
	}
	s.OnJobScheduled(50600)
	if a, _ := s.ActivePrice(); !approxEq(a, 50600) {
		t.Errorf("activePrice = %v, want 50600", a)
	}

	// t=2: 1.2% from active → follow-up candidate.
	clock = base.Add(2 * time.Second)
	if !s.ConsiderPriceMove(51200) {
		t.Error("follow-up should qualify")
	}

	// t=3: job completes for 50600.
	clock = base.Add(3 * time.Second)
	next, ok := s.OnJobSuccess(50600)
	if !ok || !approxEq(next, 51200) {
		t.Fatalf("follow-up = %v (ok=%v), want 51200", next, ok)
	}
	anchor, _ := s.AnchorPrice()
	if !approxEq(anchor, 50600) {
		t.Errorf("anchor = %v, want 50600", anchor)
	}
	s.MarkStalePending("follow-up price move", next)

	// Debounce: not eligible until lastRunAt+5s = t=8.
	clock = base.Add(6 * time.Second)
	if s.Eligible() {
		t.Error("pair must not be eligible inside the debounce window")
	}
	clock = base.Add(8 * time.Second)
	if !s.Eligible() {
		t.Error("pair should be eligible once the debounce window elapsed")
	}
	p, _ := s.PendingPrice()
	if !approxEq(p, 51200) {
		t.Errorf("pendingPrice = %v, want 51200", p)
	}
}

func TestDebounceCollapsesQualifyingMoves(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s := New(0.01, 5*time.Second)
	s.SetClock(func() time.Time { return clock })

	s.ConsiderPriceMove(100)
	s.OnJobScheduled(100)
	s.OnJobSuccess(100) // lastRunAt = t0

	dispatched := 0
	drain := func() {
		if s.Eligible() {
			p, _ := s.PendingPrice()
			s.OnJobScheduled(p)
			dispatched++
			s.OnJobSuccess(p)
		}
	}

	// Two qualifying moves at t=0s and t=2s → exactly one dispatch, at or
	// after the debounce boundary.
	s.ConsiderPriceMove(102)
	drain()
	clock = base.Add(2 * time.Second)
	s.ConsiderPriceMove(104)
	drain()
	if dispatched != 0 {
		t.Fatalf("dispatched %d jobs inside debounce window, want 0", dispatched)
	}

	clock = base.Add(5 * time.Second)
	drain()
	if dispatched != 1 {
		t.Errorf("dispatched = %d, want exactly 1 after debounce boundary", dispatched)
	}
}

func TestFailureRetainsAnchorAndRestales(t *testing.T) {
	s := New(0.01, 5*time.Second)
	s.ConsiderPriceMove(200.0)
	s.OnJobScheduled(200.0)
	s.OnJobSuccess(200.0)

	s.ConsiderPriceMove(204.0)
	s.OnJobScheduled(204.0)
	s.OnJobFailure("insufficient data: only 3 candles")

	anchor, _ := s.AnchorPrice()
	if !approxEq(anchor, 200.0) {
		t.Errorf("anchor = %v, failure must not move the anchor", anchor)
	}
	if !s.Stale() {
		t.Error("failed pair must be stale")
	}
	if s.StaleReason() == "" {
		t.Error("failure must record a reason")
	}
	// The failed target is re-seeded so the retry has a pending price.
	p, ok := s.PendingPrice()
	if !ok || !approxEq(p, 204.0) {
		t.Errorf("pendingPrice = %v (ok=%v), want re-seeded 204.0", p, ok)
	}
}

func TestCanceledRestalesOnlyWithSupersedingRequest(t *testing.T) {
	s := New(0.01, 5*time.Second)
	s.ConsiderPriceMove(100.0)
	s.OnJobScheduled(100.0)

	// No follow-up recorded → cancel returns the pair to Idle.
	s.OnJobCanceled()
	if s.Stale() || s.InProgress() {
		t.Error("cancel without superseding request should go Idle")
	}

	s.MarkStalePending("retrigger", 100.0)
	s.OnJobScheduled(100.0)
	s.ConsiderPriceMove(102.0) // superseding follow-up
	s.OnJobCanceled()
	if !s.Stale() {
		t.Error("cancel with superseding request should re-stale")
	}
	p, _ := s.PendingPrice()
	if !approxEq(p, 102.0) {
		t.Errorf("pendingPrice = %v, want 102.0", p)
	}
}
