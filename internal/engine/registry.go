package engine

import (
	"context"
	"sync/atomic"
	"time"

	"zonesniper/internal/model"
	"zonesniper/internal/trigger"
)

// pairEntry is the coordinator-owned state for one tracked pair. Only the
// model pointer is touched from outside the coordinator goroutine.
type pairEntry struct {
	pair string
	trig *trigger.State

	// model is the published front buffer. Swapped atomically on job
	// success; readers on any goroutine load a complete snapshot and the
	// garbage collector reclaims replaced models once the last reader
	// drops its pointer.
	model atomic.Pointer[model.TradingModel]

	// In-flight job bookkeeping, coordinator-only.
	cancel       context.CancelFunc
	activeParams model.DataParams
	activeEpoch  uint64
}

// registry holds all tracked pairs plus the global dispatch epoch.
type registry struct {
	pairs map[string]*pairEntry
	order []string // stable iteration order
	epoch uint64
}

func newRegistry(pairs []string, threshold float64, debounce time.Duration) *registry {
	r := &registry{pairs: make(map[string]*pairEntry, len(pairs))}
	for _, p := range pairs {
		r.pairs[p] = &pairEntry{pair: p, trig: trigger.New(threshold, debounce)}
		r.order = append(r.order, p)
	}
	return r
}

// get returns the entry for a pair, or nil.
func (r *registry) get(pair string) *pairEntry { return r.pairs[pair] }

// bumpEpoch invalidates every in-flight job: their results will carry the
// old epoch and be discarded on drain. Running jobs are also canceled so
// they stop burning CPU.
func (r *registry) bumpEpoch() {
	r.epoch++
	for _, e := range r.pairs {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

// modeledCount returns how many pairs have a published model.
func (r *registry) modeledCount() int {
	n := 0
	for _, e := range r.pairs {
		if e.model.Load() != nil {
			n++
		}
	}
	return n
}

// staleCount returns how many pairs are currently marked stale.
func (r *registry) staleCount() int {
	n := 0
	for _, e := range r.pairs {
		if e.trig.Stale() {
			n++
		}
	}
	return n
}
