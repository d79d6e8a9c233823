// Package engine orchestrates per-pair model recalculation: it routes live
// price ticks into the trigger states, schedules stale pairs onto a worker
// pool, drains results, and swaps accepted models into the published front
// buffer.
//
// All trigger and registry state is owned by the single coordinator
// goroutine. Control-plane mutations (pair selection, config reload) arrive
// as commands on a channel and run inside the loop, so no locks guard the
// trigger states.
package engine

import (
	"context"
	"log"
	"time"

	"zonesniper/internal/metrics"
	"zonesniper/internal/model"
	"zonesniper/internal/ringbuf"
	"zonesniper/internal/zonemon"
)

// command is a control-plane mutation executed inside the coordinator loop.
type command func(*Engine)

// Engine is the recompute coordinator for all tracked pairs.
type Engine struct {
	cfg  Config
	comp Computer
	reg  *registry
	mon  *zonemon.Monitor

	tickRing *ringbuf.Ring
	jobCh    chan JobRequest
	resultCh chan JobResult
	cmdCh    chan command
	eventCh  chan model.ZoneEvent

	publisher model.EventPublisher
	prom      *metrics.Metrics
	health    *metrics.HealthStatus

	foreground string // selected pair, scheduled ahead of the rest
	inFlight   int
	lastDiagAt time.Time

	// Test hooks, invoked from the coordinator goroutine. Nil in production.
	OnModelSwap func(pair string)
	OnDiscard   func(res JobResult)
}

// New wires an engine. The publisher may be nil (events are then dropped).
func New(cfg Config, comp Computer, publisher model.EventPublisher, prom *metrics.Metrics, health *metrics.HealthStatus) *Engine {
	return &Engine{
		cfg:       cfg,
		comp:      comp,
		reg:       newRegistry(cfg.Pairs, cfg.HysteresisThreshold, cfg.DebounceInterval),
		mon:       zonemon.New(cfg.Pairs),
		tickRing:  ringbuf.New(cfg.RingSize),
		jobCh:     make(chan JobRequest, cfg.Workers*2),
		resultCh:  make(chan JobResult, cfg.Workers*2),
		cmdCh:     make(chan command, 32),
		eventCh:   make(chan model.ZoneEvent, cfg.EventBuffer),
		publisher: publisher,
		prom:      prom,
		health:    health,
	}
}

// TickRing returns the ring the price feed pushes into. Single producer
// only; the coordinator is the sole consumer.
func (e *Engine) TickRing() *ringbuf.Ring { return e.tickRing }

// Model returns the published model for a pair, or nil. Safe from any
// goroutine.
func (e *Engine) Model(pair string) *model.TradingModel {
	entry := e.reg.get(pair)
	if entry == nil {
		return nil
	}
	return entry.model.Load()
}

// Run starts the worker pool and the coordinator loop, blocking until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[engine] starting coordinator: %d pairs, %d workers, threshold %.2f%%, debounce %s",
		len(e.cfg.Pairs), e.cfg.Workers, e.cfg.HysteresisThreshold*100, e.cfg.DebounceInterval)

	for i := 0; i < e.cfg.Workers; i++ {
		go e.worker(ctx)
	}
	if e.publisher != nil {
		go e.publisher.RunZoneEvents(ctx, e.eventCh)
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[engine] coordinator stopped")
			return ctx.Err()

		case cmd := <-e.cmdCh:
			cmd(e)

		case res := <-e.resultCh:
			e.onResult(res)

		case <-ticker.C:
			e.drainTicks()
			e.drainResults()
			e.schedule()
			e.publishDiagnostics(ctx, false)
		}
	}
}

// drainTicks empties the tick ring, feeding the trigger states and the zone
// monitor.
func (e *Engine) drainTicks() {
	for {
		tick, ok := e.tickRing.Pop()
		if !ok {
			return
		}
		entry := e.reg.get(tick.Pair)
		if entry == nil {
			continue
		}

		if entry.trig.ConsiderPriceMove(tick.Price) {
			e.prom.TriggerFires.Inc()
		}

		for _, ev := range e.mon.ProcessPriceUpdate(entry.model.Load(), tick) {
			e.prom.ZoneEvents.WithLabelValues(string(ev.Type)).Inc()
			select {
			case e.eventCh <- ev:
			default:
				e.prom.PublishDrops.Inc()
			}
		}
	}
}

// drainResults consumes every completed job without blocking.
func (e *Engine) drainResults() {
	for {
		select {
		case res := <-e.resultCh:
			e.onResult(res)
		default:
			return
		}
	}
}

// onResult applies one completed job and immediately re-runs the scheduler,
// so a freed worker slot picks up the next eligible pair without waiting
// for the next tick.
func (e *Engine) onResult(res JobResult) {
	e.handleResult(res)
	e.schedule()
}

// handleResult validates a completed job against the current epoch and the
// params it was dispatched with, then applies the outcome to the trigger
// state. Stale results are discarded without touching the front buffer.
func (e *Engine) handleResult(res JobResult) {
	entry := e.reg.get(res.Pair)
	if entry == nil {
		return
	}
	e.inFlight--
	entry.cancel = nil

	if res.Epoch != e.reg.epoch || !res.Params.Equal(entry.activeParams) {
		e.prom.JobsDiscarded.Inc()
		entry.trig.ClearInFlight()
		if e.OnDiscard != nil {
			e.OnDiscard(res)
		}
		log.Printf("[engine] %s: discarded stale result (epoch %d vs %d)", res.Pair, res.Epoch, e.reg.epoch)
		return
	}

	switch res.Outcome {
	case OutcomeSuccess:
		entry.model.Store(res.Model)
		e.prom.JobsSucceeded.Inc()
		e.prom.ModelSwaps.Inc()
		e.prom.CalcDuration.Observe(res.Elapsed.Seconds())
		e.prom.CandlesScanned.Add(float64(res.Params.TotalCandles()))

		next, ok := entry.trig.OnJobSuccess(res.Price)
		log.Printf("[engine] %s: model swapped in (%d candles, %s)", res.Pair, res.Params.TotalCandles(), res.Elapsed.Round(time.Millisecond))
		if ok {
			entry.trig.MarkStalePending("follow-up move during calculation", next)
		}
		if e.OnModelSwap != nil {
			e.OnModelSwap(res.Pair)
		}

	case OutcomeFailure:
		e.prom.JobsFailed.Inc()
		entry.trig.OnJobFailure(res.Err.Error())
		log.Printf("[engine] %s: calculation failed: %v", res.Pair, res.Err)

	case OutcomeCanceled:
		e.prom.JobsCanceled.Inc()
		entry.trig.OnJobCanceled()
	}
}

// schedule dispatches eligible pairs to the worker pool, foreground pair
// first, then by how long each has been stale. Dispatch stops when the pool
// is saturated.
func (e *Engine) schedule() {
	// One pass per pair at most: a params build failure re-marks the pair
	// stale and must not retry within the same pass.
	for attempts := 0; e.inFlight < cap(e.jobCh) && attempts < len(e.reg.order); attempts++ {
		entry := e.pickNext()
		if entry == nil {
			break
		}
		e.dispatch(entry)
	}
	e.prom.StalePairs.Set(float64(e.reg.staleCount()))
	e.prom.InFlightJobs.Set(float64(e.inFlight))
}

// pickNext returns the most urgent eligible pair, or nil.
func (e *Engine) pickNext() *pairEntry {
	if fg := e.reg.get(e.foreground); fg != nil && fg.trig.Eligible() {
		return fg
	}

	var best *pairEntry
	for _, pair := range e.reg.order {
		entry := e.reg.get(pair)
		if !entry.trig.Eligible() {
			if entry.trig.ReadyToSchedule() {
				e.prom.DebounceHolds.Inc()
			}
			continue
		}
		if best == nil || entry.trig.StaleSince().Before(best.trig.StaleSince()) {
			best = entry
		}
	}
	return best
}

// dispatch builds params for one stale pair and hands the job to the pool.
// A params build failure counts as a failed run so debounce spaces retries.
func (e *Engine) dispatch(entry *pairEntry) {
	price, ok := entry.trig.PendingPrice()
	if !ok {
		price, ok = e.mon.LastPrice(entry.pair)
	}
	if !ok {
		// Nothing to anchor the calculation on yet: wait for a tick.
		entry.trig.OnJobFailure("no live price available")
		return
	}

	params, err := e.comp.BuildParams(entry.pair, price)
	if err != nil {
		entry.trig.OnJobFailure(err.Error())
		log.Printf("[engine] %s: params build failed: %v", entry.pair, err)
		return
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	entry.cancel = cancel
	entry.activeParams = params
	entry.activeEpoch = e.reg.epoch
	entry.trig.OnJobScheduled(price)
	e.inFlight++
	e.prom.JobsDispatched.Inc()

	e.jobCh <- JobRequest{
		Pair:   entry.pair,
		Price:  price,
		Params: params,
		Epoch:  e.reg.epoch,
		ctx:    jobCtx,
	}
	log.Printf("[engine] %s: dispatched calculation at %.4f (%d candles)", entry.pair, price, params.TotalCandles())
}

// publishDiagnostics pushes a trigger-state snapshot at the configured
// interval. force bypasses the interval check.
func (e *Engine) publishDiagnostics(ctx context.Context, force bool) {
	if !force && time.Since(e.lastDiagAt) < e.cfg.DiagInterval {
		return
	}
	e.lastDiagAt = time.Now()

	diags := e.diagnostics()
	if e.health != nil {
		e.health.SetPairCounts(len(diags), e.reg.modeledCount())
	}
	if e.publisher != nil {
		e.publisher.PublishDiagnostics(ctx, diags)
	}
}

// diagnostics snapshots every pair's trigger state. Coordinator-only.
func (e *Engine) diagnostics() []model.TriggerDiagnostics {
	diags := make([]model.TriggerDiagnostics, 0, len(e.reg.order))
	for _, pair := range e.reg.order {
		entry := e.reg.get(pair)
		anchor, _ := entry.trig.AnchorPrice()
		diags = append(diags, model.TriggerDiagnostics{
			Pair:        pair,
			AnchorPrice: anchor,
			Stale:       entry.trig.Stale(),
			InProgress:  entry.trig.InProgress(),
			StaleReason: entry.trig.StaleReason(),
			LastRunAt:   entry.trig.LastRunAt(),
			HasModel:    entry.model.Load() != nil,
		})
	}
	return diags
}

// Control plane. Public methods enqueue commands; the coordinator executes
// them between ticks. Each blocks until the loop has applied the command.

// SelectPair marks a pair as foreground: it is scheduled ahead of every
// other stale pair. Background pairs keep recalculating as usual.
func (e *Engine) SelectPair(pair string) {
	e.do(func(en *Engine) {
		en.foreground = pair
		log.Printf("[engine] foreground pair: %s", pair)
	})
}

// Reload applies new global calculation parameters: the dispatch epoch is
// bumped (invalidating and canceling in-flight jobs) and every pair is
// marked stale so the next schedule pass rebuilds all models.
func (e *Engine) Reload(reason string) {
	e.do(func(en *Engine) {
		en.reg.bumpEpoch()
		for _, pair := range en.reg.order {
			en.reg.get(pair).trig.MarkStale(reason)
		}
		log.Printf("[engine] reload: epoch %d, all pairs stale (%s)", en.reg.epoch, reason)
	})
}

// Diagnostics returns a snapshot of every pair's trigger state.
func (e *Engine) Diagnostics() []model.TriggerDiagnostics {
	var out []model.TriggerDiagnostics
	e.do(func(en *Engine) { out = en.diagnostics() })
	return out
}

func (e *Engine) do(cmd command) {
	done := make(chan struct{})
	e.cmdCh <- func(en *Engine) {
		cmd(en)
		close(done)
	}
	<-done
}
