// Package zonemon tracks which superzones of each pair's published model
// the live price currently occupies, and emits entered/exited events on
// boundary crossings.
package zonemon

import (
	"log"
	"time"

	"zonesniper/internal/model"
)

// zoneKey identifies a superzone independent of the price-relative
// support/resistance labeling, which changes as the price moves within a
// sticky band and must not count as a crossing.
type zoneKey struct {
	id   int
	kind model.ZoneType
}

func keyOf(ref model.ZoneRef) zoneKey {
	kind := ref.Type
	if kind == model.ZoneSupport || kind == model.ZoneResistance {
		kind = model.ZoneSticky
	}
	return zoneKey{id: ref.ID, kind: kind}
}

// pairContext holds per-pair crossing state. It compares the zone set of
// the latest tick against the previous set; a model swap re-seeds the
// occupancy on the next tick.
type pairContext struct {
	pair      string
	modelAt   time.Time // BuiltAt of the model the occupancy was seeded from
	inside    map[zoneKey]model.ZoneRef
	lastPrice float64
	seeded    bool
}

// Monitor fans price updates through each pair's model and produces zone
// events. Not safe for concurrent use; the coordinator owns it.
type Monitor struct {
	pairs map[string]*pairContext
}

// New builds a monitor for the given pairs.
func New(pairs []string) *Monitor {
	m := &Monitor{pairs: make(map[string]*pairContext, len(pairs))}
	for _, p := range pairs {
		m.pairs[p] = &pairContext{pair: p, inside: make(map[zoneKey]model.ZoneRef)}
	}
	return m
}

// ProcessPriceUpdate evaluates a tick against the pair's current model and
// returns the boundary-crossing events, if any. A nil model (not yet
// computed) produces no events. The first tick after a model swap seeds
// occupancy silently so a restart does not replay "entered" events for
// zones the price has been sitting in all along.
func (m *Monitor) ProcessPriceUpdate(tm *model.TradingModel, tick model.PriceTick) []model.ZoneEvent {
	pc := m.pairs[tick.Pair]
	if pc == nil {
		log.Printf("[zonemon] WARNING: tick for untracked pair %s", tick.Pair)
		return nil
	}
	pc.lastPrice = tick.Price
	if tm == nil {
		return nil
	}

	now := make(map[zoneKey]model.ZoneRef)
	for _, ref := range tm.ZonesAt(tick.Price) {
		now[keyOf(ref)] = ref
	}

	if !pc.seeded || !tm.BuiltAt.Equal(pc.modelAt) {
		pc.inside = now
		pc.modelAt = tm.BuiltAt
		pc.seeded = true
		return nil
	}

	var events []model.ZoneEvent
	for k, ref := range now {
		if _, ok := pc.inside[k]; !ok {
			events = append(events, event(model.ZoneEntered, tick, ref))
		}
	}
	for k, ref := range pc.inside {
		if _, ok := now[k]; !ok {
			events = append(events, event(model.ZoneExited, tick, ref))
		}
	}
	pc.inside = now
	return events
}

// LastPrice returns the most recent price seen for a pair, or (0, false).
func (m *Monitor) LastPrice(pair string) (float64, bool) {
	pc := m.pairs[pair]
	if pc == nil || pc.lastPrice == 0 {
		return 0, false
	}
	return pc.lastPrice, true
}

func event(t model.ZoneEventType, tick model.PriceTick, ref model.ZoneRef) model.ZoneEvent {
	return model.ZoneEvent{
		Type:     t,
		Pair:     tick.Pair,
		ZoneID:   ref.ID,
		ZoneType: ref.Type,
		Price:    tick.Price,
		TS:       tick.TS,
	}
}
