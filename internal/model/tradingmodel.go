package model

import (
	"math"
	"time"
)

// PriceRange divides [Min, Max] into ZoneCount equal-width chunks.
type PriceRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	ZoneCount int     `json:"zone_count"`
}

// ChunkSize returns the width of one zone.
func (r PriceRange) ChunkSize() float64 {
	return (r.Max - r.Min) / float64(r.ZoneCount)
}

// ChunkIndex maps a price to its zone index, clamped to the valid range.
// Clamping handles floating-point inaccuracies at the boundary.
func (r PriceRange) ChunkIndex(price float64) int {
	idx := int((price - r.Min) / r.ChunkSize())
	if idx < 0 {
		idx = 0
	}
	if idx > r.ZoneCount-1 {
		idx = r.ZoneCount - 1
	}
	return idx
}

// ChunkBounds returns the [lower, upper] price bounds of a zone index.
func (r PriceRange) ChunkBounds(idx int) (float64, float64) {
	lower := r.Min + float64(idx)*r.ChunkSize()
	return lower, lower + r.ChunkSize()
}

// IntersectingChunks returns the first zone index and the count of zones
// intersected by the price span [low, high]. Count is 0 if the span falls
// entirely outside [Min, Max].
func (r PriceRange) IntersectingChunks(low, high float64) (int, int) {
	if high < low {
		low, high = high, low
	}
	first := int(math.Floor((low - r.Min) / r.ChunkSize()))
	if first < 0 {
		first = 0
	}
	last := int(math.Floor((high - r.Min) / r.ChunkSize()))
	if last > r.ZoneCount-1 {
		last = r.ZoneCount - 1
	}
	if last < first {
		return first, 0
	}
	return first, last - first + 1
}

// ScoreType selects one of the CVA score vectors.
type ScoreType int

const (
	ScoreFullCandle ScoreType = iota // volume-weighted full candle span (sticky detection)
	ScoreLowWick                     // rejection at lows
	ScoreHighWick                    // rejection at highs
	ScoreQuoteVolume
)

// CVACore holds the accumulated zone scores for one pair under one set of
// DataParams. It is built once by the calculation worker and never mutated
// afterwards.
type CVACore struct {
	Pair        string     `json:"pair"`
	Range       PriceRange `json:"range"`
	DecayFactor float64    `json:"decay_factor"`

	FullCandleVW []float64 `json:"full_candle_vw"`
	LowWickVW    []float64 `json:"low_wick_vw"`
	HighWickVW   []float64 `json:"high_wick_vw"`
	QuoteVolumes []float64 `json:"quote_volumes"`

	StartTS time.Time `json:"start_ts"`
	EndTS   time.Time `json:"end_ts"`
}

// NewCVACore allocates zeroed score vectors for the given range.
func NewCVACore(pair string, rng PriceRange, decayFactor float64) *CVACore {
	n := rng.ZoneCount
	return &CVACore{
		Pair:         pair,
		Range:        rng,
		DecayFactor:  decayFactor,
		FullCandleVW: make([]float64, n),
		LowWickVW:    make([]float64, n),
		HighWickVW:   make([]float64, n),
		QuoteVolumes: make([]float64, n),
	}
}

// Scores returns the score vector for the given type.
func (c *CVACore) Scores(st ScoreType) []float64 {
	switch st {
	case ScoreLowWick:
		return c.LowWickVW
	case ScoreHighWick:
		return c.HighWickVW
	case ScoreQuoteVolume:
		return c.QuoteVolumes
	default:
		return c.FullCandleVW
	}
}

// SpreadScore distributes weight evenly across every zone intersected by the
// price span [low, high]. A span that collapses to a point adds nothing.
func (c *CVACore) SpreadScore(st ScoreType, low, high, weight float64) {
	if low == high {
		return
	}
	first, count := c.Range.IntersectingChunks(low, high)
	if count == 0 {
		return
	}
	perZone := weight / float64(count)
	scores := c.Scores(st)
	for i := first; i < first+count && i < len(scores); i++ {
		scores[i] += perZone
	}
}

// ZoneType classifies what a price zone means for trading decisions.
type ZoneType int

const (
	ZoneSticky     ZoneType = iota // high consolidation, price tends to dwell here
	ZoneSupport                    // nearest sticky superzone below current price
	ZoneResistance                 // nearest sticky superzone above current price
	ZoneLowWicks                   // rejection activity at lows
	ZoneHighWicks                  // rejection activity at highs
)

func (t ZoneType) String() string {
	switch t {
	case ZoneSticky:
		return "sticky"
	case ZoneSupport:
		return "support"
	case ZoneResistance:
		return "resistance"
	case ZoneLowWicks:
		return "low_wicks"
	case ZoneHighWicks:
		return "high_wicks"
	default:
		return "unknown"
	}
}

// Zone is a single fixed-width price zone.
type Zone struct {
	Index       int     `json:"index"`
	PriceBottom float64 `json:"price_bottom"`
	PriceTop    float64 `json:"price_top"`
}

// NewZone builds the zone at idx within rng.
func NewZone(idx int, rng PriceRange) Zone {
	bottom, top := rng.ChunkBounds(idx)
	return Zone{Index: idx, PriceBottom: bottom, PriceTop: top}
}

// Contains reports whether price falls within the zone (inclusive).
func (z Zone) Contains(price float64) bool {
	return price >= z.PriceBottom && price <= z.PriceTop
}

// Center returns the zone's mid price.
func (z Zone) Center() float64 { return (z.PriceBottom + z.PriceTop) / 2 }

// SuperZone aggregates one or more contiguous zones of the same type,
// reducing noise and giving a meaningful price band.
type SuperZone struct {
	// ID is the index of the first constituent zone, stable across rebuilds
	// of the same params.
	ID          int     `json:"id"`
	FirstIndex  int     `json:"first_index"`
	LastIndex   int     `json:"last_index"`
	PriceBottom float64 `json:"price_bottom"`
	PriceTop    float64 `json:"price_top"`
}

// Contains reports whether price falls within the superzone.
func (s SuperZone) Contains(price float64) bool {
	return price >= s.PriceBottom && price <= s.PriceTop
}

// Center returns the superzone's mid price.
func (s SuperZone) Center() float64 { return (s.PriceBottom + s.PriceTop) / 2 }

// DistanceTo returns the absolute distance from price to the center.
func (s SuperZone) DistanceTo(price float64) float64 {
	return math.Abs(s.Center() - price)
}

// ClassifiedZones groups the per-type zone classification of a model.
type ClassifiedZones struct {
	Sticky    []Zone `json:"sticky"`
	LowWicks  []Zone `json:"low_wicks"`
	HighWicks []Zone `json:"high_wicks"`

	StickySuper    []SuperZone `json:"sticky_super"`
	LowWicksSuper  []SuperZone `json:"low_wicks_super"`
	HighWicksSuper []SuperZone `json:"high_wicks_super"`
}

// ZoneRef identifies one superzone a price currently sits in.
type ZoneRef struct {
	ID   int      `json:"id"`
	Type ZoneType `json:"type"`
}

// TradingModel is the immutable computed artifact for one pair under one set
// of DataParams. It is published through an atomic pointer swap: readers that
// loaded the previous pointer keep a complete, consistent snapshot until they
// drop it, and the garbage collector frees whichever model nobody holds.
type TradingModel struct {
	Pair    string          `json:"pair"`
	Params  DataParams      `json:"params"`
	CVA     *CVACore        `json:"cva"`
	Zones   ClassifiedZones `json:"zones"`
	BuiltAt time.Time       `json:"built_at"`
}

// NearestSupport returns the closest sticky superzone strictly below price.
func (m *TradingModel) NearestSupport(price float64) (SuperZone, bool) {
	return m.nearestSticky(price, func(c float64) bool { return c < price })
}

// NearestResistance returns the closest sticky superzone strictly above price.
func (m *TradingModel) NearestResistance(price float64) (SuperZone, bool) {
	return m.nearestSticky(price, func(c float64) bool { return c > price })
}

func (m *TradingModel) nearestSticky(price float64, side func(float64) bool) (SuperZone, bool) {
	var best SuperZone
	bestDist := math.Inf(1)
	found := false
	for _, sz := range m.Zones.StickySuper {
		if !side(sz.Center()) {
			continue
		}
		if d := sz.DistanceTo(price); d < bestDist {
			best, bestDist, found = sz, d, true
		}
	}
	return best, found
}

// ZonesAt returns every superzone containing the given price. Sticky
// superzones are reported as support or resistance when they are the nearest
// such zone relative to the price.
func (m *TradingModel) ZonesAt(price float64) []ZoneRef {
	var refs []ZoneRef

	sup, hasSup := m.NearestSupport(price)
	res, hasRes := m.NearestResistance(price)

	for _, sz := range m.Zones.StickySuper {
		if !sz.Contains(price) {
			continue
		}
		zt := ZoneSticky
		if hasSup && sup.ID == sz.ID {
			zt = ZoneSupport
		} else if hasRes && res.ID == sz.ID {
			zt = ZoneResistance
		}
		refs = append(refs, ZoneRef{ID: sz.ID, Type: zt})
	}
	for _, sz := range m.Zones.LowWicksSuper {
		if sz.Contains(price) {
			refs = append(refs, ZoneRef{ID: sz.ID, Type: ZoneLowWicks})
		}
	}
	for _, sz := range m.Zones.HighWicksSuper {
		if sz.Contains(price) {
			refs = append(refs, ZoneRef{ID: sz.ID, Type: ZoneHighWicks})
		}
	}
	return refs
}
