// Package history holds the in-memory historical candle series used as
// immutable input snapshots for model calculations. A Collection is loaded
// once at startup (from the SQLite cache, optionally topped up via the
// Binance REST API) and is never mutated afterwards, so workers read it
// without synchronization.
package history

import (
	"sort"

	"zonesniper/internal/model"
)

// Series is the full candle history for one pair at one interval.
// Candles are ordered by timestamp ascending. Immutable after load.
type Series struct {
	Pair        string
	IntervalMin int
	Candles     []model.Candle
}

// Len returns the candle count.
func (s *Series) Len() int { return len(s.Candles) }

// At returns the candle at index i.
func (s *Series) At(i int) model.Candle { return s.Candles[i] }

// LastClose returns the close of the most recent candle, or (0, false).
func (s *Series) LastClose() (float64, bool) {
	if len(s.Candles) == 0 {
		return 0, false
	}
	return s.Candles[len(s.Candles)-1].Close, true
}

// Collection maps pair name → series for all tracked pairs.
type Collection struct {
	series map[string]*Series
}

// NewCollection builds a collection from loaded series.
func NewCollection(series []*Series) *Collection {
	m := make(map[string]*Series, len(series))
	for _, s := range series {
		m[s.Pair] = s
	}
	return &Collection{series: m}
}

// Get returns the series for a pair, or nil.
func (c *Collection) Get(pair string) *Series {
	return c.series[pair]
}

// Pairs returns all pair names, sorted for deterministic iteration.
func (c *Collection) Pairs() []string {
	pairs := make([]string, 0, len(c.series))
	for p := range c.series {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}
