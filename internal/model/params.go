package model

import (
	"errors"
	"fmt"
)

// CandleRange is a half-open [Start, End) index range into a candle series.
type CandleRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of candles covered by the range.
func (r CandleRange) Len() int { return r.End - r.Start }

// DataParams captures everything that determines a calculation's output.
// Two DataParams are equal iff every field matches. A completed job whose
// params no longer equal the pair's desired params is a stale result and
// must be discarded.
type DataParams struct {
	Pair        string        `json:"pair"`
	ZoneCount   int           `json:"zone_count"`
	DecayFactor float64       `json:"decay_factor"`
	Ranges      []CandleRange `json:"ranges"`
	PriceMin    float64       `json:"price_min"`
	PriceMax    float64       `json:"price_max"`
}

// Equal reports whether p and other match in every field.
// Not implemented via == because Ranges is a slice.
func (p DataParams) Equal(other DataParams) bool {
	if p.Pair != other.Pair ||
		p.ZoneCount != other.ZoneCount ||
		p.DecayFactor != other.DecayFactor ||
		p.PriceMin != other.PriceMin ||
		p.PriceMax != other.PriceMax ||
		len(p.Ranges) != len(other.Ranges) {
		return false
	}
	for i := range p.Ranges {
		if p.Ranges[i] != other.Ranges[i] {
			return false
		}
	}
	return true
}

// TotalCandles returns the candle count summed across all ranges.
func (p DataParams) TotalCandles() int {
	total := 0
	for _, r := range p.Ranges {
		total += r.Len()
	}
	return total
}

// Validate checks structural validity of the params before dispatch.
func (p DataParams) Validate() error {
	if p.Pair == "" {
		return errors.New("params: empty pair")
	}
	if p.ZoneCount < 2 {
		return fmt.Errorf("params: zone count %d too small", p.ZoneCount)
	}
	if p.PriceMax <= p.PriceMin {
		return fmt.Errorf("params: invalid price range [%g, %g]", p.PriceMin, p.PriceMax)
	}
	for _, r := range p.Ranges {
		if r.End <= r.Start || r.Start < 0 {
			return fmt.Errorf("params: invalid candle range [%d, %d)", r.Start, r.End)
		}
	}
	return nil
}
