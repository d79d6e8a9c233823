package cva

import (
	"context"
	"fmt"
	"math"
	"time"

	"zonesniper/internal/history"
	"zonesniper/internal/model"
)

// Calculations below this many candles produce models too noisy to trade on.
const minCandles = 50

// Cancellation is polled between chunks of this many candles so an
// abandoned job stops burning CPU within a bounded window.
const cancelCheckChunk = 512

// Computer runs full cumulative-volume calculations against an immutable
// candle collection. Safe for use from multiple workers concurrently.
type Computer struct {
	hist        *history.Collection
	rangeCfg    history.RangeConfig
	zoneCount   int
	decayFactor float64
}

// NewComputer builds a Computer over the given collection.
func NewComputer(hist *history.Collection, rangeCfg history.RangeConfig, zoneCount int, decayFactor float64) *Computer {
	return &Computer{
		hist:        hist,
		rangeCfg:    rangeCfg,
		zoneCount:   zoneCount,
		decayFactor: decayFactor,
	}
}

// BuildParams derives the calculation params for a pair at the given price:
// the relevancy band around the price and the discontinuous candle ranges
// with action inside it.
func (c *Computer) BuildParams(pair string, price float64) (model.DataParams, error) {
	s := c.hist.Get(pair)
	if s == nil {
		return model.DataParams{}, fmt.Errorf("no candle history for %s", pair)
	}
	ranges, priceMin, priceMax := history.SelectRanges(s, price, c.rangeCfg)
	p := model.DataParams{
		Pair:        pair,
		ZoneCount:   c.zoneCount,
		DecayFactor: c.decayFactor,
		Ranges:      ranges,
		PriceMin:    priceMin,
		PriceMax:    priceMax,
	}
	if err := p.Validate(); err != nil {
		return model.DataParams{}, err
	}
	if n := p.TotalCandles(); n < minCandles {
		return model.DataParams{}, fmt.Errorf("insufficient data for %s: %d relevant candles, need %d", pair, n, minCandles)
	}
	return p, nil
}

// Compute accumulates zone scores over the selected candle ranges and
// classifies the result into a trading model. It honors ctx cancellation
// between candle chunks.
func (c *Computer) Compute(ctx context.Context, params model.DataParams) (*model.TradingModel, error) {
	s := c.hist.Get(params.Pair)
	if s == nil {
		return nil, fmt.Errorf("no candle history for %s", params.Pair)
	}
	for _, r := range params.Ranges {
		if r.End > s.Len() {
			return nil, fmt.Errorf("candle range [%d, %d) exceeds series length %d for %s",
				r.Start, r.End, s.Len(), params.Pair)
		}
	}

	core := model.NewCVACore(params.Pair, model.PriceRange{
		Min:       params.PriceMin,
		Max:       params.PriceMax,
		ZoneCount: params.ZoneCount,
	}, params.DecayFactor)

	total := params.TotalCandles()
	decayBase := dynamicDecayBase(params.DecayFactor, spanDuration(s, params.Ranges))

	done := 0
	for _, r := range params.Ranges {
		for i := r.Start; i < r.End; i++ {
			if done%cancelCheckChunk == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			candle := s.At(i)
			progress := float64(done) / float64(total)
			weight := math.Pow(decayBase, progress-1.0)
			accumulate(core, &candle, weight)
			done++
		}
	}

	if len(params.Ranges) > 0 {
		core.StartTS = s.At(params.Ranges[0].Start).TS
		core.EndTS = s.At(params.Ranges[len(params.Ranges)-1].End - 1).TS
	}

	return &model.TradingModel{
		Pair:    params.Pair,
		Params:  params,
		CVA:     core,
		Zones:   Classify(core),
		BuiltAt: time.Now().UTC(),
	}, nil
}

// accumulate adds one candle's contribution to every score vector.
func accumulate(core *model.CVACore, c *model.Candle, weight float64) {
	core.SpreadScore(model.ScoreFullCandle, c.Low, c.High, c.BaseVolume*weight)
	core.SpreadScore(model.ScoreQuoteVolume, c.Low, c.High, c.QuoteVolume*weight)

	lo, hi := c.LowWick()
	core.SpreadScore(model.ScoreLowWick, lo, hi, c.BaseVolume*weight)
	lo, hi = c.HighWick()
	core.SpreadScore(model.ScoreHighWick, lo, hi, c.BaseVolume*weight)
}

// dynamicDecayBase annualizes the configured decay factor over the actual
// data span: a week of data barely decays, multi-year data decays by
// factor^years. Never below 1 so old data is never amplified.
func dynamicDecayBase(factor float64, span time.Duration) float64 {
	years := span.Hours() / (24 * 365)
	base := math.Pow(factor, years)
	if base < 1.0 {
		return 1.0
	}
	return base
}

// spanDuration is the wall-clock time from the first to the last selected
// candle, gaps included.
func spanDuration(s *history.Series, ranges []model.CandleRange) time.Duration {
	if len(ranges) == 0 {
		return 0
	}
	first := s.At(ranges[0].Start).TS
	last := s.At(ranges[len(ranges)-1].End - 1).TS
	return last.Sub(first)
}
