package history

import "zonesniper/internal/model"

// RangeConfig controls price-relevancy slice selection.
type RangeConfig struct {
	// RelevancyThreshold is the fractional price band considered relevant
	// (0.15 = candles touching ±15% of the current price).
	RelevancyThreshold float64

	// MinLookbackDays guarantees a minimum amount of recent data even when
	// the relevant band is narrow.
	MinLookbackDays int
}

// PriceBand returns the [min, max] band around price. The band is built
// multiplicatively so it is symmetric in log space.
func (c RangeConfig) PriceBand(price float64) (float64, float64) {
	mult := 1.0 + c.RelevancyThreshold
	return price / mult, price * mult
}

// SelectRanges finds all discontinuous index ranges of s whose candles have
// price action inside the relevancy band around currentPrice. Candles from
// volatility excursions outside the band are skipped. The earliest range is
// extended backward if the total falls short of the minimum lookback.
//
// Returns the ranges and the price band they were selected for.
func SelectRanges(s *Series, currentPrice float64, cfg RangeConfig) ([]model.CandleRange, float64, float64) {
	priceMin, priceMax := cfg.PriceBand(currentPrice)
	if s == nil || s.Len() == 0 {
		return nil, priceMin, priceMax
	}

	var ranges []model.CandleRange
	start := -1
	for i := 0; i < s.Len(); i++ {
		c := s.At(i)
		relevant := c.Low <= priceMax && c.High >= priceMin
		if relevant {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			ranges = append(ranges, model.CandleRange{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		ranges = append(ranges, model.CandleRange{Start: start, End: s.Len()})
	}

	ranges = applyMinLookback(ranges, s, cfg)
	return ranges, priceMin, priceMax
}

// applyMinLookback extends the earliest range backward when the selected
// candles cover less than the configured minimum lookback window.
func applyMinLookback(ranges []model.CandleRange, s *Series, cfg RangeConfig) []model.CandleRange {
	if len(ranges) == 0 || s.IntervalMin <= 0 {
		return ranges
	}

	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	minCandles := cfg.MinLookbackDays * 24 * 60 / s.IntervalMin
	if total >= minCandles {
		return ranges
	}

	deficit := minCandles - total
	newStart := ranges[0].Start - deficit
	if newStart < 0 {
		newStart = 0
	}
	ranges[0].Start = newStart
	return ranges
}
