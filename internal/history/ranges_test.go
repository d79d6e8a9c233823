package history

import (
	"testing"
	"time"

	"zonesniper/internal/model"
)

func seriesFromPrices(prices []float64) *Series {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, len(prices))
	for i, p := range prices {
		candles[i] = model.Candle{
			Pair:  "BTCUSDT",
			TS:    start.Add(time.Duration(i) * 15 * time.Minute),
			Open:  p,
			High:  p * 1.001,
			Low:   p * 0.999,
			Close: p,
		}
	}
	return &Series{Pair: "BTCUSDT", IntervalMin: 15, Candles: candles}
}

func TestPriceBandIsMultiplicative(t *testing.T) {
	cfg := RangeConfig{RelevancyThreshold: 0.15}
	min, max := cfg.PriceBand(100)
	if min >= 100 || max <= 100 {
		t.Fatalf("band [%g, %g] does not bracket the price", min, max)
	}
	// Symmetric in log space: min * max = price^2.
	if prod := min * max; prod < 9999 || prod > 10001 {
		t.Fatalf("band not multiplicative: %g * %g = %g", min, max, prod)
	}
}

func TestSelectRangesSkipsExcursions(t *testing.T) {
	// 40 candles near 100, 20 candles spiked to 200, 40 back near 100.
	prices := make([]float64, 0, 100)
	for i := 0; i < 40; i++ {
		prices = append(prices, 100)
	}
	for i := 0; i < 20; i++ {
		prices = append(prices, 200)
	}
	for i := 0; i < 40; i++ {
		prices = append(prices, 101)
	}
	s := seriesFromPrices(prices)

	ranges, _, _ := SelectRanges(s, 100, RangeConfig{RelevancyThreshold: 0.15})
	if len(ranges) != 2 {
		t.Fatalf("expected 2 discontinuous ranges, got %d: %+v", len(ranges), ranges)
	}
	if ranges[0].Start != 0 || ranges[0].End != 40 {
		t.Fatalf("first range: %+v", ranges[0])
	}
	if ranges[1].Start != 60 || ranges[1].End != 100 {
		t.Fatalf("second range: %+v", ranges[1])
	}
}

func TestSelectRangesMinLookbackExtendsBackward(t *testing.T) {
	// 1000 candles near 100, then 100 candles near 150: the relevant tail
	// around 150 is short of a 7-day lookback (672 15m candles) and must be
	// extended backward into older data.
	prices := make([]float64, 0, 1100)
	for i := 0; i < 1000; i++ {
		prices = append(prices, 100)
	}
	for i := 0; i < 100; i++ {
		prices = append(prices, 150)
	}
	s := seriesFromPrices(prices)

	ranges, _, _ := SelectRanges(s, 150, RangeConfig{RelevancyThreshold: 0.15, MinLookbackDays: 7})
	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	minCandles := 7 * 24 * 60 / 15
	if total < minCandles {
		t.Fatalf("lookback not enforced: %d candles, need %d", total, minCandles)
	}
	if ranges[0].Start >= 1000 {
		t.Fatalf("earliest range should extend into older data, starts at %d", ranges[0].Start)
	}
}

func TestSelectRangesEmptySeries(t *testing.T) {
	ranges, min, max := SelectRanges(nil, 100, RangeConfig{RelevancyThreshold: 0.15})
	if ranges != nil {
		t.Fatalf("nil series should select nothing, got %+v", ranges)
	}
	if min >= max {
		t.Fatalf("band still returned: [%g, %g]", min, max)
	}
}
