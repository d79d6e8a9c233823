package cva

import (
	"context"
	"strings"
	"testing"
	"time"

	"zonesniper/internal/history"
	"zonesniper/internal/model"
)

// makeSeries builds a 15m series: count candles centered at price with the
// given half-width and per-candle base volume.
func makeCandles(pair string, start time.Time, count int, price, halfWidth, vol float64) []model.Candle {
	candles := make([]model.Candle, count)
	for i := range candles {
		candles[i] = model.Candle{
			Pair:        pair,
			TS:          start.Add(time.Duration(i) * 15 * time.Minute),
			Open:        price - halfWidth/2,
			High:        price + halfWidth,
			Low:         price - halfWidth,
			Close:       price + halfWidth/2,
			BaseVolume:  vol,
			QuoteVolume: vol * price,
		}
	}
	return candles
}

func testCollection(t *testing.T) *history.Collection {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Heavy consolidation around 100, light action around 110.
	candles := makeCandles("BTCUSDT", start, 150, 100.0, 0.5, 10.0)
	tail := makeCandles("BTCUSDT", start.Add(150*15*time.Minute), 50, 110.0, 0.5, 1.0)
	candles = append(candles, tail...)

	return history.NewCollection([]*history.Series{{
		Pair:        "BTCUSDT",
		IntervalMin: 15,
		Candles:     candles,
	}})
}

func testComputer(t *testing.T) *Computer {
	return NewComputer(testCollection(t), history.RangeConfig{
		RelevancyThreshold: 0.15,
		MinLookbackDays:    0,
	}, 100, 3.0)
}

func TestBuildParamsSelectsRelevantBand(t *testing.T) {
	c := testComputer(t)

	params, err := c.BuildParams("BTCUSDT", 100.0)
	if err != nil {
		t.Fatalf("BuildParams: %v", err)
	}
	if params.ZoneCount != 100 {
		t.Fatalf("zone count: got %d", params.ZoneCount)
	}
	if params.PriceMin >= 100 || params.PriceMax <= 100 {
		t.Fatalf("band [%g, %g] does not bracket the price", params.PriceMin, params.PriceMax)
	}
	// Both clusters sit inside ±15% of 100, so one contiguous range.
	if params.TotalCandles() != 200 {
		t.Fatalf("expected all 200 candles selected, got %d", params.TotalCandles())
	}

	if _, err := c.BuildParams("DOGEUSDT", 0.1); err == nil {
		t.Fatal("expected error for unknown pair")
	}
}

func TestBuildParamsInsufficientData(t *testing.T) {
	coll := history.NewCollection([]*history.Series{{
		Pair:        "ETHUSDT",
		IntervalMin: 15,
		Candles:     makeCandles("ETHUSDT", time.Now().UTC(), 10, 3000, 5, 1),
	}})
	c := NewComputer(coll, history.RangeConfig{RelevancyThreshold: 0.15}, 100, 3.0)

	_, err := c.BuildParams("ETHUSDT", 3000)
	if err == nil || !strings.Contains(err.Error(), "insufficient data") {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestComputeFindsConsolidationZone(t *testing.T) {
	c := testComputer(t)

	params, err := c.BuildParams("BTCUSDT", 100.0)
	if err != nil {
		t.Fatalf("BuildParams: %v", err)
	}
	m, err := c.Compute(context.Background(), params)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(m.Zones.StickySuper) == 0 {
		t.Fatal("expected at least one sticky superzone")
	}
	found := false
	for _, sz := range m.Zones.StickySuper {
		if sz.Contains(100.0) {
			found = true
		}
		if sz.Contains(110.0) {
			t.Fatalf("light cluster at 110 misclassified as sticky: %+v", sz)
		}
	}
	if !found {
		t.Fatalf("no sticky superzone contains 100.0: %+v", m.Zones.StickySuper)
	}

	if m.CVA.StartTS.IsZero() || !m.CVA.EndTS.After(m.CVA.StartTS) {
		t.Fatalf("bad core span: %v - %v", m.CVA.StartTS, m.CVA.EndTS)
	}
	if !m.Params.Equal(params) {
		t.Fatal("model params must echo the request params")
	}
}

func TestComputeSupportResistanceQueries(t *testing.T) {
	c := testComputer(t)
	params, err := c.BuildParams("BTCUSDT", 100.0)
	if err != nil {
		t.Fatalf("BuildParams: %v", err)
	}
	m, err := c.Compute(context.Background(), params)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// Seen from above the consolidation, the 100-level acts as support.
	sup, ok := m.NearestSupport(105.0)
	if !ok {
		t.Fatal("expected support below 105")
	}
	if sup.Center() > 102 || sup.Center() < 98 {
		t.Fatalf("support center %g not near 100", sup.Center())
	}

	// Seen from below it acts as resistance.
	res, ok := m.NearestResistance(95.0)
	if !ok {
		t.Fatal("expected resistance above 95")
	}
	if !res.Contains(sup.Center()) {
		t.Fatalf("support and resistance should be the same band, got %+v vs %+v", sup, res)
	}
}

func TestComputeHonorsCancellation(t *testing.T) {
	c := testComputer(t)
	params, err := c.BuildParams("BTCUSDT", 100.0)
	if err != nil {
		t.Fatalf("BuildParams: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Compute(ctx, params); err == nil {
		t.Fatal("expected context error from canceled compute")
	}
}

func TestDynamicDecayBase(t *testing.T) {
	week := dynamicDecayBase(3.0, 7*24*time.Hour)
	if week < 1.0 || week > 1.05 {
		t.Fatalf("week of data should barely decay, base %g", week)
	}
	year := dynamicDecayBase(3.0, 365*24*time.Hour)
	if year < 2.9 || year > 3.1 {
		t.Fatalf("year of data should decay by the full factor, base %g", year)
	}
	if b := dynamicDecayBase(0.5, 365*24*time.Hour); b != 1.0 {
		t.Fatalf("base must clamp at 1.0, got %g", b)
	}
}
