package model

import (
	"testing"
	"time"
)

func TestPriceRangeChunkIndexClamps(t *testing.T) {
	r := PriceRange{Min: 100, Max: 200, ZoneCount: 10}
	if got := r.ChunkSize(); got != 10 {
		t.Fatalf("ChunkSize = %g, want 10", got)
	}
	cases := []struct {
		price float64
		want  int
	}{
		{100, 0},
		{105, 0},
		{110, 1},
		{199.9, 9},
		{200, 9}, // top edge clamps into the last zone
		{50, 0},
		{500, 9},
	}
	for _, c := range cases {
		if got := r.ChunkIndex(c.price); got != c.want {
			t.Errorf("ChunkIndex(%g) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestIntersectingChunks(t *testing.T) {
	r := PriceRange{Min: 100, Max: 200, ZoneCount: 10}

	first, count := r.IntersectingChunks(115, 135)
	if first != 1 || count != 3 {
		t.Fatalf("span 115-135: first=%d count=%d, want 1,3", first, count)
	}

	// Inverted bounds are normalized.
	first, count = r.IntersectingChunks(135, 115)
	if first != 1 || count != 3 {
		t.Fatalf("inverted span: first=%d count=%d, want 1,3", first, count)
	}

	// Entirely below the range.
	if _, count = r.IntersectingChunks(10, 50); count != 0 {
		t.Fatalf("span below range: count=%d, want 0", count)
	}
}

func TestSpreadScoreDistributesEvenly(t *testing.T) {
	core := NewCVACore("BTCUSDT", PriceRange{Min: 0, Max: 100, ZoneCount: 10}, 3.0)

	core.SpreadScore(ScoreFullCandle, 10, 40, 6.0)
	scores := core.Scores(ScoreFullCandle)

	// Span 10-40 intersects zones 1..4 (zone 4 starts exactly at 40).
	for _, i := range []int{1, 2, 3, 4} {
		if scores[i] != 1.5 {
			t.Fatalf("zone %d score = %g, want 1.5", i, scores[i])
		}
	}
	if scores[0] != 0 || scores[5] != 0 {
		t.Fatalf("weight leaked outside span: %v", scores)
	}

	// Point spans add nothing.
	core.SpreadScore(ScoreLowWick, 25, 25, 100)
	for i, s := range core.Scores(ScoreLowWick) {
		if s != 0 {
			t.Fatalf("point span scored zone %d", i)
		}
	}
}

func testModel() *TradingModel {
	rng := PriceRange{Min: 0, Max: 1000, ZoneCount: 100}
	return &TradingModel{
		Pair: "BTCUSDT",
		CVA:  NewCVACore("BTCUSDT", rng, 3.0),
		Zones: ClassifiedZones{
			StickySuper: []SuperZone{
				{ID: 10, FirstIndex: 10, LastIndex: 12, PriceBottom: 100, PriceTop: 130},
				{ID: 50, FirstIndex: 50, LastIndex: 51, PriceBottom: 500, PriceTop: 520},
				{ID: 80, FirstIndex: 80, LastIndex: 80, PriceBottom: 800, PriceTop: 810},
			},
			HighWicksSuper: []SuperZone{
				{ID: 51, FirstIndex: 51, LastIndex: 52, PriceBottom: 510, PriceTop: 530},
			},
		},
		BuiltAt: time.Now(),
	}
}

func TestNearestSupportResistance(t *testing.T) {
	m := testModel()

	sup, ok := m.NearestSupport(600)
	if !ok || sup.ID != 50 {
		t.Fatalf("support at 600: ok=%v id=%d, want 50", ok, sup.ID)
	}
	res, ok := m.NearestResistance(600)
	if !ok || res.ID != 80 {
		t.Fatalf("resistance at 600: ok=%v id=%d, want 80", ok, res.ID)
	}

	// Below everything: no support.
	if _, ok := m.NearestSupport(50); ok {
		t.Fatal("found support below all zones")
	}
	// Above everything: no resistance.
	if _, ok := m.NearestResistance(900); ok {
		t.Fatal("found resistance above all zones")
	}
}

func TestZonesAtLabelsStickyBySide(t *testing.T) {
	m := testModel()

	// Price inside the middle sticky zone: zone center (510) is below 515, so
	// its own zone is the nearest support.
	refs := m.ZonesAt(515)
	var sawSupport, sawHighWick bool
	for _, r := range refs {
		if r.ID == 50 && r.Type == ZoneSupport {
			sawSupport = true
		}
		if r.ID == 51 && r.Type == ZoneHighWicks {
			sawHighWick = true
		}
	}
	if !sawSupport {
		t.Fatalf("zone 50 not labeled support at 515: %+v", refs)
	}
	if !sawHighWick {
		t.Fatalf("high-wick zone 51 missing at 515: %+v", refs)
	}

	// Just under the center the same zone flips to resistance.
	refs = m.ZonesAt(505)
	var sawResistance bool
	for _, r := range refs {
		if r.ID == 50 && r.Type == ZoneResistance {
			sawResistance = true
		}
	}
	if !sawResistance {
		t.Fatalf("zone 50 not labeled resistance at 505: %+v", refs)
	}

	// Outside every zone.
	if refs := m.ZonesAt(700); refs != nil {
		t.Fatalf("zones reported at 700: %+v", refs)
	}
}
