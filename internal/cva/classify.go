package cva

import (
	"math"

	"zonesniper/internal/model"
)

const (
	// Sticky zones: squared-contrast scores above this are consolidation.
	stickyThreshold = 0.16
	// Wick zones: top quartile of wick activity.
	wickPercentile = 0.75
	// Smoothing window and gap bridge both span 2% of the zone count.
	windowFraction = 0.02
)

// Classify derives zones and superzones from accumulated scores. Sticky
// zones come from the smoothed, normalized, squared full-candle scores; wick
// zones from the raw low/high wick scores. Whether a sticky superzone acts
// as support or resistance depends on the live price, so that distinction is
// left to the model's query methods.
func Classify(core *model.CVACore) model.ClassifiedZones {
	zoneCount := core.Range.ZoneCount
	maxGap := int(math.Ceil(float64(zoneCount) * windowFraction))

	sticky := normalizeMax(smooth(core.Scores(model.ScoreFullCandle), oddWindow(zoneCount)))
	for i, s := range sticky {
		sticky[i] = s * s // squared contrast suppresses background noise
	}

	var cz model.ClassifiedZones
	for _, run := range findTargetZones(sticky, stickyThreshold, maxGap) {
		for i := run.start; i <= run.end; i++ {
			cz.Sticky = append(cz.Sticky, model.NewZone(i, core.Range))
		}
		cz.StickySuper = append(cz.StickySuper, superZone(core.Range, run.start, run.end))
	}

	lowWick := findHighActivityZones(normalizeMax(core.Scores(model.ScoreLowWick)), wickPercentile)
	for _, i := range lowWick {
		cz.LowWicks = append(cz.LowWicks, model.NewZone(i, core.Range))
	}
	cz.LowWicksSuper = aggregate(core.Range, lowWick)

	highWick := findHighActivityZones(normalizeMax(core.Scores(model.ScoreHighWick)), wickPercentile)
	for _, i := range highWick {
		cz.HighWicks = append(cz.HighWicks, model.NewZone(i, core.Range))
	}
	cz.HighWicksSuper = aggregate(core.Range, highWick)

	return cz
}

// aggregate merges runs of contiguous zone indices into superzones.
// Indices must be sorted ascending, which findHighActivityZones guarantees.
func aggregate(pr model.PriceRange, indices []int) []model.SuperZone {
	var out []model.SuperZone
	start := -1
	last := -1
	for _, i := range indices {
		if start < 0 {
			start, last = i, i
			continue
		}
		if i == last+1 {
			last = i
			continue
		}
		out = append(out, superZone(pr, start, last))
		start, last = i, i
	}
	if start >= 0 {
		out = append(out, superZone(pr, start, last))
	}
	return out
}

// oddWindow is 2% of the zone count rounded up, forced odd so the
// moving average stays centered.
func oddWindow(zoneCount int) int {
	w := int(math.Ceil(float64(zoneCount) * windowFraction))
	if w%2 == 0 {
		w++
	}
	if w < 1 {
		w = 1
	}
	return w
}

func superZone(pr model.PriceRange, first, last int) model.SuperZone {
	bottom, _ := pr.ChunkBounds(first)
	_, top := pr.ChunkBounds(last)
	return model.SuperZone{
		ID:          first,
		FirstIndex:  first,
		LastIndex:   last,
		PriceBottom: bottom,
		PriceTop:    top,
	}
}
