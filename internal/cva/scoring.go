// Package cva builds trading models from historical candles: it accumulates
// volume-weighted activity scores per price zone (cumulative volume
// analysis), classifies zones into sticky/wick categories, and aggregates
// contiguous zones into superzones.
package cva

import "sort"

// normalizeMax scales a score vector so its maximum is 1.0.
// Returns a zero vector when the maximum is not positive.
func normalizeMax(scores []float64) []float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max <= 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / max
	}
	return out
}

// smooth applies a centered moving average with the given window size.
// Window should be odd; even windows are handled but skew slightly.
func smooth(scores []float64, window int) []float64 {
	if len(scores) == 0 {
		return nil
	}
	if window <= 1 {
		out := make([]float64, len(scores))
		copy(out, scores)
		return out
	}
	half := window / 2
	out := make([]float64, len(scores))
	for i := range scores {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(scores) {
			end = len(scores)
		}
		sum := 0.0
		for _, v := range scores[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// findHighActivityZones returns the indices of zones whose score is at or
// above the given percentile of all scores. No gradient check; reversal
// wicks are often sharp, single-candle events.
func findHighActivityZones(scores []float64, topPercentile float64) []int {
	if len(scores) == 0 {
		return nil
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * topPercentile)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	threshold := sorted[idx]

	var out []int
	for i, s := range scores {
		if s >= threshold {
			out = append(out, i)
		}
	}
	return out
}

// targetRun is a contiguous run of zone indices above the sticky threshold.
type targetRun struct {
	start, end int // inclusive
}

// findTargetZones finds contiguous runs of zones with score >= threshold,
// bridging gaps of up to maxGap below-threshold zones so near-adjacent
// consolidation islands merge into one target.
func findTargetZones(scores []float64, threshold float64, maxGap int) []targetRun {
	var runs []targetRun
	start := -1
	last := -1
	for i, s := range scores {
		if s < threshold {
			continue
		}
		if start < 0 {
			start, last = i, i
			continue
		}
		if i-last-1 <= maxGap {
			last = i // bridge the gap
			continue
		}
		runs = append(runs, targetRun{start: start, end: last})
		start, last = i, i
	}
	if start >= 0 {
		runs = append(runs, targetRun{start: start, end: last})
	}
	return runs
}
