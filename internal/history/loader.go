package history

import (
	"fmt"
	"log"

	"zonesniper/internal/model"
)

// Load reads the cached candle history for every pair from the given reader.
// Pairs with no cached candles are skipped with a warning; they simply stay
// untracked until a backfill provides data.
func Load(reader model.CandleReader, pairs []string, intervalMin int) (*Collection, error) {
	var loaded []*Series
	for _, pair := range pairs {
		candles, err := reader.ReadCandles(pair, intervalMin, 0)
		if err != nil {
			return nil, fmt.Errorf("history: read %s: %w", pair, err)
		}
		if len(candles) == 0 {
			log.Printf("[history] WARNING: no cached candles for %s (%dm), skipping (run the backfill tool)", pair, intervalMin)
			continue
		}
		loaded = append(loaded, &Series{Pair: pair, IntervalMin: intervalMin, Candles: candles})
		log.Printf("[history] loaded %d candles for %s (%dm)", len(candles), pair, intervalMin)
	}
	return NewCollection(loaded), nil
}
