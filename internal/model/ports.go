package model

import "context"

// Storage port interfaces.
// These interfaces decouple the engine and history loader from concrete
// storage implementations (SQLite, Redis). Each implementation satisfies one
// or more of these interfaces.

// CandleReader reads cached historical candles for a pair.
type CandleReader interface {
	// ReadCandles reads candles for a pair at the given interval (minutes),
	// ordered by timestamp ascending. afterTS is a Unix-ms exclusive lower
	// bound; pass 0 for all.
	ReadCandles(pair string, intervalMin int, afterTS int64) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}

// CandleWriter persists fetched historical candles.
type CandleWriter interface {
	// SaveCandles writes a batch of candles in a single transaction.
	SaveCandles(pair string, intervalMin int, candles []Candle) error

	// Close releases underlying resources.
	Close() error
}

// EventPublisher publishes zone events and trigger diagnostics to downstream
// consumers (signal log, dashboards).
type EventPublisher interface {
	// RunZoneEvents drains eventCh and publishes each event.
	// Blocks until ctx is cancelled or the channel is closed.
	RunZoneEvents(ctx context.Context, eventCh <-chan ZoneEvent)

	// PublishDiagnostics publishes a diagnostics snapshot for all pairs.
	PublishDiagnostics(ctx context.Context, diags []TriggerDiagnostics)

	// Close releases underlying resources.
	Close() error
}
