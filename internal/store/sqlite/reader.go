package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"zonesniper/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the candle cache.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadCandles reads cached candles for a pair at the given interval, ordered
// by timestamp ascending. afterTS is a Unix-millis exclusive lower bound;
// pass 0 for all.
func (r *Reader) ReadCandles(pair string, intervalMin int, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, base_volume, quote_volume
		FROM candles
		WHERE pair = ? AND interval_min = ? AND ts > ?
		ORDER BY ts ASC
	`, pair, intervalMin, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsMillis int64
		if err := rows.Scan(&tsMillis, &c.Open, &c.High, &c.Low, &c.Close, &c.BaseVolume, &c.QuoteVolume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.Pair = pair
		c.TS = time.UnixMilli(tsMillis).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Pairs lists the pairs present in the cache at the given interval.
func (r *Reader) Pairs(intervalMin int) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT pair FROM candles WHERE interval_min = ? ORDER BY pair`,
		intervalMin,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite query pairs: %w", err)
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("sqlite scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
