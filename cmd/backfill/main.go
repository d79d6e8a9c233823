// Command backfill downloads historical klines from Binance into the local
// SQLite candle cache the zone engine reads at startup.
//
// Incremental: each run resumes from the newest cached candle per pair.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"zonesniper/internal/history"
	sqlitestore "zonesniper/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	pairsFlag := flag.String("pairs", envOr("PAIRS", "BTCUSDT,ETHUSDT"), "comma-separated pair symbols")
	dbPath := flag.String("db", envOr("SQLITE_PATH", "data/candles.db"), "SQLite cache path")
	intervalMin := flag.Int("interval", 15, "candle interval in minutes")
	lookbackDays := flag.Int("days", 730, "how far back to fetch on the first run")
	flag.Parse()

	pairs := parsePairs(*pairsFlag)
	if len(pairs) == 0 {
		log.Fatal("[backfill] no pairs given")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[backfill] interrupted, finishing current pair...")
		cancel()
	}()

	os.MkdirAll(filepath.Dir(*dbPath), 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backfill] sqlite init failed: %v", err)
	}
	defer writer.Close()

	fetcher := history.NewFetcher()
	endMS := time.Now().UTC().UnixMilli()
	defaultStartMS := time.Now().UTC().AddDate(0, 0, -*lookbackDays).UnixMilli()

	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}

		startMS := defaultStartMS
		if last, err := writer.LastTimestamp(pair, *intervalMin); err != nil {
			log.Printf("[backfill] %s: last timestamp lookup failed: %v", pair, err)
		} else if last > 0 {
			startMS = last // re-fetch the last candle in case it was forming
		}

		log.Printf("[backfill] %s: fetching %dm klines since %s", pair, *intervalMin,
			time.UnixMilli(startMS).UTC().Format(time.RFC3339))

		candles, err := fetcher.FetchRange(ctx, pair, *intervalMin, startMS, endMS)
		if err != nil {
			log.Printf("[backfill] %s: fetch failed: %v", pair, err)
			continue
		}
		if len(candles) == 0 {
			log.Printf("[backfill] %s: already up to date", pair)
			continue
		}

		if err := writer.SaveCandles(pair, *intervalMin, candles); err != nil {
			log.Printf("[backfill] %s: save failed: %v", pair, err)
			continue
		}
		log.Printf("[backfill] %s: cached %d candles (%s .. %s)", pair, len(candles),
			candles[0].TS.Format(time.RFC3339), candles[len(candles)-1].TS.Format(time.RFC3339))
	}

	log.Println("[backfill] done.")
}

func parsePairs(s string) []string {
	var pairs []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
