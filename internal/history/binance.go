package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"zonesniper/internal/model"
)

const (
	klinesEndpoint  = "https://api.binance.com/api/v3/klines"
	klinesPageLimit = 1000
)

// Fetcher downloads historical klines from the Binance REST API for the
// backfill tool. The live engine never calls it, it reads from the cache.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a sane request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

// FetchRange downloads all klines for a pair in [startMS, endMS), paging
// through the API in chunks of 1000.
func (f *Fetcher) FetchRange(ctx context.Context, pair string, intervalMin int, startMS, endMS int64) ([]model.Candle, error) {
	var all []model.Candle
	cursor := startMS
	for cursor < endMS {
		page, err := f.fetchPage(ctx, pair, intervalMin, cursor, endMS)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		last := page[len(page)-1].TS.UnixMilli()
		next := last + int64(intervalMin)*60_000
		if next <= cursor {
			break
		}
		cursor = next
	}
	return all, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pair string, intervalMin int, startMS, endMS int64) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", intervalName(intervalMin))
	q.Set("startTime", strconv.FormatInt(startMS, 10))
	q.Set("endTime", strconv.FormatInt(endMS, 10))
	q.Set("limit", strconv.Itoa(klinesPageLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, klinesEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("klines request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines fetch %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("klines read %s: %w", pair, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines fetch %s: status %d: %s", pair, resp.StatusCode, truncate(body, 200))
	}

	// Binance returns an array of arrays:
	// [openTime, open, high, low, close, baseVol, closeTime, quoteVol, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("klines parse %s: %w", pair, err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 8 {
			continue
		}
		c, err := parseKline(pair, k)
		if err != nil {
			return nil, fmt.Errorf("klines parse %s: %w", pair, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKline(pair string, k []json.RawMessage) (model.Candle, error) {
	var openMS int64
	if err := json.Unmarshal(k[0], &openMS); err != nil {
		return model.Candle{}, err
	}
	fields := make([]float64, 0, 6)
	for _, idx := range []int{1, 2, 3, 4, 5, 7} { // open, high, low, close, baseVol, quoteVol
		var s string
		if err := json.Unmarshal(k[idx], &s); err != nil {
			return model.Candle{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, err
		}
		fields = append(fields, v)
	}
	return model.Candle{
		Pair:        pair,
		TS:          time.Unix(0, openMS*int64(time.Millisecond)).UTC(),
		Open:        fields[0],
		High:        fields[1],
		Low:         fields[2],
		Close:       fields[3],
		BaseVolume:  fields[4],
		QuoteVolume: fields[5],
	}, nil
}

// intervalName maps minutes to the Binance interval string.
func intervalName(min int) string {
	switch {
	case min >= 1440 && min%1440 == 0:
		return strconv.Itoa(min/1440) + "d"
	case min >= 60 && min%60 == 0:
		return strconv.Itoa(min/60) + "h"
	default:
		return strconv.Itoa(min) + "m"
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
