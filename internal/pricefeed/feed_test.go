package pricefeed

import (
	"strings"
	"testing"
	"time"

	"zonesniper/internal/ringbuf"
)

func TestParseTick(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1756300000000,"s":"BTCUSDT","c":"50123.45","o":"49000.00","h":"50500.00","l":"48900.00","v":"1234.5","q":"61000000.0"}}`)

	tick, err := ParseTick(raw)
	if err != nil {
		t.Fatalf("ParseTick: %v", err)
	}
	if tick.Pair != "BTCUSDT" {
		t.Fatalf("pair: %q", tick.Pair)
	}
	if tick.Price != 50123.45 {
		t.Fatalf("price: %v", tick.Price)
	}
	want := time.Unix(0, 1756300000000*int64(time.Millisecond)).UTC()
	if !tick.TS.Equal(want) {
		t.Fatalf("ts: %v, want %v", tick.TS, want)
	}
}

func TestParseTickErrors(t *testing.T) {
	if _, err := ParseTick([]byte(`not json`)); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if _, err := ParseTick([]byte(`{"stream":"x","data":{}}`)); err == nil {
		t.Fatal("expected missing-symbol error")
	}
	if _, err := ParseTick([]byte(`{"stream":"x","data":{"s":"BTCUSDT","c":"nan_price"}}`)); err == nil {
		t.Fatal("expected bad-price error")
	}
}

func TestParseTickMissingEventTimeUsesWallClock(t *testing.T) {
	before := time.Now().UTC()
	tick, err := ParseTick([]byte(`{"stream":"x","data":{"s":"ETHUSDT","c":"3000.1"}}`))
	if err != nil {
		t.Fatalf("ParseTick: %v", err)
	}
	if tick.TS.Before(before) || tick.TS.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("ts should be roughly now, got %v", tick.TS)
	}
}

func TestURL(t *testing.T) {
	f := New([]string{"BTCUSDT", "ETHUSDT"}, ringbuf.New(16))
	url := f.URL()
	if !strings.HasPrefix(url, "wss://stream.binance.com:9443/stream?streams=") {
		t.Fatalf("url: %s", url)
	}
	if !strings.Contains(url, "btcusdt@miniTicker/ethusdt@miniTicker") {
		t.Fatalf("streams not joined: %s", url)
	}
}
