// Package pricefeed streams live pair prices from the Binance combined
// miniTicker WebSocket into the engine's tick ring.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"zonesniper/internal/model"
	"zonesniper/internal/ringbuf"
)

const (
	defaultBaseURL = "wss://stream.binance.com:9443/stream"

	initialReconnectDelay = time.Second
	maxReconnectDelay     = time.Minute

	readTimeout = 90 * time.Second // Binance pings every ~20s
)

// combinedMessage is one frame from the combined stream endpoint.
type combinedMessage struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

// miniTicker is the subset of the Binance 24hr miniTicker payload we use.
type miniTicker struct {
	EventType string `json:"e"` // binds "e" so it can't match EventTime case-insensitively
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	EventTime int64  `json:"E"` // epoch millis
}

// Feed connects to the combined miniTicker stream for a set of pairs and
// pushes parsed ticks into the ring. Reconnects with exponential backoff.
type Feed struct {
	baseURL string
	pairs   []string
	ring    *ringbuf.Ring

	// Optional hooks, set before Run.
	OnReconnect func()
	OnTick      func(model.PriceTick)
	OnDrop      func()
}

// New creates a feed for the given pairs pushing into ring.
func New(pairs []string, ring *ringbuf.Ring) *Feed {
	return &Feed{baseURL: defaultBaseURL, pairs: pairs, ring: ring}
}

// URL returns the combined-stream URL for the configured pairs.
func (f *Feed) URL() string {
	streams := make([]string, len(f.pairs))
	for i, p := range f.pairs {
		streams[i] = strings.ToLower(p) + "@miniTicker"
	}
	return f.baseURL + "?streams=" + strings.Join(streams, "/")
}

// Run connects and streams until ctx is cancelled, reconnecting on any
// read or dial error with exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	delay := initialReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := f.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > maxReconnectDelay {
			// The connection was healthy for a while; start backoff over.
			delay = initialReconnectDelay
		}
		log.Printf("[pricefeed] stream ended: %v (reconnecting in %s)", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// stream runs one connection until it fails.
func (f *Feed) stream(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.URL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Printf("[pricefeed] connected: %d pairs", len(f.pairs))

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		tick, err := ParseTick(raw)
		if err != nil {
			log.Printf("[pricefeed] parse error: %v", err)
			continue
		}
		if !f.ring.Push(tick) {
			if f.OnDrop != nil {
				f.OnDrop()
			}
			continue
		}
		if f.OnTick != nil {
			f.OnTick(tick)
		}
	}
}

// ParseTick parses one combined-stream frame into a PriceTick.
func ParseTick(raw []byte) (model.PriceTick, error) {
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.PriceTick{}, fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Data.Symbol == "" {
		return model.PriceTick{}, fmt.Errorf("frame without symbol: %s", msg.Stream)
	}
	price, err := strconv.ParseFloat(msg.Data.Close, 64)
	if err != nil {
		return model.PriceTick{}, fmt.Errorf("bad close price %q: %w", msg.Data.Close, err)
	}

	ts := time.Now().UTC()
	if msg.Data.EventTime > 0 {
		ts = time.Unix(0, msg.Data.EventTime*int64(time.Millisecond)).UTC()
	}
	return model.PriceTick{Pair: msg.Data.Symbol, Price: price, TS: ts}, nil
}
