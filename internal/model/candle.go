package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV kline for a trading pair.
// Prices and volumes are float64 since crypto pairs span many orders of
// magnitude, so fixed-point paise-style storage is not practical here.
type Candle struct {
	Pair        string    `json:"pair"`
	TS          time.Time `json:"ts"` // bucket open time (UTC)
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	BaseVolume  float64   `json:"base_volume"`
	QuoteVolume float64   `json:"quote_volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// BodyLow returns the lower of open/close.
func (c *Candle) BodyLow() float64 {
	if c.Open < c.Close {
		return c.Open
	}
	return c.Close
}

// BodyHigh returns the higher of open/close.
func (c *Candle) BodyHigh() float64 {
	if c.Open > c.Close {
		return c.Open
	}
	return c.Close
}

// LowWick returns the [low, bodyLow] span of the lower wick.
func (c *Candle) LowWick() (float64, float64) {
	return c.Low, c.BodyLow()
}

// HighWick returns the [bodyHigh, high] span of the upper wick.
func (c *Candle) HighWick() (float64, float64) {
	return c.BodyHigh(), c.High
}
