package model

import "time"

// PriceTick represents a single live price update for a trading pair,
// as received from the exchange miniTicker stream.
type PriceTick struct {
	Pair  string    `json:"pair"`
	Price float64   `json:"price"`
	TS    time.Time `json:"ts"` // UTC timestamp
}
