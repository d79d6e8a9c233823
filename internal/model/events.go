package model

import (
	"encoding/json"
	"time"
)

// ZoneEventType distinguishes boundary crossings.
type ZoneEventType string

const (
	ZoneEntered ZoneEventType = "entered"
	ZoneExited  ZoneEventType = "exited"
)

// ZoneEvent is emitted by the zone monitor when a pair's live price crosses
// into or out of a superzone of the currently published model.
type ZoneEvent struct {
	Type     ZoneEventType `json:"type"`
	Pair     string        `json:"pair"`
	ZoneID   int           `json:"zone_id"`
	ZoneType ZoneType      `json:"zone_type"`
	Price    float64       `json:"price"`
	TS       time.Time     `json:"ts"`
}

// JSON returns the JSON-encoded event.
func (e *ZoneEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// StreamKey returns the Redis stream key: "zone:events:{pair}".
func (e *ZoneEvent) StreamKey() string {
	return "zone:events:" + e.Pair
}

// PubSubChannel returns the Redis pub/sub channel: "pub:zone:{pair}".
func (e *ZoneEvent) PubSubChannel() string {
	return "pub:zone:" + e.Pair
}

// TriggerDiagnostics is the observable slice of a pair's trigger state,
// published for dashboards and exposed on the /pairs endpoint.
type TriggerDiagnostics struct {
	Pair        string    `json:"pair"`
	AnchorPrice float64   `json:"anchor_price"`
	Stale       bool      `json:"stale"`
	InProgress  bool      `json:"in_progress"`
	StaleReason string    `json:"stale_reason,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	HasModel    bool      `json:"has_model"`
}

// JSON returns the JSON-encoded diagnostics.
func (d *TriggerDiagnostics) JSON() []byte {
	b, _ := json.Marshal(d)
	return b
}
