package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Message types emitted by the backend live stream.
const (
	MsgPriceUpdate     = "price_update"
	MsgCacheStats      = "cache_stats"
	MsgPipelineStopped = "pipeline_stopped"
	MsgStreamEnd       = "stream_end"
)

// StreamMessage is the tagged envelope every push frame arrives in.
type StreamMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	SentAt  string          `json:"timestamp,omitempty"`
	Message string          `json:"message,omitempty"`
}

// PriceUpdate is the payload of a price_update frame.
//
// Change24hPercent may be absent on the wire; it is a pointer so "absent"
// and "present with value zero" stay distinguishable, and absence must not
// reset previously displayed change state.
type PriceUpdate struct {
	Price            float64  `json:"price"`
	Timestamp        string   `json:"timestamp"`
	Change24hPercent *float64 `json:"change_24h_percent,omitempty"`
}

// Timestamp layouts the backend is known to emit.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Observation validates the payload and converts it. A zero or negative
// price and an unparseable timestamp are both malformed, not connectivity
// problems.
func (p PriceUpdate) Observation() (Observation, error) {
	if p.Price <= 0 {
		return Observation{}, errors.Errorf("non-positive price %v", p.Price)
	}
	ts, err := ParseWireTime(p.Timestamp)
	if err != nil {
		return Observation{}, err
	}
	return NewObservation(ts, p.Price), nil
}

// ParseWireTime parses a backend timestamp, trying the known layouts.
func ParseWireTime(s string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable timestamp %q", s)
}
