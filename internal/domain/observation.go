package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one timestamped price sample. Immutable once created.
type Observation struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// NewObservation builds an observation from a float price as it arrives on
// the wire. The decimal conversion happens once, at the boundary.
func NewObservation(ts time.Time, price float64) Observation {
	return Observation{Timestamp: ts, Price: decimal.NewFromFloat(price)}
}

// Before reports whether o was sampled strictly before other.
func (o Observation) Before(other Observation) bool {
	return o.Timestamp.Before(other.Timestamp)
}

// RenderSeries is the decimated, labeled series handed to a renderer.
// The three slices are always the same length and index-aligned.
type RenderSeries struct {
	Timestamps []time.Time
	Points     []decimal.Decimal
	Labels     []string
}

// Len returns the number of renderable points.
func (s RenderSeries) Len() int { return len(s.Points) }

// Empty reports whether there is nothing to draw.
func (s RenderSeries) Empty() bool { return len(s.Points) == 0 }

// Latest returns the newest point of the series, if any.
func (s RenderSeries) Latest() (Observation, bool) {
	if len(s.Points) == 0 {
		return Observation{}, false
	}
	i := len(s.Points) - 1
	return Observation{Timestamp: s.Timestamps[i], Price: s.Points[i]}, true
}

// Clone deep-copies the series so a renderer on another goroutine can hold
// it without racing the orchestrator loop.
func (s RenderSeries) Clone() RenderSeries {
	out := RenderSeries{
		Timestamps: make([]time.Time, len(s.Timestamps)),
		Points:     make([]decimal.Decimal, len(s.Points)),
		Labels:     make([]string, len(s.Labels)),
	}
	copy(out.Timestamps, s.Timestamps)
	copy(out.Points, s.Points)
	copy(out.Labels, s.Labels)
	return out
}
