package chart

import "github.com/shopspring/decimal"

// DefaultEpsilon is the minimum price move that justifies a redraw, in
// currency units.
var DefaultEpsilon = decimal.NewFromFloat(0.01)

// ChangeDetector decides whether a new observation is materially different
// from the last accepted one. It gates structural window mutation and
// redraw only; a "current price" readout may still update unconditionally.
type ChangeDetector struct {
	epsilon decimal.Decimal
}

// NewChangeDetector creates a detector; a non-positive epsilon falls back
// to DefaultEpsilon.
func NewChangeDetector(epsilon decimal.Decimal) *ChangeDetector {
	if epsilon.LessThanOrEqual(decimal.Zero) {
		epsilon = DefaultEpsilon
	}
	return &ChangeDetector{epsilon: epsilon}
}

// Accepts reports whether newPrice differs from last by more than epsilon.
// A nil last (no price accepted yet) always accepts.
func (d *ChangeDetector) Accepts(newPrice decimal.Decimal, last *decimal.Decimal) bool {
	if last == nil {
		return true
	}
	return newPrice.Sub(*last).Abs().GreaterThan(d.epsilon)
}
