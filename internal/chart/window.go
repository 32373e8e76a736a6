// Package chart holds the windowing core of the live price chart: the
// bounded observation window, the decimating reducer, the axis label
// assigner, the redraw gate and the orchestrator that wires them to the
// push stream and the renderer.
package chart

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/goth-coder/stream-bit/internal/domain"
)

// ErrOutOfOrder is returned when an observation arrives older than the
// newest window entry by more than the tolerance. The append is rejected
// and the window is left untouched.
var ErrOutOfOrder = errors.New("observation out of order")

const (
	// DefaultWindowCapacity bounds the live window (W).
	DefaultWindowCapacity = 150

	// DefaultOrderTolerance is how far behind the newest entry an
	// observation may arrive and still be inserted in order. Callback
	// delivery order is not timestamp order; this absorbs small jitter.
	DefaultOrderTolerance = 5 * time.Second
)

// Window is the bounded, time-ordered buffer of observations backing the
// chart. Entries are unique by timestamp, sorted ascending, and the oldest
// is evicted first once capacity is exceeded.
//
// Window is not goroutine-safe; the orchestrator loop is its only mutator.
type Window struct {
	obs       []domain.Observation
	capacity  int
	tolerance time.Duration
}

// NewWindow creates a window with the given capacity. Zero or negative
// values fall back to the defaults.
func NewWindow(capacity int, tolerance time.Duration) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	if tolerance <= 0 {
		tolerance = DefaultOrderTolerance
	}
	return &Window{
		obs:       make([]domain.Observation, 0, capacity),
		capacity:  capacity,
		tolerance: tolerance,
	}
}

// Append inserts an observation in timestamp order.
//
// An observation older than the newest entry by more than the tolerance is
// rejected with ErrOutOfOrder. An observation with a timestamp already in
// the window replaces that entry (idempotent upsert). On success the window
// evicts from the front until len <= capacity.
func (w *Window) Append(o domain.Observation) error {
	n := len(w.obs)
	if n > 0 {
		newest := w.obs[n-1].Timestamp
		if o.Timestamp.Before(newest.Add(-w.tolerance)) {
			return errors.Wrapf(ErrOutOfOrder,
				"ts=%s newest=%s", o.Timestamp.Format(time.RFC3339), newest.Format(time.RFC3339))
		}
	}

	// Position of the first entry with timestamp >= o.Timestamp. Appends of
	// fresh observations (the common case) land at n without scanning.
	i := sort.Search(n, func(i int) bool {
		return !w.obs[i].Timestamp.Before(o.Timestamp)
	})

	if i < n && w.obs[i].Timestamp.Equal(o.Timestamp) {
		w.obs[i] = o // upsert
	} else {
		w.obs = append(w.obs, domain.Observation{})
		copy(w.obs[i+1:], w.obs[i:])
		w.obs[i] = o
	}

	if over := len(w.obs) - w.capacity; over > 0 {
		w.obs = append(w.obs[:0], w.obs[over:]...)
	}
	return nil
}

// Snapshot returns the current ordered entries as a read-only view. The
// returned slice shares the window's backing array and must not be mutated
// or retained across the next Append; it never blocks.
func (w *Window) Snapshot() []domain.Observation {
	return w.obs
}

// Reset empties the window. Used on range changes, when a full historical
// reload is expected to replace the contents.
func (w *Window) Reset() {
	w.obs = w.obs[:0]
}

// Len returns the current number of entries.
func (w *Window) Len() int { return len(w.obs) }

// Capacity returns W.
func (w *Window) Capacity() int { return w.capacity }
