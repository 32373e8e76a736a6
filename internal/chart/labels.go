package chart

import (
	"time"

	"github.com/goth-coder/stream-bit/internal/domain"
)

const (
	// DefaultLabelCount is the maximum number of visible axis labels (L).
	DefaultLabelCount = 6

	// DefaultLabelThreshold is how far a point may sit from an ideal bucket
	// instant and still claim its label.
	DefaultLabelThreshold = 30 * time.Minute
)

// LabelAssigner maps decimated points to a sparse, non-repeating set of
// axis labels anchored to ideal time buckets.
type LabelAssigner struct {
	count     int
	threshold time.Duration
}

// NewLabelAssigner creates an assigner; zero values fall back to defaults.
func NewLabelAssigner(count int, threshold time.Duration) *LabelAssigner {
	if count <= 0 {
		count = DefaultLabelCount
	}
	if threshold <= 0 {
		threshold = DefaultLabelThreshold
	}
	return &LabelAssigner{count: count, threshold: threshold}
}

// Assign returns one label per timestamp, mostly empty, with at most L
// non-empty entries and never two points on the same bucket.
//
// Ideal bucket instants are startTime + i*interval for i in [0, L) where
// startTime = now - range. Walking the points in chronological order, each
// point claims the nearest still-unclaimed bucket if it lies within the
// threshold; earliest point wins ties, and a claimed bucket is never
// reassigned.
func (a *LabelAssigner) Assign(timestamps []time.Time, r domain.TimeRange, now time.Time) []string {
	labels := make([]string, len(timestamps))
	if len(timestamps) == 0 {
		return labels
	}

	interval := r.BucketInterval()
	start := now.Add(-r.Duration())
	buckets := make([]time.Time, a.count)
	claimed := make([]bool, a.count)
	for i := range buckets {
		buckets[i] = start.Add(time.Duration(i) * interval)
	}

	for pi, ts := range timestamps {
		best := -1
		var bestDist time.Duration
		for bi, bucket := range buckets {
			if claimed[bi] {
				continue
			}
			dist := ts.Sub(bucket)
			if dist < 0 {
				dist = -dist
			}
			if best == -1 || dist < bestDist {
				best, bestDist = bi, dist
			}
		}
		if best == -1 || bestDist > a.threshold {
			continue
		}
		claimed[best] = true
		labels[pi] = FormatLabel(buckets[best], r, now)
	}
	return labels
}

// FormatLabel renders a bucket instant as axis text. Pure in its inputs:
// time-only for intraday ranges, day-qualified ("Today 15:04",
// "Yesterday 15:04", else "Jan 2 15:04") for multi-day ranges.
func FormatLabel(instant time.Time, r domain.TimeRange, now time.Time) string {
	if !r.MultiDay() {
		return instant.Format("15:04")
	}

	y, m, d := instant.Date()
	ny, nm, nd := now.Date()
	switch {
	case y == ny && m == nm && d == nd:
		return "Today " + instant.Format("15:04")
	case sameDay(instant, now.AddDate(0, 0, -1)):
		return "Yesterday " + instant.Format("15:04")
	default:
		return instant.Format("Jan 2 15:04")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
