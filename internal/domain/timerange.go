package domain

import (
	"fmt"
	"time"
)

// TimeRange is the chart look-back horizon selected by the user. Only the
// enumerated ranges are valid; it is never reset implicitly by stream
// activity.
type TimeRange int

const (
	Range6H  TimeRange = 6
	Range24H TimeRange = 24
	Range72H TimeRange = 72
)

// ParseTimeRange validates an hour count coming from the outside (HTTP
// query, config file) against the enumerated set.
func ParseTimeRange(hours int) (TimeRange, error) {
	switch TimeRange(hours) {
	case Range6H, Range24H, Range72H:
		return TimeRange(hours), nil
	}
	return 0, fmt.Errorf("unsupported range: %dh (want 6, 24 or 72)", hours)
}

// Hours returns the horizon in whole hours.
func (r TimeRange) Hours() int { return int(r) }

// Duration returns the horizon as a time.Duration.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r) * time.Hour
}

// BucketInterval is the spacing between ideal label buckets for this range:
// hourly buckets for the short range, 4h for a day, 12h beyond that.
func (r TimeRange) BucketInterval() time.Duration {
	switch {
	case r <= Range6H:
		return time.Hour
	case r <= Range24H:
		return 4 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// MultiDay reports whether the range spans more than one calendar day, which
// switches label formatting from time-only to day-qualified.
func (r TimeRange) MultiDay() bool { return r > Range24H }

func (r TimeRange) String() string { return fmt.Sprintf("%dh", int(r)) }
