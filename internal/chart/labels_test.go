package chart

import (
	"testing"
	"time"

	"github.com/goth-coder/stream-bit/internal/domain"
)

func TestAssignTenPointsOverSixHours(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	a := NewLabelAssigner(6, 30*time.Minute)

	// Ten points, 40 minutes apart, spanning 06:00 to 12:00.
	start := now.Add(-6 * time.Hour)
	timestamps := make([]time.Time, 10)
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * 40 * time.Minute)
	}

	labels := a.Assign(timestamps, domain.Range6H, now)
	if len(labels) != len(timestamps) {
		t.Fatalf("one label slot per point, got %d for %d", len(labels), len(timestamps))
	}

	want := []string{"06:00", "07:00", "", "08:00", "09:00", "", "10:00", "11:00", "", ""}
	for i, w := range want {
		if labels[i] != w {
			t.Fatalf("label %d: got %q want %q (all: %v)", i, labels[i], w, labels)
		}
	}
}

func TestAssignNeverExceedsCountOrRepeats(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	a := NewLabelAssigner(6, 30*time.Minute)

	start := now.Add(-6 * time.Hour)
	timestamps := make([]time.Time, 120)
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * 3 * time.Minute)
	}

	labels := a.Assign(timestamps, domain.Range6H, now)
	seen := map[string]bool{}
	nonEmpty := 0
	for _, l := range labels {
		if l == "" {
			continue
		}
		nonEmpty++
		if seen[l] {
			t.Fatalf("label %q assigned twice", l)
		}
		seen[l] = true
	}
	if nonEmpty > 6 {
		t.Fatalf("at most 6 labels allowed, got %d", nonEmpty)
	}
}

func TestAssignEarliestPointWinsBucket(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	a := NewLabelAssigner(6, 30*time.Minute)

	// Both points sit within the threshold of the 07:00 bucket; only the
	// earlier one may claim it.
	timestamps := []time.Time{
		now.Add(-5*time.Hour - 10*time.Minute), // 06:50
		now.Add(-4*time.Hour - 50*time.Minute), // 07:10
	}
	labels := a.Assign(timestamps, domain.Range6H, now)
	if labels[0] != "07:00" {
		t.Fatalf("earliest point should claim the bucket, got %q", labels[0])
	}
	if labels[1] == "07:00" {
		t.Fatalf("claimed bucket must not be reassigned, got %q twice", labels[1])
	}
}

func TestAssignFarFromAnyBucket(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	a := NewLabelAssigner(6, 30*time.Minute)

	// 06:00..11:00 buckets; 11:45 is 45m from the nearest one.
	labels := a.Assign([]time.Time{now.Add(-15 * time.Minute)}, domain.Range6H, now)
	if labels[0] != "" {
		t.Fatalf("point outside threshold must stay unlabeled, got %q", labels[0])
	}
}

func TestAssignEmpty(t *testing.T) {
	a := NewLabelAssigner(6, 30*time.Minute)
	if got := a.Assign(nil, domain.Range6H, time.Now()); len(got) != 0 {
		t.Fatalf("no points, no labels: %v", got)
	}
}

func TestFormatLabelIntraday(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	got := FormatLabel(now.Add(-3*time.Hour), domain.Range6H, now)
	if got != "09:00" {
		t.Fatalf("intraday label: got %q", got)
	}
}

func TestFormatLabelMultiDay(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		instant time.Time
		want    string
	}{
		{time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), "Today 09:00"},
		{time.Date(2025, 1, 14, 21, 0, 0, 0, time.UTC), "Yesterday 21:00"},
		{time.Date(2025, 1, 13, 6, 0, 0, 0, time.UTC), "Jan 13 06:00"},
	}
	for _, c := range cases {
		if got := FormatLabel(c.instant, domain.Range72H, now); got != c.want {
			t.Fatalf("multi-day label for %s: got %q want %q", c.instant, got, c.want)
		}
	}
}

func TestFormatLabelPureAcrossMidnight(t *testing.T) {
	instant := time.Date(2025, 1, 14, 23, 0, 0, 0, time.UTC)

	before := FormatLabel(instant, domain.Range72H, time.Date(2025, 1, 14, 23, 30, 0, 0, time.UTC))
	after := FormatLabel(instant, domain.Range72H, time.Date(2025, 1, 15, 0, 30, 0, 0, time.UTC))

	if before != "Today 23:00" || after != "Yesterday 23:00" {
		t.Fatalf("label must follow the reference clock: before=%q after=%q", before, after)
	}
}
