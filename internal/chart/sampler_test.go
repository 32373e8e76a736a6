package chart

import (
	"testing"
	"time"

	"github.com/goth-coder/stream-bit/internal/domain"
)

func seq(n int) []domain.Observation {
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Observation, n)
	for i := range out {
		out[i] = domain.NewObservation(base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	return out
}

func TestReduceUnderBudgetIsIdentity(t *testing.T) {
	in := seq(100)
	out := Reduce(in, 100)
	if len(out) != 100 {
		t.Fatalf("input at budget must pass through, got %d", len(out))
	}
	for i := range in {
		if !out[i].Timestamp.Equal(in[i].Timestamp) {
			t.Fatalf("identity pass-through changed element %d", i)
		}
	}
}

func TestReduceStride(t *testing.T) {
	out := Reduce(seq(150), 100)
	// k = ceil(150/100) = 2, keeping indices 0, 2, 4, ...
	if len(out) != 75 {
		t.Fatalf("expected 75 points after stride-2 decimation, got %d", len(out))
	}
	if out[1].Price.InexactFloat64() != 2 {
		t.Fatalf("stride must keep the first of each block, got %s at 1", out[1].Price)
	}
	if out[0].Price.InexactFloat64() != 0 {
		t.Fatalf("first element must always survive, got %s", out[0].Price)
	}
}

func TestReduceNeverExceedsBudget(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 150, 250, 1000} {
		out := Reduce(seq(n), 100)
		if len(out) > 100 {
			t.Fatalf("n=%d produced %d points, budget is 100", n, len(out))
		}
	}
}

func TestReduceDeterministic(t *testing.T) {
	in := seq(333)
	a := Reduce(in, 100)
	b := Reduce(in, 100)
	if len(a) != len(b) {
		t.Fatalf("same input must reduce identically: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Fatalf("nondeterministic pick at %d", i)
		}
	}
}
