package chart

import "github.com/goth-coder/stream-bit/internal/domain"

// DefaultRenderBudget is the number of points a renderer is asked to draw
// at most. The window can hold more; the reducer brings it down.
const DefaultRenderBudget = 100

// Reduce decimates obs to at most maxPoints entries by fixed-stride
// subsampling: with k = ceil(len/maxPoints) it keeps every k-th element
// starting from the first. Input at or under budget is returned unchanged
// (same backing array).
//
// This is deterministic decimation, not aggregation: retained points are
// whatever falls on the stride, not representative means. The last element
// of the input is NOT guaranteed to survive; callers that need the newest
// observation visible must pin it themselves (the orchestrator does).
func Reduce(obs []domain.Observation, maxPoints int) []domain.Observation {
	if maxPoints <= 0 {
		maxPoints = DefaultRenderBudget
	}
	n := len(obs)
	if n <= maxPoints {
		return obs
	}

	k := (n + maxPoints - 1) / maxPoints
	out := make([]domain.Observation, 0, n/k+1)
	for i := 0; i < n; i += k {
		out = append(out, obs[i])
	}
	return out
}
