package chart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goth-coder/stream-bit/internal/domain"
)

type fakeLoader struct {
	mu          sync.Mutex
	byRange     map[domain.TimeRange][]domain.Observation
	gates       map[domain.TimeRange]chan struct{}
	loads       map[domain.TimeRange]int
	invalidated map[domain.TimeRange]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		byRange:     map[domain.TimeRange][]domain.Observation{},
		gates:       map[domain.TimeRange]chan struct{}{},
		loads:       map[domain.TimeRange]int{},
		invalidated: map[domain.TimeRange]int{},
	}
}

func (f *fakeLoader) Load(ctx context.Context, r domain.TimeRange) ([]domain.Observation, error) {
	f.mu.Lock()
	f.loads[r]++
	gate := f.gates[r]
	obs := f.byRange[r]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return obs, nil
}

func (f *fakeLoader) Invalidate(r domain.TimeRange) {
	f.mu.Lock()
	f.invalidated[r]++
	f.mu.Unlock()
}

func (f *fakeLoader) setObservations(r domain.TimeRange, obs []domain.Observation) {
	f.mu.Lock()
	f.byRange[r] = obs
	f.mu.Unlock()
}

func (f *fakeLoader) loadCount(r domain.TimeRange) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[r]
}

func (f *fakeLoader) invalidations(r domain.TimeRange) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated[r]
}

type fakeTransport struct{ closed atomic.Int32 }

func (f *fakeTransport) Close() { f.closed.Add(1) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testOrchestrator(loader Loader, initial domain.TimeRange) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		InitialRange:    initial,
		RefreshInterval: time.Hour, // keep the ticker out of the way
	}, loader, nil, nil, nil)
}

func TestOrchestratorDiscardsStaleReload(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	loader := newFakeLoader()
	gate := make(chan struct{})
	loader.gates[domain.Range24H] = gate
	loader.byRange[domain.Range24H] = []domain.Observation{
		domain.NewObservation(base.Add(-time.Hour), 111),
	}
	loader.byRange[domain.Range6H] = []domain.Observation{
		domain.NewObservation(base.Add(-10*time.Minute), 222),
		domain.NewObservation(base.Add(-5*time.Minute), 223),
	}

	o := testOrchestrator(loader, domain.Range24H)
	o.Start()
	defer o.Teardown()

	// The initial 24h load is stuck behind the gate; switch away from it.
	if err := o.SetRange(6); err != nil {
		t.Fatalf("set range: %v", err)
	}
	waitFor(t, "6h series", func() bool { return o.Series().Len() == 2 })

	// Now let the orphaned 24h load finish. Its token is stale and it must
	// not clobber the 6h window.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	s := o.Series()
	if s.Len() != 2 {
		t.Fatalf("stale reload leaked into the window: %d points", s.Len())
	}
	latest, _ := s.Latest()
	if latest.Price.InexactFloat64() != 223 {
		t.Fatalf("expected 6h data to survive, latest=%s", latest.Price)
	}
	if o.Range() != domain.Range6H {
		t.Fatalf("range drifted to %s", o.Range())
	}
}

func TestOrchestratorWindowsAndPinsLiveStream(t *testing.T) {
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	loader := newFakeLoader()
	loader.byRange[domain.Range24H] = []domain.Observation{
		domain.NewObservation(base.Add(-time.Hour), 50),
	}
	o := testOrchestrator(loader, domain.Range24H)
	o.Start()
	defer o.Teardown()

	// Let the initial historical load settle before streaming.
	waitFor(t, "initial load", func() bool { return o.Series().Len() == 1 })

	// 200 accepted samples against W=150 and a render budget of 100.
	for i := 0; i < 200; i++ {
		o.OnObservation(domain.NewObservation(base.Add(time.Duration(i)*6*time.Second), 100+float64(i)))
	}

	waitFor(t, "windowed series", func() bool {
		latest, ok := o.Series().Latest()
		return ok && latest.Price.InexactFloat64() == 299
	})

	s := o.Series()
	if s.Len() > DefaultRenderBudget {
		t.Fatalf("series exceeds render budget: %d", s.Len())
	}
	latest, _ := s.Latest()
	if !latest.Timestamp.Equal(base.Add(199 * 6 * time.Second)) {
		t.Fatalf("newest observation must be pinned, got %s", latest.Timestamp)
	}
	if len(s.Labels) != s.Len() || len(s.Timestamps) != s.Len() {
		t.Fatalf("series slices misaligned: %d/%d/%d", len(s.Timestamps), len(s.Points), len(s.Labels))
	}
}

func TestOrchestratorDropsOutOfOrderAndGatedSamples(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	loader := newFakeLoader()
	loader.byRange[domain.Range24H] = []domain.Observation{
		domain.NewObservation(base.Add(-time.Hour), 50),
	}
	o := testOrchestrator(loader, domain.Range24H)
	o.Start()
	defer o.Teardown()

	waitFor(t, "initial load", func() bool { return o.Series().Len() == 1 })

	o.OnObservation(domain.NewObservation(base, 100))
	o.OnObservation(domain.NewObservation(base.Add(time.Minute), 110))
	waitFor(t, "live samples", func() bool { return o.Series().Len() == 3 })

	// A minute behind the newest entry: rejected, window untouched.
	o.OnObservation(domain.NewObservation(base.Add(10*time.Second), 105))
	// Within epsilon of the last accepted price: gated before the window.
	o.OnObservation(domain.NewObservation(base.Add(2*time.Minute), 110.005))

	time.Sleep(50 * time.Millisecond)
	if got := o.Series().Len(); got != 3 {
		t.Fatalf("dropped samples must not change the series, len=%d", got)
	}
}

func TestOrchestratorSameRangeForcesRefresh(t *testing.T) {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	loader := newFakeLoader()
	loader.byRange[domain.Range24H] = []domain.Observation{
		domain.NewObservation(base.Add(-time.Hour), 50),
	}
	o := testOrchestrator(loader, domain.Range24H)
	o.Start()
	defer o.Teardown()

	waitFor(t, "initial load", func() bool { return o.Series().Len() == 1 })

	// The backend has newer data; re-selecting 24h must refetch, not no-op.
	loader.setObservations(domain.Range24H, []domain.Observation{
		domain.NewObservation(base.Add(-30*time.Minute), 60),
		domain.NewObservation(base.Add(-10*time.Minute), 70),
	})
	if err := o.SetRange(24); err != nil {
		t.Fatalf("set range: %v", err)
	}
	waitFor(t, "refreshed series", func() bool { return o.Series().Len() == 2 })

	if got := loader.loadCount(domain.Range24H); got != 2 {
		t.Fatalf("expected a second backend load, got %d", got)
	}
	if got := loader.invalidations(domain.Range24H); got != 1 {
		t.Fatalf("cached range must be invalidated before the reload, got %d", got)
	}
	if o.Range() != domain.Range24H {
		t.Fatalf("range drifted to %s", o.Range())
	}
}

func TestOrchestratorSetRangeValidates(t *testing.T) {
	o := testOrchestrator(newFakeLoader(), domain.Range24H)
	o.Start()
	defer o.Teardown()

	if err := o.SetRange(48); err == nil {
		t.Fatal("48h is not an allowed range")
	}
	if o.Range() != domain.Range24H {
		t.Fatalf("rejected range must not apply, got %s", o.Range())
	}
}

func TestOrchestratorTeardownIdempotentAndClosesTransport(t *testing.T) {
	tr := &fakeTransport{}
	o := NewOrchestrator(OrchestratorConfig{
		InitialRange:    domain.Range24H,
		RefreshInterval: time.Hour,
	}, newFakeLoader(), nil, nil, tr)
	o.Start()

	o.Teardown()
	o.Teardown()

	if got := tr.closed.Load(); got != 1 {
		t.Fatalf("transport closed %d times, want exactly once", got)
	}
	// Late inputs must be safe no-ops.
	o.OnObservation(domain.NewObservation(time.Now(), 100))
	if err := o.SetRange(6); err == nil {
		t.Fatal("SetRange after teardown should fail")
	}
}
