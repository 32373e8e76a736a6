package chart

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/pkg/logger"
	"github.com/goth-coder/stream-bit/pkg/sigchan"
)

// Loader fetches the historical series for a range. Implemented by the
// history client.
type Loader interface {
	Load(ctx context.Context, r domain.TimeRange) ([]domain.Observation, error)
}

// cacheInvalidator is the optional part of a Loader that can drop a cached
// range. Checked when the user forces a refresh of the current range.
type cacheInvalidator interface {
	Invalidate(r domain.TimeRange)
}

// Renderer receives the decimated, labeled series after every recompute.
// Called from the orchestrator loop; implementations must not block.
type Renderer interface {
	Render(domain.RenderSeries)
}

// StatusSink receives connection-state changes for the health surface.
type StatusSink interface {
	StreamState(domain.ConnectionState)
}

// Transport is the slice of the stream client the orchestrator needs for
// teardown.
type Transport interface {
	Close()
}

// OrchestratorConfig carries the chart tunables; zero values use the
// package defaults.
type OrchestratorConfig struct {
	WindowCapacity  int
	RenderBudget    int
	LabelCount      int
	LabelThreshold  time.Duration
	Epsilon         float64
	InitialRange    domain.TimeRange
	RefreshInterval time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.WindowCapacity <= 0 {
		c.WindowCapacity = DefaultWindowCapacity
	}
	if c.RenderBudget <= 0 {
		c.RenderBudget = DefaultRenderBudget
	}
	if c.LabelCount <= 0 {
		c.LabelCount = DefaultLabelCount
	}
	if c.LabelThreshold <= 0 {
		c.LabelThreshold = DefaultLabelThreshold
	}
	if c.Epsilon <= 0 {
		c.Epsilon = 0.01
	}
	if c.InitialRange == 0 {
		c.InitialRange = domain.Range24H
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}
}

// reloadResult carries a finished historical load back into the loop. The
// token says which reload request produced it; anything but the latest
// token is stale and discarded.
type reloadResult struct {
	token int
	rng   domain.TimeRange
	obs   []domain.Observation
	err   error
}

// Orchestrator is the single writer of all chart state. Observations,
// range changes, reload results and refresh ticks are serialized through
// one goroutine, so the window, the change gate and the reload token never
// need a lock.
type Orchestrator struct {
	cfg      OrchestratorConfig
	loader   Loader
	renderer Renderer
	status   StatusSink
	stream   Transport
	log      *logrus.Entry

	window   *Window
	labeler  *LabelAssigner
	detector *ChangeDetector

	obsCh    chan domain.Observation
	rangeCh  chan domain.TimeRange
	stateCh  chan domain.ConnectionState
	reloadCh chan reloadResult
	redraw   *sigchan.Chan

	ctx    context.Context
	cancel context.CancelFunc
	loopWG sync.WaitGroup
	once   sync.Once
	down   sync.Once

	// loop-owned, no lock
	rng          domain.TimeRange
	token        int
	lastAccepted *decimal.Decimal

	mu        sync.RWMutex
	latest    domain.RenderSeries
	rngShared domain.TimeRange
}

// NewOrchestrator wires the chart core. renderer and status may be nil;
// stream may be nil when no push transport is attached.
func NewOrchestrator(cfg OrchestratorConfig, loader Loader, renderer Renderer, status StatusSink, stream Transport) *Orchestrator {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		loader:    loader,
		renderer:  renderer,
		status:    status,
		stream:    stream,
		log:       logger.WithField("module", "chart"),
		window:    NewWindow(cfg.WindowCapacity, DefaultOrderTolerance),
		labeler:   NewLabelAssigner(cfg.LabelCount, cfg.LabelThreshold),
		detector:  NewChangeDetector(decimal.NewFromFloat(cfg.Epsilon)),
		obsCh:     make(chan domain.Observation, 256),
		rangeCh:   make(chan domain.TimeRange, 4),
		stateCh:   make(chan domain.ConnectionState, 8),
		reloadCh:  make(chan reloadResult, 4),
		redraw:    sigchan.New(1),
		ctx:       ctx,
		cancel:    cancel,
		rng:       cfg.InitialRange,
		rngShared: cfg.InitialRange,
	}
}

// Start launches the loop and kicks off the initial historical load.
// Subsequent calls are no-ops.
func (o *Orchestrator) Start() {
	o.once.Do(func() {
		o.loopWG.Add(1)
		go o.run()
	})
}

// OnObservation hands a live observation to the loop. Safe from any
// goroutine; drops-on-full rather than blocking the stream pump.
func (o *Orchestrator) OnObservation(obs domain.Observation) {
	select {
	case o.obsCh <- obs:
	case <-o.ctx.Done():
	default:
		o.log.Warnf("observation queue full, dropping sample at %s", obs.Timestamp.Format(time.RFC3339))
	}
}

// OnStreamState forwards a connection-state change into the loop so the
// status sink is updated in event order.
func (o *Orchestrator) OnStreamState(s domain.ConnectionState) {
	select {
	case o.stateCh <- s:
	case <-o.ctx.Done():
	}
}

// SetRange requests a switch of the look-back horizon. The window resets
// and a fresh historical load starts; a load still in flight for the old
// range is orphaned by the token bump. Re-selecting the current range
// forces a reload from the backend.
func (o *Orchestrator) SetRange(hours int) error {
	r, err := domain.ParseTimeRange(hours)
	if err != nil {
		return errors.Wrap(err, "set range")
	}
	if o.ctx.Err() != nil {
		return errors.New("orchestrator stopped")
	}
	select {
	case o.rangeCh <- r:
		return nil
	case <-o.ctx.Done():
		return errors.New("orchestrator stopped")
	}
}

// Range returns the currently selected look-back horizon.
func (o *Orchestrator) Range() domain.TimeRange {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rngShared
}

// Series returns a copy of the most recently rendered series, for pull
// consumers like the HTTP API.
func (o *Orchestrator) Series() domain.RenderSeries {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest.Clone()
}

// Teardown stops the loop and closes the attached transport. Idempotent;
// after it returns the renderer receives nothing further.
func (o *Orchestrator) Teardown() {
	o.down.Do(func() {
		if o.stream != nil {
			o.stream.Close()
		}
		o.cancel()
		o.loopWG.Wait()
		o.log.Infof("chart orchestrator stopped")
	})
}

func (o *Orchestrator) run() {
	defer o.loopWG.Done()

	refresh := time.NewTicker(o.cfg.RefreshInterval)
	defer refresh.Stop()

	o.startReload(o.rng)

	for {
		select {
		case <-o.ctx.Done():
			return

		case obs := <-o.obsCh:
			o.intake(obs)

		case r := <-o.rangeCh:
			o.switchRange(r)

		case res := <-o.reloadCh:
			o.applyReload(res)

		case s := <-o.stateCh:
			if o.status != nil {
				o.status.StreamState(s)
			}

		case <-o.redraw.C():
			// Redraws coalesce: a burst of accepted samples costs one pass.
			o.recompute()

		case <-refresh.C:
			// Relative labels ("Today", "Yesterday") drift as the clock
			// moves even with no new data.
			o.redraw.Emit()
		}
	}
}

// intake runs the redraw gate and the window append for one live sample.
func (o *Orchestrator) intake(obs domain.Observation) {
	if !o.detector.Accepts(obs.Price, o.lastAccepted) {
		return
	}
	if err := o.window.Append(obs); err != nil {
		if errors.Is(err, ErrOutOfOrder) {
			o.log.Debugf("dropping out-of-order sample at %s", obs.Timestamp.Format(time.RFC3339))
			return
		}
		o.log.Errorf("window append: %v", err)
		return
	}
	p := obs.Price
	o.lastAccepted = &p
	o.redraw.Emit()
}

func (o *Orchestrator) switchRange(r domain.TimeRange) {
	if r == o.rng {
		// Re-selecting the current range is an explicit refresh; drop the
		// cached history so the reload hits the backend.
		if inv, ok := o.loader.(cacheInvalidator); ok {
			inv.Invalidate(r)
		}
		o.log.Infof("forced refresh for %s", r)
	} else {
		o.log.Infof("range change %s -> %s", o.rng, r)
		o.rng = r
	}
	o.window.Reset()
	o.lastAccepted = nil
	o.startReload(r)
	o.redraw.Emit()
}

// startReload bumps the token and fetches history off-loop. The result is
// posted back with the token it was issued under.
func (o *Orchestrator) startReload(r domain.TimeRange) {
	o.token++
	token := o.token
	go func() {
		obs, err := o.loader.Load(o.ctx, r)
		select {
		case o.reloadCh <- reloadResult{token: token, rng: r, obs: obs, err: err}:
		case <-o.ctx.Done():
		}
	}()
}

func (o *Orchestrator) applyReload(res reloadResult) {
	if res.token != o.token {
		o.log.Debugf("discarding stale reload for %s (token %d, current %d)", res.rng, res.token, o.token)
		return
	}
	if res.err != nil {
		o.log.Errorf("historical load for %s failed: %v", res.rng, res.err)
		return
	}
	o.window.Reset()
	for _, obs := range res.obs {
		if err := o.window.Append(obs); err != nil {
			o.log.Debugf("skipping historical sample at %s: %v", obs.Timestamp.Format(time.RFC3339), err)
		}
	}
	if last, ok := lastOf(res.obs); ok {
		p := last.Price
		o.lastAccepted = &p
	} else {
		o.lastAccepted = nil
	}
	o.log.Infof("loaded %d historical points for %s", o.window.Len(), res.rng)
	o.redraw.Emit()
}

// recompute runs decimation, latest-point pinning and label assignment,
// then publishes the series.
func (o *Orchestrator) recompute() {
	snapshot := o.window.Snapshot()
	reduced := Reduce(snapshot, o.cfg.RenderBudget)

	// Stride decimation keeps the first of each block, so the newest
	// sample can be dropped; the chart head must always show it.
	if n := len(snapshot); n > 0 && len(reduced) > 0 {
		if !reduced[len(reduced)-1].Timestamp.Equal(snapshot[n-1].Timestamp) {
			reduced[len(reduced)-1] = snapshot[n-1]
		}
	}

	now := time.Now()
	series := domain.RenderSeries{
		Timestamps: make([]time.Time, len(reduced)),
		Points:     make([]decimal.Decimal, len(reduced)),
	}
	for i, obs := range reduced {
		series.Timestamps[i] = obs.Timestamp
		series.Points[i] = obs.Price
	}
	series.Labels = o.labeler.Assign(series.Timestamps, o.rng, now)

	o.mu.Lock()
	o.latest = series
	o.rngShared = o.rng
	o.mu.Unlock()

	if o.renderer != nil {
		o.renderer.Render(series.Clone())
	}
}

func lastOf(obs []domain.Observation) (domain.Observation, bool) {
	if len(obs) == 0 {
		return domain.Observation{}, false
	}
	return obs[len(obs)-1], true
}
