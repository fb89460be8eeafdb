package occlusion

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Stats summarizes the work done by the most recent pass.
type Stats struct {
	Targets   int
	Evaluated int
	Culled    int
	Swept     int
	Rays      int
	Hits      int
	SubSteps  int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger routes engine logs to l instead of the logrus standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRayDrawer receives every cast ray while Config.Visualize is set.
func WithRayDrawer(d RayDrawer) Option {
	return func(e *Engine) { e.drawer = d }
}

// Engine owns the occlusion targets of one listener. All methods are safe to
// call from multiple goroutines; a single mutex serializes them, so a target's
// cutoff and gain are always observed as a pair. Sink and drawer callbacks run
// with that mutex held and must not call back into the engine.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	scene      SceneQuery
	transforms TransformProvider
	sink       Sink
	drawer     RayDrawer
	probe      *Probe
	pool       *probePool
	log        *logrus.Logger

	targets   targetTable
	byEmitter map[Handle]TargetID

	listener         Handle
	hasListener      bool
	warnedNoListener bool

	accumulator float64
	stats       Stats

	jobs       []probeJob
	jobTargets []*Target
	rays       []Ray
	hits       []bool
}

// NewEngine validates cfg and returns an engine casting against scene.
// sink may be nil when only Snapshot is consumed.
func NewEngine(cfg Config, scene SceneQuery, transforms TransformProvider, sink Sink, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, configErr("scene", nil, "a scene query is required")
	}
	if transforms == nil {
		return nil, configErr("transforms", nil, "a transform provider is required")
	}
	e := &Engine{
		cfg:        cfg,
		scene:      scene,
		transforms: transforms,
		sink:       sink,
		log:        logrus.StandardLogger(),
		byEmitter:  make(map[Handle]TargetID),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.probe = NewProbe(scene, e.drawer)
	e.resizePool()

	e.log.WithFields(logrus.Fields{
		"function":    "NewEngine",
		"mode":        cfg.Mode.String(),
		"ray_count":   cfg.RayCount,
		"cone_angle":  cfg.ConeAngleDeg,
		"workers":     cfg.Workers,
		"batch_scene": e.batchScene() != nil,
	}).Info("Occlusion engine created")
	return e, nil
}

// Close stops worker goroutines. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.close()
		e.pool = nil
	}
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig validates and swaps the configuration. Targets are re-mapped from
// their last visibility and current values are clamped into the new ranges.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	workersChanged := cfg.Workers != e.cfg.Workers
	e.cfg = cfg
	e.targets.each(func(t *Target) { t.rebound(cfg) })
	if workersChanged {
		e.resizePool()
	}
	e.log.WithFields(logrus.Fields{
		"function": "Engine.SetConfig",
		"mode":     cfg.Mode.String(),
		"workers":  cfg.Workers,
	}).Info("Occlusion configuration updated")
	return nil
}

func (e *Engine) resizePool() {
	if e.pool != nil {
		e.pool.close()
		e.pool = nil
	}
	if e.cfg.Workers > 1 {
		e.pool = newProbePool(e.probe, e.cfg.Workers)
	}
}

func (e *Engine) batchScene() BatchRaycaster {
	b, _ := e.scene.(BatchRaycaster)
	return b
}

// BindListener sets the listener all targets are evaluated against.
func (e *Engine) BindListener(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = h
	e.hasListener = true
	e.warnedNoListener = false
	e.log.WithFields(logrus.Fields{
		"function": "Engine.BindListener",
		"listener": h,
	}).Debug("Listener bound")
}

// UnbindListener detaches the listener; ticks become no-ops until a new one is bound.
func (e *Engine) UnbindListener() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasListener = false
}

// Listener returns the bound listener handle.
func (e *Engine) Listener() (Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener, e.hasListener
}

// Register adds an emitter and pushes the open defaults (22000 Hz, original
// gain) to the sink. originalGain is kept for the target's lifetime.
func (e *Engine) Register(emitter Handle, maxRange, originalGain float64) (TargetID, error) {
	if !(maxRange > 0) || math.IsInf(maxRange, 0) {
		return 0, configErr("max_range", maxRange, "must be a finite value > 0")
	}
	if math.IsNaN(originalGain) || math.IsInf(originalGain, 0) || originalGain < 0 {
		return 0, configErr("original_gain", originalGain, "must be a finite value >= 0")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.byEmitter[emitter]; ok {
		return 0, fmt.Errorf("emitter %d as %v: %w", emitter, id, ErrDuplicateEmitter)
	}
	if !e.transforms.Alive(emitter) {
		return 0, fmt.Errorf("registering emitter %d: %w", emitter, ErrStaleReference)
	}

	id := e.targets.insert(newTarget(emitter, maxRange, originalGain))
	e.byEmitter[emitter] = id
	if e.sink != nil {
		e.sink.SetFilterCutoff(id, MaxFrequency)
		e.sink.SetGain(id, originalGain)
	}
	e.log.WithFields(logrus.Fields{
		"function":      "Engine.Register",
		"target":        id.String(),
		"emitter":       emitter,
		"max_range":     maxRange,
		"original_gain": originalGain,
	}).Debug("Occlusion target registered")
	return id, nil
}

// Unregister removes a target and restores the sink defaults for it.
func (e *Engine) Unregister(id TargetID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.teardown(id) {
		return fmt.Errorf("unregistering %v: %w", id, ErrUnknownTarget)
	}
	e.log.WithFields(logrus.Fields{
		"function": "Engine.Unregister",
		"target":   id.String(),
	}).Debug("Occlusion target unregistered")
	return nil
}

func (e *Engine) teardown(id TargetID) bool {
	t, ok := e.targets.remove(id)
	if !ok {
		return false
	}
	delete(e.byEmitter, t.Emitter)
	if e.sink != nil {
		e.sink.SetFilterCutoff(id, MaxFrequency)
		e.sink.SetGain(id, t.OriginalGain)
		if r, ok := e.sink.(Releaser); ok {
			r.Release(id)
		}
	}
	return true
}

// Target returns a copy of one target's state.
func (e *Engine) Target(id TargetID) (Target, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.targets.get(id)
	if t == nil {
		return Target{}, false
	}
	return *t, true
}

// Snapshot copies every live target in table order.
func (e *Engine) Snapshot() []Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Target, 0, e.targets.len())
	e.targets.each(func(t *Target) { out = append(out, *t) })
	return out
}

// Len reports the number of live targets.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targets.len()
}

// Stats returns the counters of the most recent pass.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Tick runs one frame: liveness sweep, visibility pass, smoothing sub-steps
// for dt seconds, and one sink update per target. Without a live listener it
// does nothing.
func (e *Engine) Tick(dt float64) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
	listener, ok := e.listenerPose()
	if !ok {
		return e.stats
	}
	e.sweep()
	e.evaluate(listener)
	e.advance(dt)
	e.emit()
	return e.stats
}

// Evaluate runs only the variable-rate visibility pass. In instant mode it
// also applies and emits the new values.
func (e *Engine) Evaluate() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
	listener, ok := e.listenerPose()
	if !ok {
		return e.stats
	}
	e.sweep()
	e.evaluate(listener)
	if e.cfg.Mode == ModeInstant {
		e.emit()
	}
	return e.stats
}

// Advance runs only the fixed-rate smoothing pass for dt seconds of elapsed
// time and emits current values. It does not need a listener.
func (e *Engine) Advance(dt float64) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
	e.sweep()
	e.advance(dt)
	e.emit()
	return e.stats
}

func (e *Engine) listenerPose() (Pose, bool) {
	if !e.hasListener || !e.transforms.Alive(e.listener) {
		if !e.warnedNoListener {
			e.log.WithFields(logrus.Fields{
				"function": "Engine.Tick",
				"bound":    e.hasListener,
			}).Warn("No live listener; skipping occlusion update")
			e.warnedNoListener = true
		}
		return Pose{}, false
	}
	e.warnedNoListener = false
	return e.transforms.Pose(e.listener), true
}

// sweep tears down targets whose host emitter is gone before anything reads
// their handles.
func (e *Engine) sweep() {
	var stale []TargetID
	e.targets.each(func(t *Target) {
		if !e.transforms.Alive(t.Emitter) {
			stale = append(stale, t.ID)
		}
	})
	for _, id := range stale {
		if e.teardown(id) {
			e.stats.Swept++
			e.log.WithFields(logrus.Fields{
				"function": "Engine.sweep",
				"target":   id.String(),
				"error":    ErrStaleReference.Error(),
			}).Warn("Emitter destroyed; target unregistered")
		}
	}
	e.stats.Targets = e.targets.len()
}

// evaluate probes every in-range target and recomputes its desired values.
// Targets beyond MaxRange keep their previous targets.
func (e *Engine) evaluate(listener Pose) {
	e.jobs = e.jobs[:0]
	e.jobTargets = e.jobTargets[:0]
	e.targets.each(func(t *Target) {
		pos := e.transforms.Pose(t.Emitter).Position
		if pos.Sub(listener.Position).Len() > t.MaxRange {
			t.Culled = true
			e.stats.Culled++
			return
		}
		t.Culled = false
		e.jobs = append(e.jobs, probeJob{target: pos})
		e.jobTargets = append(e.jobTargets, t)
	})
	if len(e.jobs) == 0 {
		return
	}

	params := e.cfg.probeParams()
	switch batch := e.batchScene(); {
	case batch != nil:
		e.runBatch(batch, listener, params)
	case e.pool != nil && !params.Visualize && len(e.jobs) > 1:
		e.pool.run(listener, params, e.jobs)
	default:
		for i := range e.jobs {
			job := &e.jobs[i]
			job.visibility, job.hits, e.rays = e.probe.evaluate(listener, job.target, params, e.rays)
		}
	}

	for i, t := range e.jobTargets {
		job := e.jobs[i]
		t.retarget(job.visibility, e.cfg)
		if e.cfg.Mode == ModeInstant {
			t.snap()
		}
		e.stats.Evaluated++
		e.stats.Rays += params.RayCount
		e.stats.Hits += job.hits
	}
}

// runBatch submits the rays of every job in one call. When the batch call
// fails, rays are cast one by one so the pass still completes.
func (e *Engine) runBatch(batch BatchRaycaster, listener Pose, params ProbeParams) {
	e.rays = e.rays[:0]
	for _, job := range e.jobs {
		e.rays = e.probe.Rays(listener, job.target, params, e.rays)
	}
	if cap(e.hits) < len(e.rays) {
		e.hits = make([]bool, len(e.rays))
	}
	e.hits = e.hits[:len(e.rays)]
	if err := batch.RaycastBatch(e.rays, params.Layers, e.hits); err != nil {
		e.log.WithFields(logrus.Fields{
			"function": "Engine.runBatch",
			"rays":     len(e.rays),
			"error":    err.Error(),
		}).Warn("Batch raycast failed; falling back to single rays")
		for i, r := range e.rays {
			e.hits[i] = e.scene.Raycast(r.Origin, r.Direction, r.MaxDistance, params.Layers)
		}
	}
	for i := range e.jobs {
		hits := 0
		base := i * params.RayCount
		for j := 0; j < params.RayCount; j++ {
			if e.hits[base+j] {
				hits++
			}
			e.probe.draw(e.rays[base+j], e.hits[base+j], params.Visualize)
		}
		e.jobs[i].hits = hits
		e.jobs[i].visibility = visibilityRatio(hits, params.RayCount)
	}
}

// advance accumulates dt and runs whole fixed sub-steps, at most MaxSubSteps
// per call. Instant mode has no smoothing to run.
func (e *Engine) advance(dt float64) {
	if e.cfg.Mode == ModeInstant || !(dt > 0) {
		return
	}
	e.accumulator += dt
	step := e.cfg.FixedStep
	alpha := clamp01(e.cfg.InterpolationSpeed * step)
	for e.accumulator >= step && e.stats.SubSteps < e.cfg.MaxSubSteps {
		e.targets.each(func(t *Target) { t.approach(alpha) })
		e.accumulator -= step
		e.stats.SubSteps++
	}
	if e.accumulator >= step {
		e.accumulator = 0
	}
}

func (e *Engine) emit() {
	if e.sink == nil {
		return
	}
	e.targets.each(func(t *Target) {
		e.sink.SetFilterCutoff(t.ID, t.CurrentCutoff)
		e.sink.SetGain(t.ID, t.CurrentGain)
	})
}
