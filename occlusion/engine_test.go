package occlusion

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	listenerH Handle = 1
	emitterA  Handle = 2
	emitterB  Handle = 3
)

type engineFixture struct {
	engine *Engine
	world  *fakeWorld
	sink   *fakeSink
	wall   *wallZ
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.RayCount = 8
	cfg.ConeAngleDeg = 45
	return cfg
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *engineFixture {
	t.Helper()
	f := &engineFixture{
		world: newFakeWorld(),
		sink:  newFakeSink(),
		wall:  &wallZ{Z: 5, Layer: 1},
	}
	f.world.put(listenerH, Vec3{})
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := NewEngine(cfg, f.wall, f.world, f.sink, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	e.BindListener(listenerH)
	f.engine = e
	return f
}

func (f *engineFixture) register(t *testing.T, h Handle, pos Vec3, maxRange, gain float64) TargetID {
	t.Helper()
	f.world.put(h, pos)
	id, err := f.engine.Register(h, maxRange, gain)
	require.NoError(t, err)
	return id
}

func (f *engineFixture) target(t *testing.T, id TargetID) Target {
	t.Helper()
	tg, ok := f.engine.Target(id)
	require.True(t, ok)
	return tg
}

func TestNewEngine_RejectsBadSetup(t *testing.T) {
	world := newFakeWorld()

	bad := DefaultConfig()
	bad.RayCount = 0
	_, err := NewEngine(bad, emptyScene, world, nil, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(DefaultConfig(), nil, world, nil, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(DefaultConfig(), emptyScene, nil, nil, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngine_Register(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	tg := f.target(t, id)
	assert.Equal(t, emitterA, tg.Emitter)
	assert.Equal(t, 0.8, tg.OriginalGain)
	assert.Equal(t, MaxFrequency, tg.CurrentCutoff)
	assert.Equal(t, 0.8, tg.CurrentGain)

	sv := f.sink.values[id]
	require.NotNil(t, sv)
	assert.Equal(t, MaxFrequency, sv.cutoff)
	assert.Equal(t, 0.8, sv.gain)
	assert.Equal(t, 1, f.engine.Len())
}

func TestEngine_RegisterErrors(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	f.world.put(emitterA, Vec3{0, 0, 10})

	tests := []struct {
		name     string
		emitter  Handle
		maxRange float64
		gain     float64
		want     error
	}{
		{"zero range", emitterA, 0, 1, ErrInvalidConfig},
		{"nan range", emitterA, math.NaN(), 1, ErrInvalidConfig},
		{"infinite range", emitterA, math.Inf(1), 1, ErrInvalidConfig},
		{"negative gain", emitterA, 10, -1, ErrInvalidConfig},
		{"infinite gain", emitterA, 10, math.Inf(1), ErrInvalidConfig},
		{"dead emitter", Handle(99), 10, 1, ErrStaleReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Register(tt.emitter, tt.maxRange, tt.gain)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.engine.Register(emitterA, 10, 1)
	require.NoError(t, err)
	_, err = f.engine.Register(emitterA, 10, 1)
	assert.ErrorIs(t, err, ErrDuplicateEmitter)
	assert.Equal(t, 1, f.engine.Len())
}

func TestEngine_OpenScenario(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	stats := f.engine.Tick(0)
	tg := f.target(t, id)
	assert.Equal(t, 1.0, tg.Visibility)
	assert.Equal(t, MaxFrequency, tg.TargetCutoff)
	assert.Equal(t, 0.8, tg.TargetGain)
	assert.Equal(t, 1, stats.Evaluated)
	assert.Equal(t, 8, stats.Rays)
	assert.Equal(t, 0, stats.Hits)
}

func TestEngine_OccludedScenario(t *testing.T) {
	cfg := scenarioConfig()
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	stats := f.engine.Tick(0)
	tg := f.target(t, id)
	assert.Equal(t, 0.0, tg.Visibility)
	assert.Equal(t, cfg.MinFrequency, tg.TargetCutoff)
	assert.InDelta(t, 0.8*cfg.MinVolumeFactor, tg.TargetGain, 1e-12)
	assert.Equal(t, 8, stats.Hits)
}

func TestEngine_InstantMode(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Mode = ModeInstant
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	stats := f.engine.Tick(0.016)
	tg := f.target(t, id)
	assert.Equal(t, tg.TargetCutoff, tg.CurrentCutoff)
	assert.Equal(t, tg.TargetGain, tg.CurrentGain)
	assert.Equal(t, 0, stats.SubSteps)
	assert.Equal(t, tg.CurrentCutoff, f.sink.values[id].cutoff)
	assert.Equal(t, tg.CurrentGain, f.sink.values[id].gain)
}

func TestEngine_ZeroDeltaLeavesCurrentValues(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 5
	f := newFixture(t, cfg)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	f.wall.set(true)
	f.engine.Tick(0.02)
	before := f.target(t, id)
	require.Less(t, before.CurrentCutoff, MaxFrequency)

	f.wall.set(false)
	for i := 0; i < 5; i++ {
		f.engine.Tick(0)
	}
	after := f.target(t, id)
	assert.Equal(t, before.CurrentCutoff, after.CurrentCutoff)
	assert.Equal(t, before.CurrentGain, after.CurrentGain)
	assert.Equal(t, MaxFrequency, after.TargetCutoff, "targets still follow visibility")
}

func TestEngine_Convergence(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 5
	cfg.FixedStep = 0.02
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	// alpha = speed*dt = 0.1, so the error shrinks by 0.9 per step and
	// 0.9^66 < 1e-3.
	const steps = 66
	prevErr := math.Inf(1)
	for i := 0; i < steps; i++ {
		stats := f.engine.Tick(0.02)
		require.Equal(t, 1, stats.SubSteps)
		tg := f.target(t, id)
		errNow := tg.CurrentCutoff - tg.TargetCutoff
		assert.Less(t, errNow, prevErr)
		assert.GreaterOrEqual(t, errNow, 0.0)
		prevErr = errNow
	}
	tg := f.target(t, id)
	span := MaxFrequency - cfg.MinFrequency
	assert.LessOrEqual(t, tg.CurrentCutoff-tg.TargetCutoff, span*1e-3)
	assert.LessOrEqual(t, tg.CurrentGain-tg.TargetGain, (1-cfg.MinVolumeFactor)*1e-3)
}

func TestEngine_SnapWhenStepExceedsRate(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 100
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	f.engine.Tick(cfg.FixedStep)
	tg := f.target(t, id)
	assert.Equal(t, tg.TargetCutoff, tg.CurrentCutoff)
	assert.Equal(t, tg.TargetGain, tg.CurrentGain)
}

func TestEngine_DistanceCullingFreezesState(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 100
	f := newFixture(t, cfg)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 0.8)

	f.engine.Tick(cfg.FixedStep)
	before := f.target(t, id)
	require.Equal(t, MaxFrequency, before.CurrentCutoff)

	f.world.put(emitterA, Vec3{0, 0, 80})
	f.wall.set(true)
	stats := f.engine.Tick(cfg.FixedStep)

	after := f.target(t, id)
	assert.True(t, after.Culled)
	assert.Equal(t, 1, stats.Culled)
	assert.Equal(t, 0, stats.Evaluated)
	assert.Equal(t, before.CurrentCutoff, after.CurrentCutoff)
	assert.Equal(t, before.CurrentGain, after.CurrentGain)
	assert.Equal(t, before.TargetCutoff, after.TargetCutoff)

	f.world.put(emitterA, Vec3{0, 0, 10})
	f.engine.Tick(cfg.FixedStep)
	back := f.target(t, id)
	assert.False(t, back.Culled)
	assert.Equal(t, cfg.MinFrequency, back.CurrentCutoff)
}

func TestEngine_UnregisterMidSequence(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 3

	both := newFixture(t, cfg)
	both.wall.set(true)
	idA := both.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	idB := both.register(t, emitterB, Vec3{0, 0, -10}, 50, 0.5)

	only := newFixture(t, cfg)
	only.wall.set(true)
	soloB := only.register(t, emitterB, Vec3{0, 0, -10}, 50, 0.5)

	for i := 0; i < 20; i++ {
		if i == 10 {
			require.NoError(t, both.engine.Unregister(idA))
		}
		both.engine.Tick(0.02)
		only.engine.Tick(0.02)
		b := both.target(t, idB)
		solo := only.target(t, soloB)
		assert.Equal(t, solo.CurrentCutoff, b.CurrentCutoff)
		assert.Equal(t, solo.CurrentGain, b.CurrentGain)
	}

	_, ok := both.engine.Target(idA)
	assert.False(t, ok)
	assert.Equal(t, 1, both.engine.Len())
	assert.Contains(t, both.sink.released, idA)
	assert.Equal(t, MaxFrequency, both.sink.values[idA].cutoff)
	assert.Equal(t, 1.0, both.sink.values[idA].gain)

	err := both.engine.Unregister(idA)
	assert.True(t, errors.Is(err, ErrUnknownTarget))
}

func TestEngine_LivenessSweep(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	idA := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	idB := f.register(t, emitterB, Vec3{0, 0, -10}, 50, 1)

	f.world.destroy(emitterA)
	stats := f.engine.Tick(0.02)
	assert.Equal(t, 1, stats.Swept)
	assert.Equal(t, 1, stats.Targets)
	assert.Equal(t, 1, stats.Evaluated)

	_, ok := f.engine.Target(idA)
	assert.False(t, ok)
	_, ok = f.engine.Target(idB)
	assert.True(t, ok)
	assert.Equal(t, []TargetID{idA}, f.sink.released)

	// The emitter may be registered again once its old target is gone.
	f.world.put(emitterA, Vec3{0, 0, 10})
	_, err := f.engine.Register(emitterA, 50, 1)
	assert.NoError(t, err)
}

func TestEngine_MissingListenerIsNoop(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	calls := f.sink.values[id].cutoffCalls

	f.engine.UnbindListener()
	stats := f.engine.Tick(1)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, calls, f.sink.values[id].cutoffCalls)
	assert.Equal(t, MaxFrequency, f.target(t, id).TargetCutoff)

	f.engine.BindListener(listenerH)
	f.world.destroy(listenerH)
	stats = f.engine.Tick(1)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, MaxFrequency, f.target(t, id).TargetCutoff)

	f.world.put(listenerH, Vec3{})
	f.engine.Tick(0)
	assert.Equal(t, 500.0, f.target(t, id).TargetCutoff)
}

func TestEngine_EmitsOncePerTargetPerTick(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	idA := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	idB := f.register(t, emitterB, Vec3{0, 0, 500}, 50, 1)

	for i := 0; i < 3; i++ {
		f.engine.Tick(0.01)
	}
	// One call at registration plus one per tick, culled targets included.
	for _, id := range []TargetID{idA, idB} {
		assert.Equal(t, 4, f.sink.values[id].cutoffCalls)
		assert.Equal(t, 4, f.sink.values[id].gainCalls)
	}
}

func TestEngine_SubStepCap(t *testing.T) {
	cfg := scenarioConfig()
	cfg.FixedStep = 0.02
	cfg.MaxSubSteps = 8
	f := newFixture(t, cfg)
	f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	stats := f.engine.Tick(1)
	assert.Equal(t, 8, stats.SubSteps)
	stats = f.engine.Tick(0.005)
	assert.Equal(t, 0, stats.SubSteps, "leftover time beyond the cap is dropped")
}

func TestEngine_SplitCadences(t *testing.T) {
	cfg := scenarioConfig()
	cfg.InterpolationSpeed = 100
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	f.engine.Evaluate()
	tg := f.target(t, id)
	assert.Equal(t, cfg.MinFrequency, tg.TargetCutoff)
	assert.Equal(t, MaxFrequency, tg.CurrentCutoff, "evaluation alone does not smooth")

	f.engine.UnbindListener()
	stats := f.engine.Advance(cfg.FixedStep)
	assert.Equal(t, 1, stats.SubSteps)
	assert.Equal(t, cfg.MinFrequency, f.target(t, id).CurrentCutoff)
	assert.Equal(t, cfg.MinFrequency, f.sink.values[id].cutoff)
}

func TestEngine_WorkersMatchSequential(t *testing.T) {
	seqCfg := scenarioConfig()
	parCfg := scenarioConfig()
	parCfg.Workers = 4

	seq := newFixture(t, seqCfg)
	par := newFixture(t, parCfg)
	var seqIDs, parIDs []TargetID
	for i := 0; i < 9; i++ {
		pos := Vec3{float64(i) - 4, 0, float64(i%3)*8 - 6}
		seqIDs = append(seqIDs, seq.register(t, Handle(10+i), pos, 50, 1))
		parIDs = append(parIDs, par.register(t, Handle(10+i), pos, 50, 1))
	}
	seq.wall.set(true)
	par.wall.set(true)

	for step := 0; step < 5; step++ {
		s1 := seq.engine.Tick(0.02)
		s2 := par.engine.Tick(0.02)
		assert.Equal(t, s1, s2)
	}
	for i := range seqIDs {
		a := seq.target(t, seqIDs[i])
		b := par.target(t, parIDs[i])
		assert.Equal(t, a.Visibility, b.Visibility)
		assert.Equal(t, a.CurrentCutoff, b.CurrentCutoff)
		assert.Equal(t, a.CurrentGain, b.CurrentGain)
	}
}

func TestEngine_BatchScene(t *testing.T) {
	world := newFakeWorld()
	world.put(listenerH, Vec3{})
	world.put(emitterA, Vec3{0, 0, 10})
	world.put(emitterB, Vec3{0, 0, -10})
	scene := &batchWall{wallZ: wallZ{Z: 5, Layer: 1, On: true}}

	e, err := NewEngine(scenarioConfig(), scene, world, nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer e.Close()
	e.BindListener(listenerH)
	idA, err := e.Register(emitterA, 50, 1)
	require.NoError(t, err)
	idB, err := e.Register(emitterB, 50, 1)
	require.NoError(t, err)

	stats := e.Tick(0)
	assert.Equal(t, 1, scene.batches)
	assert.Equal(t, 16, stats.Rays)
	assert.Equal(t, 8, stats.Hits)
	a, _ := e.Target(idA)
	b, _ := e.Target(idB)
	assert.Equal(t, 0.0, a.Visibility)
	assert.Equal(t, 1.0, b.Visibility)

	scene.fail = errors.New("device lost")
	stats = e.Tick(0)
	assert.Equal(t, 2, scene.batches)
	assert.Equal(t, 8, stats.Hits, "single-ray fallback gives the same answer")
}

func TestEngine_VisualizeReportsEveryRay(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Visualize = true
	cfg.Workers = 3
	drawer := &fakeDrawer{}
	f := newFixture(t, cfg, WithRayDrawer(drawer))
	f.wall.set(true)
	f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	f.register(t, emitterB, Vec3{0, 0, -10}, 50, 1)

	f.engine.Tick(0)
	require.Len(t, drawer.rays, 16)
	hits := 0
	for _, r := range drawer.rays {
		if r.hit {
			hits++
		}
	}
	assert.Equal(t, 8, hits)
}

func TestEngine_SetConfig(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	bad := scenarioConfig()
	bad.ConeAngleDeg = 120
	assert.ErrorIs(t, f.engine.SetConfig(bad), ErrInvalidConfig)
	assert.Equal(t, 45.0, f.engine.Config().ConeAngleDeg)

	instant := scenarioConfig()
	instant.Mode = ModeInstant
	instant.Workers = 2
	require.NoError(t, f.engine.SetConfig(instant))
	f.engine.Tick(0)
	tg := f.target(t, id)
	assert.Equal(t, 500.0, tg.CurrentCutoff)
}

func TestEngine_SetConfigRaisesFloors(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Mode = ModeInstant
	f := newFixture(t, cfg)
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)

	f.engine.Tick(0.02)
	tg := f.target(t, id)
	require.Equal(t, 500.0, tg.CurrentCutoff)
	require.InDelta(t, 0.7, tg.CurrentGain, 1e-12)

	raised := cfg
	raised.MinFrequency = 2000
	raised.MinVolumeFactor = 0.9
	require.NoError(t, f.engine.SetConfig(raised))

	tg = f.target(t, id)
	assert.Equal(t, 2000.0, tg.CurrentCutoff)
	assert.InDelta(t, 0.9, tg.CurrentGain, 1e-12)
	assert.Equal(t, 2000.0, tg.TargetCutoff)
	assert.InDelta(t, 0.9, tg.TargetGain, 1e-12)

	f.engine.Tick(0.001)
	v := f.sink.values[id]
	require.NotNil(t, v)
	assert.Equal(t, 2000.0, v.cutoff)
	assert.InDelta(t, 0.9, v.gain, 1e-12)
}

func TestEngine_SetConfigKeepsSmoothedValuesInRange(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	f.wall.set(true)
	id := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	f.engine.Tick(0.02)
	before := f.target(t, id)
	require.Less(t, before.CurrentCutoff, MaxFrequency)

	raised := scenarioConfig()
	raised.MinFrequency = 21000
	require.NoError(t, f.engine.SetConfig(raised))
	tg := f.target(t, id)
	assert.GreaterOrEqual(t, tg.CurrentCutoff, 21000.0)
	assert.LessOrEqual(t, tg.CurrentCutoff, MaxFrequency)
}

func TestEngine_Snapshot(t *testing.T) {
	f := newFixture(t, scenarioConfig())
	idA := f.register(t, emitterA, Vec3{0, 0, 10}, 50, 1)
	idB := f.register(t, emitterB, Vec3{0, 0, -10}, 50, 0.5)

	snap := f.engine.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, idA, snap[0].ID)
	assert.Equal(t, idB, snap[1].ID)

	snap[0].CurrentGain = 42
	assert.Equal(t, 1.0, f.target(t, idA).CurrentGain, "snapshot is a copy")
}
