package occlusion

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// sceneFunc adapts a function to SceneQuery.
type sceneFunc func(origin, direction Vec3, maxDistance float64, layers LayerMask) bool

func (f sceneFunc) Raycast(origin, direction Vec3, maxDistance float64, layers LayerMask) bool {
	return f(origin, direction, maxDistance, layers)
}

var emptyScene = sceneFunc(func(Vec3, Vec3, float64, LayerMask) bool { return false })

var solidScene = sceneFunc(func(Vec3, Vec3, float64, LayerMask) bool { return true })

// wallZ is an infinite occluding plane z = Z on Layer.
type wallZ struct {
	mu    sync.Mutex
	Z     float64
	Layer LayerMask
	On    bool
	calls int
}

func (w *wallZ) Raycast(origin, direction Vec3, maxDistance float64, layers LayerMask) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if !w.On || layers&w.Layer == 0 {
		return false
	}
	d := direction.Norm()
	if d.Z == 0 {
		return false
	}
	t := (w.Z - origin.Z) / d.Z
	return t > 0 && t <= maxDistance
}

func (w *wallZ) set(on bool) {
	w.mu.Lock()
	w.On = on
	w.mu.Unlock()
}

// batchWall answers batches through wallZ and can be told to fail.
type batchWall struct {
	wallZ
	fail    error
	batches int
}

func (b *batchWall) RaycastBatch(rays []Ray, layers LayerMask, hits []bool) error {
	b.batches++
	if b.fail != nil {
		return b.fail
	}
	for i, r := range rays {
		hits[i] = b.wallZ.Raycast(r.Origin, r.Direction, r.MaxDistance, layers)
	}
	return nil
}

type fakeWorld struct {
	mu    sync.Mutex
	poses map[Handle]Pose
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{poses: make(map[Handle]Pose)}
}

func (w *fakeWorld) put(h Handle, pos Vec3) {
	w.mu.Lock()
	w.poses[h] = Pose{Position: pos, Forward: Forward, Up: Up}
	w.mu.Unlock()
}

func (w *fakeWorld) destroy(h Handle) {
	w.mu.Lock()
	delete(w.poses, h)
	w.mu.Unlock()
}

func (w *fakeWorld) Alive(h Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.poses[h]
	return ok
}

func (w *fakeWorld) Pose(h Handle) Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.poses[h]
}

type sinkValues struct {
	cutoff, gain float64
	cutoffCalls  int
	gainCalls    int
}

type fakeSink struct {
	values   map[TargetID]*sinkValues
	released []TargetID
}

func newFakeSink() *fakeSink {
	return &fakeSink{values: make(map[TargetID]*sinkValues)}
}

func (s *fakeSink) entry(id TargetID) *sinkValues {
	v, ok := s.values[id]
	if !ok {
		v = &sinkValues{}
		s.values[id] = v
	}
	return v
}

func (s *fakeSink) SetFilterCutoff(id TargetID, hz float64) {
	v := s.entry(id)
	v.cutoff = hz
	v.cutoffCalls++
}

func (s *fakeSink) SetGain(id TargetID, gain float64) {
	v := s.entry(id)
	v.gain = gain
	v.gainCalls++
}

func (s *fakeSink) Release(id TargetID) {
	s.released = append(s.released, id)
}

type drawnRay struct {
	origin, direction Vec3
	length            float64
	hit               bool
}

type fakeDrawer struct {
	rays []drawnRay
}

func (d *fakeDrawer) DrawRay(origin, direction Vec3, length float64, hit bool) {
	d.rays = append(d.rays, drawnRay{origin, direction, length, hit})
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
