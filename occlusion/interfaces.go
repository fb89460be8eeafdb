package occlusion

// Handle identifies a listener or emitter in the host's object registry.
type Handle uint64

// Pose is a world-space position with an orientation basis.
type Pose struct {
	Position Vec3
	Forward  Vec3
	Up       Vec3
}

// basis returns unit forward and up vectors, falling back to the world axes
// when the host supplies zero vectors.
func (p Pose) basis() (forward, up Vec3) {
	up = p.Up.Norm()
	if up == (Vec3{}) {
		up = Up
	}
	forward = p.Forward.Norm()
	if forward == (Vec3{}) {
		forward = Forward
	}
	return forward, up
}

// Ray is a single scene query. Direction need not be normalized; hits are
// only reported within MaxDistance along it.
type Ray struct {
	Origin      Vec3
	Direction   Vec3
	MaxDistance float64
}

// SceneQuery intersects rays with occluder geometry.
type SceneQuery interface {
	// Raycast reports whether any occluder on layers lies within maxDistance
	// of origin along direction.
	Raycast(origin, direction Vec3, maxDistance float64, layers LayerMask) bool
}

// BatchRaycaster is an optional SceneQuery extension that answers many rays
// in one call. hits has the same length as rays.
type BatchRaycaster interface {
	RaycastBatch(rays []Ray, layers LayerMask, hits []bool) error
}

// TransformProvider exposes host object poses. Alive must return false once
// the host object behind h has been destroyed.
type TransformProvider interface {
	Alive(h Handle) bool
	Pose(h Handle) Pose
}

// Sink applies per-target filter parameters to the audio pipeline.
type Sink interface {
	SetFilterCutoff(id TargetID, hz float64)
	SetGain(id TargetID, gain float64)
}

// Releaser is implemented by sinks that hold per-target resources.
type Releaser interface {
	Release(id TargetID)
}

// RayDrawer receives every cast ray when Config.Visualize is set.
type RayDrawer interface {
	DrawRay(origin, direction Vec3, length float64, hit bool)
}
