package occlusion

import "math"

// ProbeParams controls the shape of the ray fan.
type ProbeParams struct {
	ConeAngleDeg float64
	RayCount     int
	Layers       LayerMask
	Visualize    bool
}

func (c Config) probeParams() ProbeParams {
	return ProbeParams{
		ConeAngleDeg: c.ConeAngleDeg,
		RayCount:     c.RayCount,
		Layers:       c.OccluderLayers,
		Visualize:    c.Visualize,
	}
}

// Probe samples line of sight between a listener and a target point with a
// fixed fan of rays around the direct path. It holds no per-call state and may
// be shared across goroutines when its scene and drawer are.
type Probe struct {
	scene  SceneQuery
	drawer RayDrawer
}

// NewProbe returns a probe casting against scene. drawer may be nil.
func NewProbe(scene SceneQuery, drawer RayDrawer) *Probe {
	return &Probe{scene: scene, drawer: drawer}
}

// Rays appends the fan for one listener/target pair to dst. Ray j is the
// direct path plus the listener's forward vector rotated j/RayCount of a turn
// about the listener's up axis and scaled by tan(cone angle). All rays share
// the direct-path distance as their bound.
func (p *Probe) Rays(listener Pose, target Vec3, params ProbeParams, dst []Ray) []Ray {
	direction := target.Sub(listener.Position)
	distance := direction.Len()
	forward, up := listener.basis()
	spread := math.Tan(params.ConeAngleDeg * math.Pi / 180)
	for j := 0; j < params.RayCount; j++ {
		angle := 2 * math.Pi * float64(j) / float64(params.RayCount)
		offset := forward.RotateAbout(up, angle).Mul(spread)
		dst = append(dst, Ray{
			Origin:      listener.Position,
			Direction:   direction.Add(offset),
			MaxDistance: distance,
		})
	}
	return dst
}

// Evaluate casts the fan and returns the fraction of rays that reached the
// target unobstructed. params.RayCount must be at least 1.
func (p *Probe) Evaluate(listener Pose, target Vec3, params ProbeParams) float64 {
	visibility, _, _ := p.evaluate(listener, target, params, nil)
	return visibility
}

// evaluate is Evaluate with a caller-owned ray buffer. It also reports the hit
// count and returns the buffer for reuse.
func (p *Probe) evaluate(listener Pose, target Vec3, params ProbeParams, buf []Ray) (float64, int, []Ray) {
	rays := p.Rays(listener, target, params, buf[:0])
	hits := 0
	for _, r := range rays {
		hit := p.scene != nil && p.scene.Raycast(r.Origin, r.Direction, r.MaxDistance, params.Layers)
		if hit {
			hits++
		}
		p.draw(r, hit, params.Visualize)
	}
	return visibilityRatio(hits, len(rays)), hits, rays
}

func (p *Probe) draw(r Ray, hit, visualize bool) {
	if visualize && p.drawer != nil {
		p.drawer.DrawRay(r.Origin, r.Direction, r.MaxDistance, hit)
	}
}

func visibilityRatio(hits, rays int) float64 {
	if rays <= 0 {
		return 1
	}
	return 1 - float64(hits)/float64(rays)
}
