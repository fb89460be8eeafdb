package scene

import (
	"math"

	"SoundOcclusion/occlusion"
)

const hitEpsilon = 1e-9

// Plane is an infinite occluding plane through Point.
type Plane struct {
	Point, Normal occlusion.Vec3
	Layers        occlusion.LayerMask
}

// Box is an axis-aligned occluder.
type Box struct {
	Min, Max occlusion.Vec3
	Layers   occlusion.LayerMask
}

// Sphere is a round occluder.
type Sphere struct {
	Center occlusion.Vec3
	Radius float64
	Layers occlusion.LayerMask
}

// Shapes is an analytic scene made of planes, boxes and spheres. A ray whose
// origin lies inside a box or sphere counts as blocked.
type Shapes struct {
	Planes  []Plane
	Boxes   []Box
	Spheres []Sphere
}

// Raycast reports whether any shape on layers lies within maxDistance of
// origin along direction.
func (s *Shapes) Raycast(origin, direction occlusion.Vec3, maxDistance float64, layers occlusion.LayerMask) bool {
	if layers == 0 || !(maxDistance > 0) {
		return false
	}
	d := direction.Norm()
	if d == (occlusion.Vec3{}) {
		return false
	}
	for i := range s.Planes {
		p := &s.Planes[i]
		if p.Layers&layers != 0 && planeHit(origin, d, p, maxDistance) {
			return true
		}
	}
	for i := range s.Boxes {
		b := &s.Boxes[i]
		if b.Layers&layers != 0 && boxHit(origin, d, b, maxDistance) {
			return true
		}
	}
	for i := range s.Spheres {
		sp := &s.Spheres[i]
		if sp.Layers&layers != 0 && sphereHit(origin, d, sp, maxDistance) {
			return true
		}
	}
	return false
}

func planeHit(o, d occlusion.Vec3, p *Plane, tMax float64) bool {
	n := p.Normal.Norm()
	denom := n.Dot(d)
	if math.Abs(denom) < hitEpsilon {
		return false
	}
	t := n.Dot(p.Point.Sub(o)) / denom
	return t > hitEpsilon && t <= tMax
}

// boxHit is the slab test.
func boxHit(o, d occlusion.Vec3, b *Box, tMax float64) bool {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	axes := [3][4]float64{
		{o.X, d.X, b.Min.X, b.Max.X},
		{o.Y, d.Y, b.Min.Y, b.Max.Y},
		{o.Z, d.Z, b.Min.Z, b.Max.Z},
	}
	for _, a := range axes {
		origin, dir, lo, hi := a[0], a[1], a[2], a[3]
		if math.Abs(dir) < hitEpsilon {
			if origin < lo || origin > hi {
				return false
			}
			continue
		}
		inv := 1 / dir
		t1 := (lo - origin) * inv
		t2 := (hi - origin) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false
		}
	}
	if tmax < 0 {
		return false
	}
	return math.Max(tmin, 0) <= tMax
}

func sphereHit(o, d occlusion.Vec3, s *Sphere, tMax float64) bool {
	oc := o.Sub(s.Center)
	c := oc.Dot(oc) - s.Radius*s.Radius
	if c <= 0 {
		return true
	}
	b := oc.Dot(d)
	disc := b*b - c
	if disc < 0 {
		return false
	}
	t := -b - math.Sqrt(disc)
	return t > hitEpsilon && t <= tMax
}
