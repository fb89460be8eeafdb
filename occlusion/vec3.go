package occlusion

import "math"

// Vec3 is a world-space vector. The up axis is +Y.
type Vec3 struct {
	X, Y, Z float64
}

var (
	// Up is the default up axis used when a pose does not provide one.
	Up = Vec3{0, 1, 0}
	// Forward is the default forward axis used when a pose does not provide one.
	Forward = Vec3{0, 0, 1}
)

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Mul(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

// IsFinite reports whether no component is NaN or infinite.
func (a Vec3) IsFinite() bool {
	return !math.IsNaN(a.X+a.Y+a.Z) && !math.IsInf(a.X, 0) && !math.IsInf(a.Y, 0) && !math.IsInf(a.Z, 0)
}

// Norm returns the unit vector of a, or the zero vector when a has no length.
func (a Vec3) Norm() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Mul(1 / l)
}

// RotateAbout rotates a by angle radians about the unit axis k (Rodrigues).
func (a Vec3) RotateAbout(k Vec3, angle float64) Vec3 {
	sin, cos := math.Sincos(angle)
	return a.Mul(cos).
		Add(k.Cross(a).Mul(sin)).
		Add(k.Mul(k.Dot(a) * (1 - cos)))
}

// Lerp interpolates between a and b by t without clamping. It returns a and b
// exactly at t = 0 and t = 1.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
