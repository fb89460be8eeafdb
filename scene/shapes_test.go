package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"SoundOcclusion/occlusion"
)

func TestShapes_Plane(t *testing.T) {
	s := &Shapes{Planes: []Plane{{Point: v(0, 0, 5), Normal: v(0, 0, 1), Layers: 1}}}

	assert.True(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, 1))
	assert.True(t, s.Raycast(v(0, 0, 0), v(3, 2, 1), 100, 1), "infinite extent")
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 4, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, -1), 10, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(1, 0, 0), 10, 1), "parallel")
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, 0b10))
}

func TestShapes_Box(t *testing.T) {
	s := &Shapes{Boxes: []Box{{Min: v(-1, -1, 4), Max: v(1, 1, 6), Layers: 1}}}

	assert.True(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 3.9, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(1, 0, 1), 20, 1), "passes beside")
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, -1), 20, 1))
	assert.True(t, s.Raycast(v(0, 0, 5), v(1, 0, 0), 0.5, 1), "origin inside")
	assert.False(t, s.Raycast(v(0, 5, 0), v(0, 0, 1), 20, 1), "parallel slab outside")
}

func TestShapes_Sphere(t *testing.T) {
	s := &Shapes{Spheres: []Sphere{{Center: v(0, 0, 5), Radius: 1, Layers: 1}}}

	assert.True(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 3.5, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 1, 0), 10, 1))
	assert.False(t, s.Raycast(v(0, 0, 10), v(0, 0, 1), 10, 1), "behind")
	assert.True(t, s.Raycast(v(0, 0, 5), v(0, 0, 1), 0.1, 1), "origin inside")
}

func TestShapes_EmptyAndDegenerate(t *testing.T) {
	var s Shapes
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, occlusion.AllLayers))

	s.Spheres = []Sphere{{Center: v(0, 0, 5), Radius: 1, Layers: 1}}
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 0), 10, 1))
	assert.False(t, s.Raycast(v(0, 0, 0), v(0, 0, 1), 10, 0))
}
