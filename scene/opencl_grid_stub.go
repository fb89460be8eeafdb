//go:build !opencl

package scene

import (
	"errors"

	"SoundOcclusion/occlusion"
)

// CLGrid is unavailable without the opencl build tag.
type CLGrid struct {
	grid *Grid
}

func NewCLGrid(g *Grid) (*CLGrid, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (c *CLGrid) Raycast(origin, direction occlusion.Vec3, maxDistance float64, layers occlusion.LayerMask) bool {
	return c.grid.Raycast(origin, direction, maxDistance, layers)
}

func (c *CLGrid) RaycastBatch(rays []occlusion.Ray, layers occlusion.LayerMask, hits []bool) error {
	return errors.New("OpenCL grid unavailable")
}

func (c *CLGrid) Close() {}

func (c *CLGrid) DeviceName() string { return "" }
