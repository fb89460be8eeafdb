package scene

import (
	"math"

	"SoundOcclusion/occlusion"
)

// Grid is an occupancy map laid on the world XZ plane. Cell (x, y) covers
// world X in [x, x+1)*cellSize and world Z in [y, y+1)*cellSize, and stores the
// layer bits of the occluders in it. Occluders extend infinitely along Y.
//
// Queries may run concurrently with each other but not with mutation.
type Grid struct {
	width, height int
	cellSize      float64
	cells         []occlusion.LayerMask
	version       uint64
}

// NewGrid returns an empty width x height grid.
func NewGrid(width, height int, cellSize float64) *Grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if !(cellSize > 0) {
		cellSize = 1
	}
	return &Grid{
		width:    width,
		height:   height,
		cellSize: cellSize,
		cells:    make([]occlusion.LayerMask, width*height),
	}
}

// Size returns the grid dimensions in cells.
func (g *Grid) Size() (int, int) { return g.width, g.height }

// CellSize returns the world size of one cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// Version changes whenever any cell changes.
func (g *Grid) Version() uint64 { return g.version }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Set replaces the layers of a cell. Out-of-range cells are ignored.
func (g *Grid) Set(x, y int, layers occlusion.LayerMask) {
	if !g.inBounds(x, y) {
		return
	}
	g.cells[y*g.width+x] = layers
	g.version++
}

// Layers returns the layers of a cell, or 0 outside the grid.
func (g *Grid) Layers(x, y int) occlusion.LayerMask {
	if !g.inBounds(x, y) {
		return 0
	}
	return g.cells[y*g.width+x]
}

// IsWall reports whether a cell blocks movement. Cells outside the grid count
// as walls.
func (g *Grid) IsWall(x, y int) bool {
	if !g.inBounds(x, y) {
		return true
	}
	return g.cells[y*g.width+x] != 0
}

// Clear removes every occluder.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = 0
	}
	g.version++
}

// CellAt maps a world position to the cell containing it.
func (g *Grid) CellAt(p occlusion.Vec3) (int, int) {
	return int(math.Floor(p.X / g.cellSize)), int(math.Floor(p.Z / g.cellSize))
}

// CellCenter returns the world position of a cell's center at height 0.
func (g *Grid) CellCenter(x, y int) occlusion.Vec3 {
	return occlusion.Vec3{
		X: (float64(x) + 0.5) * g.cellSize,
		Z: (float64(y) + 0.5) * g.cellSize,
	}
}

// Raycast walks the cells crossed by the ray's XZ projection (Amanatides-Woo
// traversal) and reports the first cell on layers entered within maxDistance
// of origin, measured along the full 3D ray. The origin cell is skipped so a
// listener standing in a wall cell does not occlude itself.
func (g *Grid) Raycast(origin, direction occlusion.Vec3, maxDistance float64, layers occlusion.LayerMask) bool {
	return g.traverse(origin, direction, maxDistance, func(idx int) bool {
		return g.cells[idx]&layers != 0
	})
}

// traverse visits each cell index the ray enters, stopping when visit returns
// true (reported as a hit) or the ray passes maxDistance or leaves the grid.
// Rays starting outside are clipped to the grid bounds, so the walk never takes
// more than width+height steps.
func (g *Grid) traverse(origin, direction occlusion.Vec3, maxDistance float64, visit func(idx int) bool) bool {
	length := direction.Len()
	if !(length > 0) || math.IsInf(length, 0) || !(maxDistance > 0) || !origin.IsFinite() {
		return false
	}
	dx := direction.X / length
	dz := direction.Z / length
	if dx == 0 && dz == 0 {
		return false
	}
	ox := origin.X / g.cellSize
	oz := origin.Z / g.cellSize

	var cx, cz int
	var stepX, stepZ int
	var tMaxX, tMaxZ, tDeltaX, tDeltaZ float64
	if ox >= 0 && ox < float64(g.width) && oz >= 0 && oz < float64(g.height) {
		cx, cz = int(math.Floor(ox)), int(math.Floor(oz))
		stepX, tMaxX, tDeltaX = axisSetup(ox, cx, dx, g.cellSize)
		stepZ, tMaxZ, tDeltaZ = axisSetup(oz, cz, dz, g.cellSize)
	} else {
		tEnter, ok := g.entry(ox, oz, dx, dz)
		if !ok || tEnter > maxDistance {
			return false
		}
		px := ox + dx*tEnter/g.cellSize
		pz := oz + dz*tEnter/g.cellSize
		cx = clampCell(px, g.width)
		cz = clampCell(pz, g.height)
		stepX, tMaxX, tDeltaX = axisSetup(px, cx, dx, g.cellSize)
		stepZ, tMaxZ, tDeltaZ = axisSetup(pz, cz, dz, g.cellSize)
		tMaxX += tEnter
		tMaxZ += tEnter
		if visit(cz*g.width + cx) {
			return true
		}
	}

	for {
		var t float64
		if tMaxX < tMaxZ {
			t = tMaxX
			cx += stepX
			tMaxX += tDeltaX
		} else {
			t = tMaxZ
			cz += stepZ
			tMaxZ += tDeltaZ
		}
		if t > maxDistance || !g.inBounds(cx, cz) {
			return false
		}
		if visit(cz*g.width + cx) {
			return true
		}
	}
}

// entry returns the ray distance at which a ray starting outside the grid
// enters it (slab test on the XZ bounds). ok is false when the ray misses.
func (g *Grid) entry(ox, oz, dx, dz float64) (float64, bool) {
	tEnter, tExit := 0.0, math.Inf(1)
	for _, a := range [2][3]float64{{ox, dx, float64(g.width)}, {oz, dz, float64(g.height)}} {
		o, d, size := a[0], a[1], a[2]
		if d == 0 {
			if o < 0 || o >= size {
				return 0, false
			}
			continue
		}
		t1 := -o * g.cellSize / d
		t2 := (size - o) * g.cellSize / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tEnter = math.Max(tEnter, t1)
		tExit = math.Min(tExit, t2)
	}
	return tEnter, tEnter < tExit
}

func clampCell(p float64, n int) int {
	c := int(math.Floor(p))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// axisSetup returns the cell step, the ray distance from pos to the next
// boundary of cell, and the ray distance between boundaries along one axis.
// pos is in cell units; dir is the axis component of the unit ray direction.
func axisSetup(pos float64, cell int, dir, cellSize float64) (int, float64, float64) {
	switch {
	case dir > 0:
		return 1, (float64(cell) + 1 - pos) * cellSize / dir, cellSize / dir
	case dir < 0:
		return -1, (pos - float64(cell)) * cellSize / -dir, cellSize / -dir
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}
