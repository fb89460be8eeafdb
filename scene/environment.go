package scene

import (
	"math/rand"

	"SoundOcclusion/occlusion"
)

// WallParams shapes the procedural wall layout.
type WallParams struct {
	Segments          int
	MinLen, MaxLen    int
	ThicknessVariance int
	// ExclusionRadius keeps walls this many cells away from each Keep point.
	ExclusionRadius int
	Keep            []occlusion.Vec3
	Layers          occlusion.LayerMask
}

// DefaultWallParams matches the demo level.
func DefaultWallParams() WallParams {
	return WallParams{
		Segments:          12,
		MinLen:            4,
		MaxLen:            18,
		ThicknessVariance: 1,
		ExclusionRadius:   2,
		Layers:            1,
	}
}

// GenerateWalls clears the grid and scatters straight wall segments across it.
// The outermost ring of cells is left empty.
func (g *Grid) GenerateWalls(rng *rand.Rand, p WallParams) {
	g.Clear()
	if g.width < 5 || g.height < 5 {
		return
	}
	if p.Layers == 0 {
		p.Layers = 1
	}
	keep := make([][2]int, 0, len(p.Keep))
	for _, k := range p.Keep {
		x, y := g.CellAt(k)
		keep = append(keep, [2]int{x, y})
	}

	for s := 0; s < p.Segments; s++ {
		lengthRange := p.MaxLen - p.MinLen + 1
		if lengthRange <= 0 {
			lengthRange = 1
		}
		length := p.MinLen + rng.Intn(lengthRange)
		thickness := 0
		if p.ThicknessVariance > 0 {
			thickness = rng.Intn(p.ThicknessVariance + 1)
		}
		horizontal := rng.Intn(2) == 0
		x := rng.Intn(g.width-4) + 2
		y := rng.Intn(g.height-4) + 2
		dx, dy := 0, 1
		if horizontal {
			dx, dy = 1, 0
		}
		perpX, perpY := dy, dx
		cx, cy := x, y
		for l := 0; l < length; l++ {
			if cx <= 0 || cx >= g.width-1 || cy <= 0 || cy >= g.height-1 {
				break
			}
			for t := -thickness; t <= thickness; t++ {
				g.trySetWall(cx+perpX*t, cy+perpY*t, keep, p)
			}
			cx += dx
			cy += dy
		}
	}
}

func (g *Grid) trySetWall(x, y int, keep [][2]int, p WallParams) {
	if x <= 0 || x >= g.width-1 || y <= 0 || y >= g.height-1 {
		return
	}
	r2 := p.ExclusionRadius * p.ExclusionRadius
	for _, k := range keep {
		dx, dy := x-k[0], y-k[1]
		if dx*dx+dy*dy <= r2 {
			return
		}
	}
	g.Set(x, y, g.Layers(x, y)|p.Layers)
}
