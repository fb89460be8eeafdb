package main

import (
	"math"

	"SoundOcclusion/scene"
)

// losMask marks the grid cells the listener can see inside its field of view.
// Cells are visible when their stamp equals gen, so a refresh never clears the
// whole buffer.
type losMask struct {
	stamp          []uint32
	gen            uint32
	lastCX, lastCY int
	lastFX, lastFY float64
	valid          bool
}

func (m *losMask) invalidate() { m.valid = false }

func (m *losMask) visible(idx int) bool {
	return idx < len(m.stamp) && m.stamp[idx] == m.gen
}

// refresh recomputes visibility from cell (cx, cy) looking along (fx, fy).
func (m *losMask) refresh(grid *scene.Grid, cx, cy int, fx, fy, fovDeg float64) {
	width, height := grid.Size()
	if len(m.stamp) != width*height {
		m.stamp = make([]uint32, width*height)
		m.valid = false
	}
	if m.valid && m.lastCX == cx && m.lastCY == cy && m.lastFX == fx && m.lastFY == fy {
		return
	}
	if m.gen == ^uint32(0) {
		for i := range m.stamp {
			m.stamp[i] = 0
		}
		m.gen = 1
	} else {
		m.gen++
	}
	m.lastCX, m.lastCY, m.lastFX, m.lastFY = cx, cy, fx, fy
	m.valid = true
	if cx < 0 || cx >= width || cy < 0 || cy >= height {
		return
	}
	m.stamp[cy*width+cx] = m.gen

	mag := math.Hypot(fx, fy)
	if mag == 0 {
		fx, fy, mag = 0, -1, 1
	}
	fx /= mag
	fy /= mag
	fovDeg = math.Max(1, math.Min(180, fovDeg))
	cosHalf := math.Cos(fovDeg * math.Pi / 360)

	radius := max(cx, width-1-cx, cy, height-1-cy)
	s := shadowcast{
		grid: grid, mask: m, width: width, height: height,
		cx: cx, cy: cy, radius: radius,
		fx: fx, fy: fy, cosHalfSq: cosHalf * cosHalf,
	}
	octants := [8][4]int{
		{1, 0, 0, 1},
		{0, 1, 1, 0},
		{-1, 0, 0, 1},
		{0, 1, -1, 0},
		{-1, 0, 0, -1},
		{0, -1, -1, 0},
		{1, 0, 0, -1},
		{0, -1, 1, 0},
	}
	for _, o := range octants {
		s.castLight(1, 1.0, 0.0, o[0], o[1], o[2], o[3])
	}
}

// shadowcast holds the fixed inputs of one recursive shadowcasting pass.
type shadowcast struct {
	grid          *scene.Grid
	mask          *losMask
	width, height int
	cx, cy        int
	radius        int
	fx, fy        float64
	cosHalfSq     float64
}

func (s *shadowcast) inCone(x, y int) bool {
	vx := float64(x - s.cx)
	vy := float64(y - s.cy)
	dot := vx*s.fx + vy*s.fy
	return dot > 0 && dot*dot >= (vx*vx+vy*vy)*s.cosHalfSq
}

// castLight scans one octant row by row, recursing past each wall run.
func (s *shadowcast) castLight(row int, startSlope, endSlope float64, xx, xy, yx, yy int) {
	if startSlope < endSlope {
		return
	}
	radiusSq := s.radius * s.radius
	for i := row; i <= s.radius; i++ {
		blocked := false
		newStart := 0.0
		for dx := -i; dx <= 0; dx++ {
			dy := -i
			lSlope := (float64(dx) - 0.5) / (float64(dy) + 0.5)
			rSlope := (float64(dx) + 0.5) / (float64(dy) - 0.5)
			if rSlope > startSlope {
				continue
			}
			if lSlope < endSlope {
				break
			}
			x := s.cx + dx*xx + dy*xy
			y := s.cy + dx*yx + dy*yy
			if x < 0 || x >= s.width || y < 0 || y >= s.height {
				continue
			}
			if dx*dx+dy*dy <= radiusSq && s.inCone(x, y) {
				s.mask.stamp[y*s.width+x] = s.mask.gen
			}
			wall := s.grid.IsWall(x, y)
			if blocked {
				if wall {
					newStart = rSlope
					continue
				}
				blocked = false
				startSlope = newStart
			} else if wall && i < s.radius {
				blocked = true
				s.castLight(i+1, startSlope, lSlope, xx, xy, yx, yy)
				newStart = rSlope
			}
		}
		if blocked {
			break
		}
	}
}
