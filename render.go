package main

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"SoundOcclusion/occlusion"
)

var (
	floorColor      = [3]byte{14, 16, 22}
	wallColor       = [3]byte{30, 40, 80}
	hiddenColor     = [3]byte{4, 4, 6}
	clearRayColor   = color.RGBA{60, 220, 90, 160}
	blockedRayColor = color.RGBA{230, 60, 60, 160}
	listenerColor   = color.RGBA{240, 240, 240, 255}
	culledColor     = color.RGBA{90, 90, 90, 255}
)

// Draw renders the level, probe rays, emitters, the listener, and the overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	g.paintLevel()
	screen.WritePixels(g.pixels)

	for _, r := range g.rays {
		clr := clearRayColor
		if r.hit {
			clr = blockedRayColor
		}
		x0, y0 := toScreen(r.origin)
		x1, y1 := toScreen(r.end)
		drawLine(screen, x0, y0, x1, y1, clr)
	}

	for _, em := range g.emitters {
		if !g.objects.Alive(em.handle) {
			continue
		}
		x, y := toScreen(g.objects.Pose(em.handle).Position)
		clr := culledColor
		if t, ok := g.engine.Target(em.target); ok && !t.Culled {
			clr = occlusionColor(t)
		}
		drawDisc(screen, x, y, emitterFootprint, clr)
	}

	lx, ly := toScreen(g.listenerPosition())
	drawDisc(screen, lx, ly, listenerFootprint, listenerColor)
	g.drawEarIndicators(screen, lx, ly)

	if *debugFlag {
		ebitenutil.DebugPrint(screen, g.debugText())
	}
}

// Layout reports the logical screen size used by Ebiten.
func (g *Game) Layout(_, _ int) (int, int) { return screenW, screenH }

// paintLevel fills the pixel buffer with floor, wall, and hidden cells.
func (g *Game) paintLevel() {
	shade := *occludeLineOfSightFlag
	for cy := 0; cy < gridH; cy++ {
		for cx := 0; cx < gridW; cx++ {
			c := floorColor
			switch {
			case g.grid.IsWall(cx, cy):
				c = wallColor
			case shade && !g.los.visible(cy*gridW+cx):
				c = hiddenColor
			}
			for py := cy * cellPixels; py < (cy+1)*cellPixels; py++ {
				base := (py*screenW + cx*cellPixels) * 4
				for px := 0; px < cellPixels; px++ {
					i := base + px*4
					g.pixels[i] = c[0]
					g.pixels[i+1] = c[1]
					g.pixels[i+2] = c[2]
					g.pixels[i+3] = 255
				}
			}
		}
	}
}

// occlusionColor fades an emitter from bright orange when audible in the clear
// to dim blue when fully muffled.
func occlusionColor(t occlusion.Target) color.RGBA {
	span := occlusion.MaxFrequency - 20.0
	k := math.Max(0, math.Min(1, (t.CurrentCutoff-20)/span))
	return color.RGBA{
		R: uint8(60 + 195*k),
		G: uint8(80 + 80*k),
		B: uint8(200 - 170*k),
		A: 255,
	}
}

func (g *Game) debugText() string {
	var b strings.Builder
	cfg := g.engine.Config()
	fmt.Fprintf(&b, "FPS: %.1f  TPS: %.1f\n", ebiten.ActualFPS(), ebiten.ActualTPS())
	fmt.Fprintf(&b, "Mode: %s (I)  Rays: %v (V)  LOS: %v (L)\n", cfg.Mode, cfg.Visualize, *occludeLineOfSightFlag)
	s := g.lastStats
	fmt.Fprintf(&b, "Targets %d  eval %d  culled %d  swept %d  rays %d  hits %d\n",
		s.Targets, s.Evaluated, s.Culled, s.Swept, s.Rays, s.Hits)
	fmt.Fprintf(&b, "Tick: %.3f ms\n", g.lastTick.Seconds()*1000)
	for _, t := range g.engine.Snapshot() {
		fmt.Fprintf(&b, "%v vis %.2f  %5.0f Hz  gain %.2f\n", t.ID, t.Visibility, t.CurrentCutoff, t.CurrentGain)
	}
	b.WriteString("WASD move  N add  X destroy  U unregister  R walls")
	return b.String()
}

func toScreen(p occlusion.Vec3) (int, int) {
	return int(math.Round(p.X * cellPixels)), int(math.Round(p.Z * cellPixels))
}

func drawDisc(screen *ebiten.Image, cx, cy int, footprint []pixelOffset, clr color.Color) {
	for _, o := range footprint {
		x, y := cx+o.dx, cy+o.dy
		if x >= 0 && x < screenW && y >= 0 && y < screenH {
			screen.Set(x, y, clr)
		}
	}
}

// earOffsets computes the ear indicator positions relative to the listener.
func (g *Game) earOffsets() (int, int) {
	fx, fz := g.listenerForwardX, g.listenerForwardZ
	if fx == 0 && fz == 0 {
		fz = -1
	}
	earX, earZ := -fz, fx
	length := math.Hypot(earX, earZ)
	scale := float64(earOffsetPixels) / length
	return int(math.Round(earX * scale)), int(math.Round(earZ * scale))
}

// drawEarIndicators renders the listener's ear offset visualization.
func (g *Game) drawEarIndicators(screen *ebiten.Image, cx, cy int) {
	ox, oy := g.earOffsets()
	leftX := clampCoord(cx-ox, 0, screenW-1)
	leftY := clampCoord(cy-oy, 0, screenH-1)
	rightX := clampCoord(cx+ox, 0, screenW-1)
	rightY := clampCoord(cy+oy, 0, screenH-1)
	drawLine(screen, cx, cy, leftX, leftY, color.RGBA{0, 255, 200, 200})
	drawLine(screen, cx, cy, rightX, rightY, color.RGBA{0, 200, 255, 200})
}

// clampCoord constrains v to lie within the inclusive [min, max] range.
func clampCoord(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// drawLine plots a line segment using Bresenham's integer algorithm.
func drawLine(screen *ebiten.Image, x0, y0, x1, y1 int, clr color.Color) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if x0 >= 0 && x0 < screenW && y0 >= 0 && y0 < screenH {
			screen.Set(x0, y0, clr)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}
