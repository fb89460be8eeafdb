package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"

	"SoundOcclusion/occlusion"
)

// enableAutoWalk schedules scripted movement for a limited duration.
func (g *Game) enableAutoWalk(duration time.Duration) {
	g.autoWalk = true
	g.autoWalkDeadline = time.Now().Add(duration)
	if g.autoWalkRand == nil {
		g.autoWalkRand = rand.New(rand.NewSource(time.Now().UnixNano() + 3))
	}
	g.autoWalkFrameCount = 0
}

// movementVector selects either manual or automatic movement direction.
func (g *Game) movementVector() (float64, float64) {
	if g.autoWalk {
		if time.Now().After(g.autoWalkDeadline) {
			g.autoWalk = false
			return 0, 0
		}
		return g.autoWalkVector()
	}
	return manualMovementVector()
}

// manualMovementVector returns WASD input scaled by moveSpeed. W walks toward
// -Z, which is up on screen.
func manualMovementVector() (float64, float64) {
	dx, dz := 0.0, 0.0
	if ebiten.IsKeyPressed(ebiten.KeyW) {
		dz -= moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) {
		dz += moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) {
		dx -= moveSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) {
		dx += moveSpeed
	}
	if dx != 0 && dz != 0 {
		dx *= 0.7071
		dz *= 0.7071
	}
	return dx, dz
}

// autoWalkVector returns a pseudo-random, collision-aware movement vector.
func (g *Game) autoWalkVector() (float64, float64) {
	for attempts := 0; attempts < 5; attempts++ {
		if g.autoWalkFrameCount <= 0 {
			g.randomizeAutoWalkDirection()
		}
		next := occlusion.Vec3{
			X: g.lx + g.autoWalkDirX*moveSpeed,
			Z: g.lz + g.autoWalkDirZ*moveSpeed,
		}
		cx, cy := g.grid.CellAt(next)
		if !g.grid.IsWall(cx, cy) {
			g.autoWalkFrameCount--
			return g.autoWalkDirX * moveSpeed, g.autoWalkDirZ * moveSpeed
		}
		g.autoWalkFrameCount = 0
	}
	return 0, 0
}

// randomizeAutoWalkDirection chooses a new heading for automatic walking.
func (g *Game) randomizeAutoWalkDirection() {
	angle := g.autoWalkRand.Float64() * 2 * math.Pi
	g.autoWalkDirX = math.Cos(angle)
	g.autoWalkDirZ = math.Sin(angle)
	g.autoWalkFrameCount = 20 + g.autoWalkRand.Intn(50)
}

// handleControls processes the demo hotkeys.
func (g *Game) handleControls() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		if err := g.spawnEmitter(); err != nil {
			g.log.WithFields(logrus.Fields{
				"function": "Game.handleControls",
				"error":    err.Error(),
			}).Warn("Emitter spawn failed")
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyX):
		g.destroyLastEmitter()
	case inpututil.IsKeyJustPressed(ebiten.KeyU):
		g.unregisterLastEmitter()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.generateWalls()
	case inpututil.IsKeyJustPressed(ebiten.KeyI):
		g.updateConfig(func(c *occlusion.Config) {
			if c.Mode == occlusion.ModeInstant {
				c.Mode = occlusion.ModeInterpolated
			} else {
				c.Mode = occlusion.ModeInstant
			}
		})
	case inpututil.IsKeyJustPressed(ebiten.KeyV):
		g.updateConfig(func(c *occlusion.Config) { c.Visualize = !c.Visualize })
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		*occludeLineOfSightFlag = !*occludeLineOfSightFlag
		g.los.invalidate()
	}
}

func (g *Game) updateConfig(edit func(c *occlusion.Config)) {
	cfg := g.engine.Config()
	edit(&cfg)
	if err := g.engine.SetConfig(cfg); err != nil {
		g.log.WithFields(logrus.Fields{
			"function": "Game.updateConfig",
			"error":    err.Error(),
		}).Warn("Config change rejected")
		return
	}
	g.log.WithFields(logrus.Fields{
		"function":  "Game.updateConfig",
		"mode":      cfg.Mode.String(),
		"visualize": cfg.Visualize,
	}).Info("Occlusion config updated")
}
