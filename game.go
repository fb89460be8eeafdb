package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"SoundOcclusion/occlusion"
	"SoundOcclusion/scene"
)

type emitter struct {
	handle occlusion.Handle
	target occlusion.TargetID
}

type debugRay struct {
	origin, end occlusion.Vec3
	hit         bool
}

// Game walks a listener through a walled level while the occlusion engine
// muffles the emitters it cannot see.
type Game struct {
	grid    *scene.Grid
	objects *objectTable
	engine  *occlusion.Engine
	log     *logrus.Logger

	listener         occlusion.Handle
	lx, lz           float64
	listenerForwardX float64
	listenerForwardZ float64
	emitters         []emitter

	levelRand          *rand.Rand
	autoWalk           bool
	autoWalkDeadline   time.Time
	autoWalkRand       *rand.Rand
	autoWalkDirX       float64
	autoWalkDirZ       float64
	autoWalkFrameCount int

	rays      []debugRay
	los       losMask
	pixels    []byte
	lastStats occlusion.Stats
	lastTick  time.Duration

	pgoStop func()
}

// newGame builds the level and registers the starting emitters. The engine is
// attached afterwards by attachEngine.
func newGame(seed int64, log *logrus.Logger) *Game {
	g := &Game{
		grid:             scene.NewGrid(gridW, gridH, 1),
		objects:          newObjectTable(),
		log:              log,
		lx:               gridW / 2,
		lz:               gridH / 2,
		listenerForwardZ: -1,
		levelRand:        rand.New(rand.NewSource(seed)),
		autoWalkRand:     rand.New(rand.NewSource(seed + 1)),
		pixels:           make([]byte, screenW*screenH*4),
	}
	g.listener = g.objects.spawn(g.listenerPosition())
	g.objects.place(g.listener, g.listenerPosition(), g.listenerForward())
	g.generateWalls()
	return g
}

func (g *Game) attachEngine(e *occlusion.Engine) error {
	g.engine = e
	e.BindListener(g.listener)
	for i := 0; i < initialEmitters; i++ {
		if err := g.spawnEmitter(); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) listenerPosition() occlusion.Vec3 {
	return occlusion.Vec3{X: g.lx, Z: g.lz}
}

func (g *Game) listenerForward() occlusion.Vec3 {
	return occlusion.Vec3{X: g.listenerForwardX, Z: g.listenerForwardZ}
}

// generateWalls rebuilds the level, keeping the listener and every emitter in
// open space.
func (g *Game) generateWalls() {
	p := scene.DefaultWallParams()
	p.Segments = 28
	p.MaxLen = 30
	p.Keep = append(p.Keep, g.listenerPosition())
	for _, em := range g.emitters {
		p.Keep = append(p.Keep, g.objects.Pose(em.handle).Position)
	}
	g.grid.GenerateWalls(g.levelRand, p)
	g.los.invalidate()
}

var errNoFreeCell = errors.New("no free cell for emitter")

// spawnEmitter places an emitter on a random open cell away from the listener.
func (g *Game) spawnEmitter() error {
	if len(g.emitters) >= maxEmitters {
		return nil
	}
	for attempt := 0; attempt < 200; attempt++ {
		x := 1 + g.levelRand.Intn(gridW-2)
		y := 1 + g.levelRand.Intn(gridH-2)
		if g.grid.IsWall(x, y) {
			continue
		}
		pos := g.grid.CellCenter(x, y)
		if math.Hypot(pos.X-g.lx, pos.Z-g.lz) < emitterClearance {
			continue
		}
		h := g.objects.spawn(pos)
		id, err := g.engine.Register(h, emitterMaxRange, emitterGain)
		if err != nil {
			g.objects.destroy(h)
			return fmt.Errorf("registering emitter: %w", err)
		}
		g.emitters = append(g.emitters, emitter{handle: h, target: id})
		return nil
	}
	return errNoFreeCell
}

// destroyLastEmitter removes the newest emitter from the world only; the
// engine notices on its next tick.
func (g *Game) destroyLastEmitter() {
	if len(g.emitters) == 0 {
		return
	}
	em := g.emitters[len(g.emitters)-1]
	g.emitters = g.emitters[:len(g.emitters)-1]
	g.objects.destroy(em.handle)
}

// unregisterLastEmitter detaches the newest emitter from the engine before
// removing it.
func (g *Game) unregisterLastEmitter() {
	if len(g.emitters) == 0 {
		return
	}
	em := g.emitters[len(g.emitters)-1]
	g.emitters = g.emitters[:len(g.emitters)-1]
	if err := g.engine.Unregister(em.target); err != nil {
		g.log.WithFields(logrus.Fields{
			"function": "Game.unregisterLastEmitter",
			"target":   em.target.String(),
			"error":    err.Error(),
		}).Warn("Unregister failed")
	}
	g.objects.destroy(em.handle)
}

// Update moves the listener and runs one occlusion tick.
func (g *Game) Update() error {
	dx, dz := g.movementVector()
	if g.pgoStop != nil && !g.autoWalk {
		g.pgoStop()
		g.pgoStop = nil
		return ebiten.Termination
	}
	g.moveListener(dx, dz)
	g.handleControls()

	g.rays = g.rays[:0]
	start := time.Now()
	g.lastStats = g.engine.Tick(1 / defaultTPS)
	g.lastTick = time.Since(start)

	if *occludeLineOfSightFlag {
		cx, cy := g.grid.CellAt(g.listenerPosition())
		g.los.refresh(g.grid, cx, cy, g.listenerForwardX, g.listenerForwardZ, *fovDegreesFlag)
	}
	return nil
}

func (g *Game) moveListener(dx, dz float64) {
	if dx == 0 && dz == 0 {
		return
	}
	nx := math.Max(0.5, math.Min(gridW-0.5, g.lx+dx))
	nz := math.Max(0.5, math.Min(gridH-0.5, g.lz+dz))
	if cx, cy := g.grid.CellAt(occlusion.Vec3{X: nx, Z: nz}); !g.grid.IsWall(cx, cy) {
		g.lx, g.lz = nx, nz
	}
	length := math.Hypot(dx, dz)
	g.listenerForwardX = dx / length
	g.listenerForwardZ = dz / length
	g.objects.place(g.listener, g.listenerPosition(), g.listenerForward())
}

// DrawRay collects probe rays for the next frame.
func (g *Game) DrawRay(origin, direction occlusion.Vec3, length float64, hit bool) {
	g.rays = append(g.rays, debugRay{
		origin: origin,
		end:    origin.Add(direction.Norm().Mul(length)),
		hit:    hit,
	})
}

// Close stops profiling and releases the engine.
func (g *Game) Close() {
	if g.pgoStop != nil {
		g.pgoStop()
		g.pgoStop = nil
	}
	if g.engine != nil {
		g.engine.Close()
	}
}
