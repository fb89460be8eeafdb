package occlusion

import "fmt"

// TargetID addresses a target in an engine's table. The low 32 bits index the
// slot and the high 32 bits carry the slot generation, so an ID held after
// unregistration never aliases a newer target. The zero value is never issued.
type TargetID uint64

func makeTargetID(index int, gen uint32) TargetID {
	return TargetID(uint64(gen)<<32 | uint64(uint32(index)))
}

func (id TargetID) index() int  { return int(uint32(id)) }
func (id TargetID) gen() uint32 { return uint32(id >> 32) }

func (id TargetID) String() string {
	return fmt.Sprintf("target#%d.%d", id.index(), id.gen())
}

// Target is the smoothing state of one registered emitter.
type Target struct {
	ID      TargetID
	Emitter Handle

	// OriginalGain is captured at registration and never recomputed.
	OriginalGain float64
	MaxRange     float64

	CurrentCutoff float64
	CurrentGain   float64
	TargetCutoff  float64
	TargetGain    float64

	// Visibility is the ratio from the last pass that evaluated this target.
	Visibility float64
	// Culled is set when the last pass skipped the target for range.
	Culled bool
}

func newTarget(emitter Handle, maxRange, originalGain float64) Target {
	return Target{
		Emitter:       emitter,
		OriginalGain:  originalGain,
		MaxRange:      maxRange,
		CurrentCutoff: MaxFrequency,
		CurrentGain:   originalGain,
		TargetCutoff:  MaxFrequency,
		TargetGain:    originalGain,
		Visibility:    1,
	}
}

// retarget maps a visibility ratio onto the desired cutoff and gain.
func (t *Target) retarget(visibility float64, cfg Config) {
	t.Visibility = visibility
	t.TargetCutoff = Lerp(cfg.MinFrequency, MaxFrequency, visibility)
	t.TargetGain = Lerp(t.OriginalGain*cfg.MinVolumeFactor, t.OriginalGain, visibility)
}

// rebound re-derives the targets from the last visibility under cfg and pulls
// the current values into cfg's ranges.
func (t *Target) rebound(cfg Config) {
	t.retarget(t.Visibility, cfg)
	t.CurrentCutoff = clampRange(t.CurrentCutoff, cfg.MinFrequency, MaxFrequency)
	t.CurrentGain = clampRange(t.CurrentGain, t.OriginalGain*cfg.MinVolumeFactor, t.OriginalGain)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// approach moves current values toward targets by alpha in [0, 1]; alpha 1
// lands on the targets exactly.
func (t *Target) approach(alpha float64) {
	if alpha >= 1 {
		t.snap()
		return
	}
	t.CurrentCutoff += (t.TargetCutoff - t.CurrentCutoff) * alpha
	t.CurrentGain += (t.TargetGain - t.CurrentGain) * alpha
}

func (t *Target) snap() {
	t.CurrentCutoff = t.TargetCutoff
	t.CurrentGain = t.TargetGain
}

type slot struct {
	target Target
	gen    uint32
	live   bool
}

// targetTable is an arena of targets addressed by generational IDs. Iteration
// follows slot order, which keeps ticks deterministic.
type targetTable struct {
	slots []slot
	free  []int
	count int
}

func (tb *targetTable) insert(t Target) TargetID {
	var idx int
	if n := len(tb.free); n > 0 {
		idx = tb.free[n-1]
		tb.free = tb.free[:n-1]
	} else {
		idx = len(tb.slots)
		tb.slots = append(tb.slots, slot{})
	}
	s := &tb.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.ID = makeTargetID(idx, s.gen)
	s.target = t
	s.live = true
	tb.count++
	return t.ID
}

func (tb *targetTable) get(id TargetID) *Target {
	idx := id.index()
	if idx < 0 || idx >= len(tb.slots) {
		return nil
	}
	s := &tb.slots[idx]
	if !s.live || s.gen != id.gen() {
		return nil
	}
	return &s.target
}

func (tb *targetTable) remove(id TargetID) (Target, bool) {
	t := tb.get(id)
	if t == nil {
		return Target{}, false
	}
	removed := *t
	s := &tb.slots[id.index()]
	s.live = false
	s.target = Target{}
	tb.free = append(tb.free, id.index())
	tb.count--
	return removed, true
}

func (tb *targetTable) each(fn func(t *Target)) {
	for i := range tb.slots {
		if tb.slots[i].live {
			fn(&tb.slots[i].target)
		}
	}
}

func (tb *targetTable) len() int { return tb.count }
