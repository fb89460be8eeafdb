package sink

import (
	"math"
	"sync/atomic"

	"SoundOcclusion/occlusion"
)

// LowPass is a stereo one-pole low-pass filter. A cutoff at or above the
// audible ceiling (or the Nyquist rate) passes samples through untouched.
type LowPass struct {
	cutoff     float64
	sampleRate int
	coeff      float64
	state      [2]float64
}

// SetCutoff retunes the filter. Repeated calls with the same values are free.
func (f *LowPass) SetCutoff(hz float64, sampleRate int) {
	if hz == f.cutoff && sampleRate == f.sampleRate && f.coeff != 0 {
		return
	}
	f.cutoff = hz
	f.sampleRate = sampleRate
	nyquist := float64(sampleRate) / 2
	switch {
	case sampleRate <= 0 || hz >= occlusion.MaxFrequency || hz >= nyquist:
		f.coeff = 1
	case hz <= 0:
		f.coeff = 1 - math.Exp(-2*math.Pi*occlusion.MinAudibleCutoff/float64(sampleRate))
	default:
		f.coeff = 1 - math.Exp(-2*math.Pi*hz/float64(sampleRate))
	}
}

// Process filters one stereo frame.
func (f *LowPass) Process(l, r float64) (float64, float64) {
	if f.coeff >= 1 {
		f.state[0], f.state[1] = l, r
		return l, r
	}
	f.state[0] += f.coeff * (l - f.state[0])
	f.state[1] += f.coeff * (r - f.state[1])
	return f.state[0], f.state[1]
}

// controls carries one target's settings from the engine goroutine to an
// audio goroutine.
type controls struct {
	cutoff atomic.Uint64
	gain   atomic.Uint64
}

func newControls() *controls {
	c := &controls{}
	c.setCutoff(occlusion.MaxFrequency)
	c.setGain(1)
	return c
}

func (c *controls) setCutoff(hz float64) { c.cutoff.Store(math.Float64bits(hz)) }
func (c *controls) setGain(g float64)    { c.gain.Store(math.Float64bits(g)) }

func (c *controls) load() (cutoff, gain float64) {
	return math.Float64frombits(c.cutoff.Load()), math.Float64frombits(c.gain.Load())
}
