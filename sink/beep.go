package sink

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"SoundOcclusion/occlusion"
)

// SourceFunc builds the dry signal for a newly seen target.
type SourceFunc func(id occlusion.TargetID) beep.Streamer

// LoopSource loops mono samples forever, giving each target a different start
// phase.
func LoopSource(samples []float32) SourceFunc {
	var spawned int
	return func(occlusion.TargetID) beep.Streamer {
		start := 0
		if n := len(samples); n > 0 {
			start = spawned * (n / 5) % n
		}
		spawned++
		return &sampleLoop{samples: samples, pos: start}
	}
}

type sampleLoop struct {
	samples []float32
	pos     int
}

func (s *sampleLoop) Stream(samples [][2]float64) (n int, ok bool) {
	if len(s.samples) == 0 {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}
	for i := range samples {
		v := float64(s.samples[s.pos])
		samples[i][0], samples[i][1] = v, v
		s.pos++
		if s.pos >= len(s.samples) {
			s.pos = 0
		}
	}
	return len(samples), true
}

func (s *sampleLoop) Err() error { return nil }

// beepVoice filters its source and applies gain through effects.Volume. All
// parameter changes are picked up on the streaming goroutine.
type beepVoice struct {
	ctrl   *controls
	done   atomic.Bool
	rate   int
	src    beep.Streamer
	filter LowPass
	volume *effects.Volume
}

func newBeepVoice(src beep.Streamer, rate beep.SampleRate) *beepVoice {
	v := &beepVoice{ctrl: newControls(), rate: int(rate), src: src}
	v.volume = &effects.Volume{Streamer: filtered{v}, Base: 2}
	return v
}

func (v *beepVoice) Stream(samples [][2]float64) (n int, ok bool) {
	if v.done.Load() {
		return 0, false
	}
	cutoff, gain := v.ctrl.load()
	v.filter.SetCutoff(cutoff, v.rate)
	// math.Log2(0) is -Inf, so zero gain is expressed as Silent.
	if gain <= 0 {
		v.volume.Volume = 0
		v.volume.Silent = true
	} else {
		v.volume.Volume = math.Log2(gain)
		v.volume.Silent = false
	}
	return v.volume.Stream(samples)
}

func (v *beepVoice) Err() error { return v.src.Err() }

type filtered struct{ v *beepVoice }

func (f filtered) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.v.src.Stream(samples)
	for i := range samples[:n] {
		samples[i][0], samples[i][1] = f.v.filter.Process(samples[i][0], samples[i][1])
	}
	return n, ok
}

func (f filtered) Err() error { return f.v.src.Err() }

// Beep mixes one voice per target into a single beep.Streamer. Hand the Beep
// itself to speaker.Play or any other consumer.
type Beep struct {
	rate   beep.SampleRate
	source SourceFunc

	mu     sync.Mutex
	mixer  *beep.Mixer
	voices map[occlusion.TargetID]*beepVoice
}

func NewBeep(rate beep.SampleRate, source SourceFunc) *Beep {
	return &Beep{
		rate:   rate,
		source: source,
		mixer:  &beep.Mixer{},
		voices: make(map[occlusion.TargetID]*beepVoice),
	}
}

func (b *Beep) voice(id occlusion.TargetID) *beepVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.voices[id]; ok {
		return v
	}
	v := newBeepVoice(b.source(id), b.rate)
	b.voices[id] = v
	b.mixer.Add(v)
	return v
}

func (b *Beep) SetFilterCutoff(id occlusion.TargetID, hz float64) {
	b.voice(id).ctrl.setCutoff(hz)
}

func (b *Beep) SetGain(id occlusion.TargetID, gain float64) {
	b.voice(id).ctrl.setGain(gain)
}

// Release drains the target's voice; the mixer drops it on its next pass.
func (b *Beep) Release(id occlusion.TargetID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.voices[id]; ok {
		v.done.Store(true)
		delete(b.voices, id)
	}
}

// Voices counts live voices.
func (b *Beep) Voices() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.voices)
}

// Stream mixes every live voice.
func (b *Beep) Stream(samples [][2]float64) (n int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mixer.Stream(samples)
}

func (b *Beep) Err() error { return nil }
