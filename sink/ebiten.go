package sink

import (
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sirupsen/logrus"

	"SoundOcclusion/occlusion"
)

const (
	pcm16MaxValue = 32767
	pcm16MinValue = -32768
)

// loopStream renders a mono loop as 16-bit little-endian stereo PCM, filtered
// and scaled by its controls on every read.
type loopStream struct {
	mu         sync.Mutex
	samples    []float32
	pos        int
	sampleRate int
	filter     LowPass
	ctrl       *controls
}

func newLoopStream(samples []float32, start, sampleRate int, ctrl *controls) *loopStream {
	if len(samples) > 0 {
		start %= len(samples)
	} else {
		start = 0
	}
	return &loopStream{samples: samples, pos: start, sampleRate: sampleRate, ctrl: ctrl}
}

func (s *loopStream) Read(p []byte) (int, error) {
	// Whole stereo frames only (4 bytes per frame).
	frameBytes := len(p) - len(p)%4
	if frameBytes == 0 {
		return 0, nil
	}
	cutoff, gain := s.ctrl.load()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.SetCutoff(cutoff, s.sampleRate)
	for i := 0; i < frameBytes; i += 4 {
		var x float64
		if len(s.samples) > 0 {
			x = float64(s.samples[s.pos])
			s.pos++
			if s.pos >= len(s.samples) {
				s.pos = 0
			}
		}
		l, r := s.filter.Process(x*gain, x*gain)
		putPCM16(p[i:i+2], l)
		putPCM16(p[i+2:i+4], r)
	}
	return frameBytes, nil
}

func putPCM16(dst []byte, v float64) {
	scaled := v * pcm16MaxValue
	if scaled > pcm16MaxValue {
		scaled = pcm16MaxValue
	} else if scaled < pcm16MinValue {
		scaled = pcm16MinValue
	}
	s := int16(scaled)
	dst[0] = byte(s)
	dst[1] = byte(s >> 8)
}

type ebitenVoice struct {
	ctrl   *controls
	stream *loopStream
	player *audio.Player
}

// Ebiten plays one looping voice per target through an ebiten audio context.
// Voices start on the first setting the engine pushes for a target. With a nil
// context the sink tracks settings without producing sound.
type Ebiten struct {
	ctx        *audio.Context
	loop       []float32
	bufferSize time.Duration
	log        *logrus.Logger

	mu      sync.Mutex
	voices  map[occlusion.TargetID]*ebitenVoice
	spawned int
}

// NewEbiten plays loop (mono samples at the context's rate) for every target.
func NewEbiten(ctx *audio.Context, loop []float32, bufferSize time.Duration, log *logrus.Logger) *Ebiten {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ebiten{
		ctx:        ctx,
		loop:       loop,
		bufferSize: bufferSize,
		log:        log,
		voices:     make(map[occlusion.TargetID]*ebitenVoice),
	}
}

func (s *Ebiten) sampleRate() int {
	if s.ctx == nil {
		return 0
	}
	return s.ctx.SampleRate()
}

func (s *Ebiten) voice(id occlusion.TargetID) *ebitenVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.voices[id]; ok {
		return v
	}
	ctrl := newControls()
	// Stagger loop phase so co-located emitters do not sum coherently.
	start := 0
	if n := len(s.loop); n > 0 {
		start = s.spawned * (n / 5)
	}
	s.spawned++
	v := &ebitenVoice{ctrl: ctrl, stream: newLoopStream(s.loop, start, s.sampleRate(), ctrl)}
	if s.ctx != nil {
		player, err := s.ctx.NewPlayer(v.stream)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "Ebiten.voice",
				"target":   id.String(),
				"error":    err.Error(),
			}).Warn("Audio player creation failed")
		} else {
			if s.bufferSize > 0 {
				player.SetBufferSize(s.bufferSize)
			}
			player.Play()
			v.player = player
		}
	}
	s.voices[id] = v
	return v
}

func (s *Ebiten) SetFilterCutoff(id occlusion.TargetID, hz float64) {
	s.voice(id).ctrl.setCutoff(hz)
}

func (s *Ebiten) SetGain(id occlusion.TargetID, gain float64) {
	s.voice(id).ctrl.setGain(gain)
}

// Release stops and closes the target's player.
func (s *Ebiten) Release(id occlusion.TargetID) {
	s.mu.Lock()
	v, ok := s.voices[id]
	delete(s.voices, id)
	s.mu.Unlock()
	if ok {
		s.closeVoice(id, v)
	}
}

func (s *Ebiten) closeVoice(id occlusion.TargetID, v *ebitenVoice) {
	if v.player == nil {
		return
	}
	if err := v.player.Close(); err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "Ebiten.Release",
			"target":   id.String(),
			"error":    err.Error(),
		}).Warn("Audio player close failed")
	}
}

// Voices counts live voices.
func (s *Ebiten) Voices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// Close releases every voice.
func (s *Ebiten) Close() {
	s.mu.Lock()
	voices := s.voices
	s.voices = make(map[occlusion.TargetID]*ebitenVoice)
	s.mu.Unlock()
	for id, v := range voices {
		s.closeVoice(id, v)
	}
}
