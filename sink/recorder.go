package sink

import (
	"sync"

	"SoundOcclusion/occlusion"
)

// Values is the last state a Recorder saw for one target.
type Values struct {
	Cutoff, Gain           float64
	CutoffCalls, GainCalls int
}

// Recorder keeps the latest filter settings per target in memory. It is the
// headless sink used by tests and by the demo when audio is off.
type Recorder struct {
	mu       sync.Mutex
	values   map[occlusion.TargetID]*Values
	released []occlusion.TargetID
}

func NewRecorder() *Recorder {
	return &Recorder{values: make(map[occlusion.TargetID]*Values)}
}

func (r *Recorder) entry(id occlusion.TargetID) *Values {
	v, ok := r.values[id]
	if !ok {
		v = &Values{}
		r.values[id] = v
	}
	return v
}

func (r *Recorder) SetFilterCutoff(id occlusion.TargetID, hz float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.entry(id)
	v.Cutoff = hz
	v.CutoffCalls++
}

func (r *Recorder) SetGain(id occlusion.TargetID, gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.entry(id)
	v.Gain = gain
	v.GainCalls++
}

// Release forgets the target.
func (r *Recorder) Release(id occlusion.TargetID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, id)
	r.released = append(r.released, id)
}

// Values returns the last cutoff and gain written for id.
func (r *Recorder) Values(id occlusion.TargetID) (cutoff, gain float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	if !ok {
		return 0, 0, false
	}
	return v.Cutoff, v.Gain, true
}

// Entry returns a copy of everything recorded for id.
func (r *Recorder) Entry(id occlusion.TargetID) (Values, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	if !ok {
		return Values{}, false
	}
	return *v, true
}

// Released lists released targets in release order.
func (r *Recorder) Released() []occlusion.TargetID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]occlusion.TargetID(nil), r.released...)
}

// Len counts targets currently tracked.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}
