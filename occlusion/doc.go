// Package occlusion estimates how much scene geometry blocks each sound
// emitter from a listener and turns that into a low-pass cutoff and a gain.
//
// Every frame the Engine casts a small fan of rays from the listener toward
// each registered emitter. The fraction of rays that arrive unobstructed is the
// emitter's visibility; visibility 1 maps to a fully open 22 kHz cutoff and the
// emitter's original gain, visibility 0 maps to Config.MinFrequency and
// OriginalGain*Config.MinVolumeFactor. Current values then follow those targets
// either instantly or by exponential smoothing on a fixed sub-step.
//
// The host supplies three collaborators: a SceneQuery for ray tests, a
// TransformProvider for listener and emitter poses, and a Sink that receives
// the resulting cutoff and gain per target.
package occlusion
