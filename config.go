package main

import "time"

// Demo layout, pacing, and audio constants. Engine behaviour is configured
// through occlusion.Config instead.
const (
	gridW, gridH        = 96, 72
	cellPixels          = 8
	screenW, screenH    = gridW * cellPixels, gridH * cellPixels
	defaultTPS          = 60.0
	moveSpeed           = 0.12
	listenerRad         = 4
	emitterRad          = 5
	earOffsetPixels     = 14
	initialEmitters     = 4
	maxEmitters         = 12
	emitterMaxRange     = 60.0
	emitterGain         = 0.8
	emitterClearance    = 8
	pgoRecordDuration   = 15 * time.Second
	audioSampleRate     = 48000
	audioBufferDuration = 80 * time.Millisecond
	loopToneHz          = 110
	loopToneAmplitude   = 0.2
)
