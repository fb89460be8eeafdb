package main

import "flag"

// Command-line flags for the demo. Engine tuning lives in the JSON file named
// by -config; the flags below override individual fields of it.
var (
	configPathFlag = flag.String("config", "", "JSON file with occlusion engine settings")

	// visualizeFlag draws every probe ray.
	visualizeFlag = flag.Bool("visualize", false, "draw occlusion rays (green clear, red blocked)")

	instantFlag = flag.Bool("instant", false, "apply occlusion immediately instead of smoothing")

	workersFlag = flag.Int("workers", 0, "probe worker goroutines (0 keeps the configured value)")

	// audioFlag selects the output backend.
	audioFlag = flag.String("audio", "ebiten", "audio backend: ebiten, beep or off")

	loopWavFlag = flag.String("loop-wav", "", "WAV file looped by every emitter (defaults to a synthesized saw tone)")

	openCLFlag = flag.Bool("opencl", false, "trace batched rays on an OpenCL device (requires -tags opencl)")

	logLevelFlag = flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")

	seedFlag = flag.Int64("seed", 0, "level seed (0 picks one from the clock)")

	// recordDefaultPGO triggers a scripted walk to produce default.pgo.
	recordDefaultPGO = flag.Bool("record-default-pgo", false, "walk randomly for 15s while capturing default.pgo")

	cpuProfileFlag = flag.String("cpuprofile", "", "write a CPU profile to this file for the whole session")

	// occludeLineOfSightFlag hides cells outside the listener's line of sight.
	occludeLineOfSightFlag = flag.Bool("occlude-line-of-sight", false, "shade cells that are not in the listener's line of sight")

	fovDegreesFlag = flag.Float64("fov-deg", 120.0, "field of view angle for line-of-sight shading (degrees)")

	// debugFlag enables the stats overlay.
	debugFlag = flag.Bool("debug", true, "show FPS and occlusion stats overlay")
)
