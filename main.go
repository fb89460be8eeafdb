package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sirupsen/logrus"

	"SoundOcclusion/occlusion"
	"SoundOcclusion/scene"
	"SoundOcclusion/sink"
)

func main() {
	flag.Parse()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevelFlag); err != nil {
		log.WithError(err).Warn("Unknown log level, using info")
	} else {
		log.SetLevel(level)
	}
	if err := run(log); err != nil {
		log.WithError(err).Error("Demo failed")
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	if *cpuProfileFlag != "" {
		stop, err := startCPUProfile(*cpuProfileFlag, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := newGame(seed, log)

	var query occlusion.SceneQuery = g.grid
	if *openCLFlag {
		clg, err := scene.NewCLGrid(g.grid)
		if err != nil {
			log.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Warn("OpenCL unavailable, tracing rays on the CPU")
		} else {
			log.WithFields(logrus.Fields{
				"function": "run",
				"device":   clg.DeviceName(),
			}).Info("OpenCL ray batches enabled")
			defer clg.Close()
			query = clg
		}
	}

	out, closeSink, err := openSink(log)
	if err != nil {
		return err
	}
	defer closeSink()

	engine, err := occlusion.NewEngine(cfg, query, g.objects, out,
		occlusion.WithLogger(log),
		occlusion.WithRayDrawer(g),
	)
	if err != nil {
		return err
	}
	defer g.Close()
	if err := g.attachEngine(engine); err != nil {
		return err
	}

	if *recordDefaultPGO {
		stop, err := startCPUProfile("default.pgo", log)
		if err != nil {
			return err
		}
		g.pgoStop = stop
		g.enableAutoWalk(pgoRecordDuration)
	}

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("Sound Occlusion")
	ebiten.SetTPS(int(defaultTPS))
	if err := ebiten.RunGame(g); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

// loadEngineConfig reads -config and applies the flag overrides on top.
func loadEngineConfig() (occlusion.Config, error) {
	cfg := occlusion.DefaultConfig()
	if *configPathFlag != "" {
		loaded, err := occlusion.LoadConfig(*configPathFlag)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if *instantFlag {
		cfg.Mode = occlusion.ModeInstant
	}
	if *visualizeFlag {
		cfg.Visualize = true
	}
	if *workersFlag > 0 {
		cfg.Workers = *workersFlag
	}
	return cfg, cfg.Validate()
}

func loopSamples(log *logrus.Logger) []float32 {
	if *loopWavFlag != "" {
		samples, err := sink.LoadLoopSamples(audioSampleRate, *loopWavFlag)
		if err == nil {
			return samples
		}
		log.WithFields(logrus.Fields{
			"function": "loopSamples",
			"path":     *loopWavFlag,
			"error":    err.Error(),
		}).Warn("Loop WAV unusable, falling back to a saw tone")
	}
	return sink.SawLoop(audioSampleRate, loopToneHz, loopToneAmplitude)
}

// openSink builds the audio backend chosen by -audio.
func openSink(log *logrus.Logger) (occlusion.Sink, func(), error) {
	switch strings.ToLower(*audioFlag) {
	case "ebiten":
		ctx := audio.NewContext(audioSampleRate)
		s := sink.NewEbiten(ctx, loopSamples(log), audioBufferDuration, log)
		return s, s.Close, nil
	case "beep":
		rate := beep.SampleRate(audioSampleRate)
		if err := speaker.Init(rate, rate.N(audioBufferDuration)); err != nil {
			return nil, nil, fmt.Errorf("initializing speaker: %w", err)
		}
		s := sink.NewBeep(rate, sink.LoopSource(loopSamples(log)))
		speaker.Play(s)
		return s, speaker.Clear, nil
	case "off", "none", "":
		return sink.NewRecorder(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown audio backend %q", *audioFlag)
	}
}
