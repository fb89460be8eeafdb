package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/sirupsen/logrus"
)

// startCPUProfile writes a CPU profile to path until the returned stop
// function runs. stop is safe to call more than once.
func startCPUProfile(path string, log *logrus.Logger) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating profile %q: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	log.WithFields(logrus.Fields{
		"function": "startCPUProfile",
		"path":     path,
	}).Info("CPU profiling started")
	var once sync.Once
	stop := func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			if err := f.Close(); err != nil {
				log.WithFields(logrus.Fields{
					"function": "startCPUProfile",
					"path":     path,
					"error":    err.Error(),
				}).Warn("Closing CPU profile failed")
				return
			}
			log.WithFields(logrus.Fields{
				"function": "startCPUProfile",
				"path":     path,
			}).Info("CPU profile written")
		})
	}
	return stop, nil
}
