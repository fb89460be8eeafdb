package occlusion

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Cutoff and frequency limits shared by all targets.
const (
	MaxFrequency      = 22000.0
	MinAudibleCutoff  = 20.0
	defaultFixedStep  = 1.0 / 50.0
	defaultMaxSubStep = 8
)

// Mode selects how current values follow their targets.
type Mode int

const (
	// ModeInterpolated approaches targets exponentially on the fixed sub-step.
	ModeInterpolated Mode = iota
	// ModeInstant copies targets into current values during the visibility pass.
	ModeInstant
)

func (m Mode) String() string {
	switch m {
	case ModeInterpolated:
		return "interpolated"
	case ModeInstant:
		return "instant"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode accepts "interpolated" or "instant" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interpolated", "":
		return ModeInterpolated, nil
	case "instant":
		return ModeInstant, nil
	}
	return 0, configErr("mode", s, "expected interpolated or instant")
}

// LayerMask selects occluder categories; bit i enables layer i.
type LayerMask uint32

// AllLayers matches every occluder.
const AllLayers = LayerMask(math.MaxUint32)

// Config holds the engine tunables. Every field is validated once in NewEngine
// or SetConfig and never re-checked per tick.
type Config struct {
	InterpolationSpeed float64   `json:"interpolation_speed"`
	MinVolumeFactor    float64   `json:"min_volume_factor"`
	MinFrequency       float64   `json:"min_frequency"`
	ConeAngleDeg       float64   `json:"cone_angle_deg"`
	RayCount           int       `json:"ray_count"`
	OccluderLayers     LayerMask `json:"occluder_layers"`
	Mode               Mode      `json:"mode"`
	Visualize          bool      `json:"visualize"`

	// FixedStep is the smoothing sub-step in seconds.
	FixedStep float64 `json:"fixed_step"`
	// MaxSubSteps bounds the sub-steps run per Advance; leftover time is dropped.
	MaxSubSteps int `json:"max_sub_steps"`
	// Workers > 1 evaluates probes for different targets concurrently.
	Workers int `json:"workers"`
}

// DefaultConfig returns the tunables used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InterpolationSpeed: 1.0,
		MinVolumeFactor:    0.7,
		MinFrequency:       500,
		ConeAngleDeg:       45,
		RayCount:           10,
		OccluderLayers:     AllLayers,
		Mode:               ModeInterpolated,
		FixedStep:          defaultFixedStep,
		MaxSubSteps:        defaultMaxSubStep,
		Workers:            1,
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case !(c.InterpolationSpeed > 0) || math.IsInf(c.InterpolationSpeed, 0):
		return configErr("interpolation_speed", c.InterpolationSpeed, "must be a finite value > 0")
	case !(c.MinVolumeFactor >= 0 && c.MinVolumeFactor <= 1):
		return configErr("min_volume_factor", c.MinVolumeFactor, "must be within [0, 1]")
	case !(c.MinFrequency >= MinAudibleCutoff && c.MinFrequency < MaxFrequency):
		return configErr("min_frequency", c.MinFrequency, fmt.Sprintf("must be within [%g, %g)", MinAudibleCutoff, MaxFrequency))
	case !(c.ConeAngleDeg > 0 && c.ConeAngleDeg < 90):
		return configErr("cone_angle_deg", c.ConeAngleDeg, "must be within (0, 90)")
	case c.RayCount < 1:
		return configErr("ray_count", c.RayCount, "must be >= 1")
	case c.Mode != ModeInterpolated && c.Mode != ModeInstant:
		return configErr("mode", c.Mode, "unknown mode")
	case !(c.FixedStep > 0) || math.IsInf(c.FixedStep, 0):
		return configErr("fixed_step", c.FixedStep, "must be a finite value > 0")
	case c.MaxSubSteps < 1:
		return configErr("max_sub_steps", c.MaxSubSteps, "must be >= 1")
	case c.Workers < 1:
		return configErr("workers", c.Workers, "must be >= 1")
	}
	return nil
}

// LoadConfig reads a JSON file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading %q: %w", path, err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating %q: %w", path, err)
	}
	return cfg, nil
}
