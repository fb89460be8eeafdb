package occlusion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid occlusion configuration")
	// ErrUnknownTarget is returned when a TargetID does not address a live target.
	ErrUnknownTarget = errors.New("unknown occlusion target")
	// ErrStaleReference marks a target whose host emitter no longer exists.
	ErrStaleReference = errors.New("stale emitter reference")
	// ErrDuplicateEmitter is returned when an emitter already has a target.
	ErrDuplicateEmitter = errors.New("emitter already registered")
)

// ConfigError reports a rejected tunable or registration argument.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func configErr(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
