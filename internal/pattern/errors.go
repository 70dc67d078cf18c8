package pattern

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration      = errors.New("pattern duration must be > 0")
	ErrNoSteps              = errors.New("pattern needs at least one step")
	ErrUnknownStepMode      = errors.New("unknown step mode")
	ErrUnknownMutator       = errors.New("unknown step mutator")
	ErrUnknownGlobalMutator = errors.New("unknown global mutator")
	ErrUnknownTransition    = errors.New("unknown transition type")
	ErrMissingSpikeAt       = errors.New("spike mutator requires 'at'")
	ErrNonPositiveMean      = errors.New("pattern mean multiplier is not positive")
)

// ConfigError reports a construction-time problem with the location in the
// pattern config that caused it.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}
