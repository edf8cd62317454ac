package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks unsupported parameters or malformed input tables.
	ErrConfiguration = errors.New("configuration error")
	// ErrNoSignal marks a raw signal series without any BUY or without any SELL.
	ErrNoSignal = errors.New("no signal")
)

// ConfigurationError describes a rejected parameter.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, value, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%s: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NoSignalError reports which side is missing from a raw signal series.
type NoSignalError struct {
	Missing    Signal
	Thresholds string
}

func (e *NoSignalError) Error() string {
	return fmt.Sprintf("no %s signals in raw series for thresholds %s", e.Missing, e.Thresholds)
}

func (e *NoSignalError) Is(target error) bool { return target == ErrNoSignal }

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// WrapStage returns nil for a nil err, otherwise a StageError.
func WrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
