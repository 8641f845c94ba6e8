// Package errs defines the error taxonomy shared by every backtest stage
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when two price series have no date in common
	ErrEmptyInput = errors.New("empty input")

	// ErrInsufficientData is returned when a series is too short for a rolling window or a statistical test
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDivideByZero is returned for zero-variance or zero-length contexts that cannot be coerced
	ErrDivideByZero = errors.New("divide by zero")

	// ErrConfiguration is returned for invalid parameters or missing required settings
	ErrConfiguration = errors.New("configuration error")
)

// StageError identifies which stage and which precondition failed.
type StageError struct {
	Stage        string
	Precondition string
	Err          error
}

func (e *StageError) Error() string {
	if e.Precondition == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Precondition, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage wraps err with the stage name and the violated precondition.
func Stage(stage, precondition string, err error) error {
	return &StageError{Stage: stage, Precondition: precondition, Err: err}
}

// Configf builds a configuration error with a formatted message.
func Configf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
