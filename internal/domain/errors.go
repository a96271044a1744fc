// Package domain holds the error taxonomy shared by the training engine.
package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks invalid or mismatched configuration: colliding qubit
// mappings, wrong parameter-vector length, missing backend. Configuration
// errors are fatal, raised before any circuit execution, and never retried.
var ErrConfiguration = errors.New("configuration error")

// ErrExecution marks a backend failure while running a circuit. Fatal for the
// current iteration; the wrapped message carries enough context (component,
// iteration, sample) to reproduce the failure.
var ErrExecution = errors.New("execution error")

// ConfigErrorf wraps ErrConfiguration with component context.
func ConfigErrorf(component, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s: %w", component, fmt.Sprintf(format, args...), ErrConfiguration)
}

// ExecErrorf wraps ErrExecution with component context.
func ExecErrorf(component, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s: %w", component, fmt.Sprintf(format, args...), ErrExecution)
}

// IsConfiguration reports whether err is (or wraps) a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsExecution reports whether err is (or wraps) an execution error.
func IsExecution(err error) bool {
	return errors.Is(err, ErrExecution)
}
