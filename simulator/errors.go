package simulator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies simulation errors so callers can map them to exit codes
type ErrorKind int

const (
	ErrKindInvalidConfig ErrorKind = iota // Non-positive or malformed parameter
	ErrKindUnstable                       // Arrival rate >= service rate
)

// SimError is a custom error type for simulation errors
type SimError struct {
	Kind    ErrorKind
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("simulation error: %s", e.Message)
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return SimError{Kind: ErrKindInvalidConfig, Message: fmt.Sprintf("invalid config: %s", msg)}
}

// ErrUnstable creates an error for a queue whose arrival rate is not below its service rate
func ErrUnstable(arrivalRate, serviceRate float64) error {
	return SimError{
		Kind: ErrKindUnstable,
		Message: fmt.Sprintf("unstable system: serviceRate (%g) must be greater than arrivalRate (%g)",
			serviceRate, arrivalRate),
	}
}

// IsInvalidConfig reports whether err (or anything it wraps) rejects a
// non-positive or malformed parameter. Unstable rates are reported by IsUnstable.
func IsInvalidConfig(err error) bool {
	var simErr SimError
	return errors.As(err, &simErr) && simErr.Kind == ErrKindInvalidConfig
}

// IsUnstable reports whether err was caused by lambda >= mu
func IsUnstable(err error) bool {
	var simErr SimError
	return errors.As(err, &simErr) && simErr.Kind == ErrKindUnstable
}
