package fault

import (
	"errors"
	"fmt"
)

// #region class
// Class enumerates the failure categories the harness distinguishes.
type Class string

const (
	ClassConfiguration   Class = "configuration"
	ClassValidation      Class = "validation"
	ClassRepairExhausted Class = "repair_exhausted"
	ClassEnvironment     Class = "environment"
	ClassModel           Class = "model"
	ClassCancelled       Class = "cancelled"
)

// Fatal reports whether a failure of this class must stop the process.
// Only configuration errors are fatal; everything else is scoped to a step or an episode.
func (c Class) Fatal() bool {
	return c == ClassConfiguration
}

// #endregion class

// #region error
// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Class, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

// Configf builds a configuration error with a formatted message.
func Configf(op, format string, args ...any) *Error {
	return &Error{Class: ClassConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// #endregion error

// #region helpers
// ClassOf returns the class of the first *Error in err's chain, or "" when unclassified.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ""
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}

// #endregion helpers
