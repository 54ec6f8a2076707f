package optimization

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error carries exactly one of these so callers can
// match with errors.Is regardless of how deep the error was wrapped.
var (
	// ErrDimensionMismatch reports a vector whose length disagrees with an
	// established dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotReady reports a surrogate queried before successful training.
	ErrNotReady = errors.New("surrogate not ready")
	// ErrInsufficientTrainingData reports fewer training points than a model needs.
	ErrInsufficientTrainingData = errors.New("insufficient training data")
	// ErrInvalidArgument reports malformed configuration or input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNumericalFailure reports a singular or non-convergent numerical step.
	ErrNumericalFailure = errors.New("numerical failure")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind is one of the sentinel errors declared in this package.
	Kind error
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	msg := e.Message
	if e.Kind != nil {
		if msg == "" {
			msg = e.Kind.Error()
		} else {
			msg = fmt.Sprintf("%s: %s", e.Kind, msg)
		}
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the kind and the underlying error, so errors.Is matches both.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// NewErrorf creates a new optimization error of the given kind with a formatted message.
func NewErrorf(kind error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a kind and additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, kind error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// DimensionMismatch builds the error raised when a vector of length got is
// passed where length want is established.
func DimensionMismatch(want, got int) *Error {
	return NewErrorf(ErrDimensionMismatch, "expected %d, got %d", want, got)
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
