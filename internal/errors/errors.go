// Package errors reports failed optimization runs with enough context to
// reproduce them.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// RunError describes the failure of one trial of an experiment.
type RunError struct {
	// Method is the optimizer name
	Method string
	// Function is the objective function name
	Function string
	// Dim is the problem dimensionality
	Dim int
	// Trial is the zero-based trial index
	Trial int
	// Err is the underlying error
	Err error
	// Stack is the stack trace captured where the error was created
	Stack []string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	var builder strings.Builder

	builder.WriteString("run failed")
	if e.Method != "" {
		builder.WriteString(": method=")
		builder.WriteString(e.Method)
	}
	if e.Function != "" {
		fmt.Fprintf(&builder, ", function=%s, dim=%d", e.Function, e.Dim)
	}
	fmt.Fprintf(&builder, ", trial=%d", e.Trial)

	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}

	return builder.String()
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack trace as a slice of strings.
func (e *RunError) StackTrace() []string {
	return e.Stack
}

// NewRunError wraps err with the identity of the run that produced it. The
// stack of a wrapped *PanicError is kept; otherwise the caller's stack is
// captured. It returns nil if err is nil.
func NewRunError(err error, method, function string, dim, trial int) *RunError {
	if err == nil {
		return nil
	}

	stack := getStackTrace()
	var p *PanicError
	if errors.As(err, &p) {
		stack = p.Stack
	}

	return &RunError{
		Method:   method,
		Function: function,
		Dim:      dim,
		Trial:    trial,
		Err:      err,
		Stack:    stack,
	}
}

// IsRunError returns the *RunError in err's chain, if any.
func IsRunError(err error) (*RunError, bool) {
	var e *RunError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, getStackTrace, and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}

	return stack
}
