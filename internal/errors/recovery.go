package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// PanicError is returned by Recover when the guarded function panicked.
type PanicError struct {
	// Value is the value passed to panic
	Value any
	// Stack is the goroutine stack at the time of the panic
	Stack []string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover calls fn and converts a panic into a *PanicError carrying the
// stack, so that one failing trial does not take down its siblings.
func Recover(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{
				Value: rec,
				Stack: strings.Split(strings.TrimSpace(string(debug.Stack())), "\n"),
			}
		}
	}()

	return fn()
}
