package crash

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic value with the stack of the panicking
// goroutine captured at the recovery site.
type PanicError struct {
	Value  any
	frames []string
}

// NewPanicError captures the current goroutine's stack. Call it from the
// deferred function that recovered v.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, frames: describeGoroutineStack(debug.Stack())}
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "panic: " + safeMessage(err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error so its cause chain is captured too.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Stack returns the frame descriptors captured when the panic was recovered.
func (e *PanicError) Stack() []string {
	return e.frames
}

// FromPanic converts a recovered value into an error, preserving PanicError
// values that were re-panicked. Call it from the deferred function that
// recovered v so the captured stack includes the panic site.
func FromPanic(v any) error {
	if pe, ok := v.(*PanicError); ok {
		return pe
	}
	return NewPanicError(v)
}
