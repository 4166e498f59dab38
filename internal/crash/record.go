package crash

import (
	"bufio"
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

const (
	noStackPlaceholder = "(no stack trace available)"
	truncatedMarker    = "[cause chain truncated: cycle detected]"
	stackIndent        = "   "
)

// Frame is one link of a cause chain.
type Frame struct {
	Type    string
	Message string
	Stack   []string
}

// Record is a captured cause chain, outermost failure first.
// A Record is never mutated after Capture returns.
type Record struct {
	Frames []Frame
	// Truncated is set when the chain looped back onto an error already seen.
	Truncated bool
}

// stackTracer is implemented by github.com/pkg/errors values.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackProvider is implemented by errors that carry pre-rendered frames,
// such as PanicError.
type stackProvider interface {
	Stack() []string
}

// Format renders the cause chain of err. Identical chains always yield
// identical text.
func Format(err error) string {
	return Capture(err).String()
}

// Capture walks err's cause chain. It terminates on self-referential chains
// and substitutes placeholders for frames that cannot be read.
func Capture(err error) Record {
	var rec Record
	seen := newVisitSet()
	for cur := err; cur != nil; cur = nextCause(cur) {
		if !seen.add(cur) {
			rec.Truncated = true
			break
		}
		rec.Frames = append(rec.Frames, captureFrame(cur))
	}
	return rec
}

// String renders the record: one block per frame, each a header line, the
// indented stack descriptors and a blank separator line.
func (r Record) String() string {
	var b strings.Builder
	for _, f := range r.Frames {
		b.WriteString(f.Type)
		b.WriteString(": ")
		b.WriteString(f.Message)
		b.WriteByte('\n')
		if len(f.Stack) == 0 {
			b.WriteString(stackIndent + noStackPlaceholder + "\n")
		}
		for _, line := range f.Stack {
			b.WriteString(stackIndent)
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if r.Truncated {
		b.WriteString(truncatedMarker + "\n")
	}
	return b.String()
}

// Messages returns each frame's message, outermost first.
func (r Record) Messages() []string {
	out := make([]string, 0, len(r.Frames))
	for _, f := range r.Frames {
		out = append(out, f.Message)
	}
	return out
}

// nextCause follows Unwrap() error, then pkg/errors' Cause(), then the first
// non-nil member of Unwrap() []error. A panicking Unwrap ends the chain.
func nextCause(err error) (next error) {
	defer func() {
		if recover() != nil {
			next = nil
		}
	}()

	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if inner != nil {
				return inner
			}
		}
	}
	return nil
}

func captureFrame(err error) Frame {
	return Frame{
		Type:    fmt.Sprintf("%T", err),
		Message: safeMessage(err),
		Stack:   safeStack(err),
	}
}

func safeMessage(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("(error message unavailable: %v)", r)
		}
	}()
	return err.Error()
}

func safeStack(err error) (lines []string) {
	defer func() {
		if recover() != nil {
			lines = nil
		}
	}()

	switch e := err.(type) {
	case stackProvider:
		return e.Stack()
	case stackTracer:
		return describeStackTrace(e.StackTrace())
	}
	return nil
}

func describeStackTrace(st errors.StackTrace) []string {
	out := make([]string, 0, len(st))
	for _, f := range st {
		pc := uintptr(f) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			out = append(out, "at unknown")
			continue
		}
		file, line := fn.FileLine(pc)
		out = append(out, fmt.Sprintf("at %s (%s:%d)", fn.Name(), file, line))
	}
	return out
}

// describeGoroutineStack converts runtime/debug.Stack output into frame
// descriptors. Frames up to and including the runtime panic call are dropped
// so the first descriptor is the panic site.
func describeGoroutineStack(raw []byte) []string {
	var (
		out []string
		fn  string
	)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "" || strings.HasPrefix(line, "goroutine "):
			continue
		case strings.HasPrefix(line, "\t"):
			if fn == "" {
				continue
			}
			loc := strings.TrimSpace(line)
			if i := strings.LastIndex(loc, " +0x"); i > 0 {
				loc = loc[:i]
			}
			if strings.HasPrefix(fn, "panic(") || fn == "panic" {
				out = out[:0]
			} else {
				out = append(out, fmt.Sprintf("at %s (%s)", fn, loc))
			}
			fn = ""
		default:
			fn = stripArgs(line)
		}
	}
	return out
}

// stripArgs turns "pkg.(*T).M(0xc000010000, 0x1)" into "pkg.(*T).M".
func stripArgs(fn string) string {
	if strings.HasPrefix(fn, "created by ") {
		return fn
	}
	if !strings.HasSuffix(fn, ")") {
		return fn
	}
	if i := strings.LastIndex(fn, "("); i > 0 {
		return fn[:i]
	}
	return fn
}

type ptrKey struct {
	typ reflect.Type
	ptr uintptr
}

// visitSet tracks errors by identity. Pointer-shaped errors are keyed by
// address; other comparable values by value. Values that cannot be hashed
// are never reported as seen.
type visitSet struct {
	ptrs map[ptrKey]struct{}
	vals map[error]struct{}
}

func newVisitSet() *visitSet {
	return &visitSet{
		ptrs: make(map[ptrKey]struct{}),
		vals: make(map[error]struct{}),
	}
}

// add records err and reports whether it was not seen before.
func (s *visitSet) add(err error) (fresh bool) {
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		k := ptrKey{typ: v.Type(), ptr: v.Pointer()}
		if _, ok := s.ptrs[k]; ok {
			return false
		}
		s.ptrs[k] = struct{}{}
		return true
	}

	if !v.Type().Comparable() {
		return true
	}
	// Comparable structs may still hold unhashable interface values.
	defer func() {
		if recover() != nil {
			fresh = true
		}
	}()
	if _, ok := s.vals[err]; ok {
		return false
	}
	s.vals[err] = struct{}{}
	return true
}
