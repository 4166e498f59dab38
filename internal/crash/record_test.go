package crash

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// loopError's cause is set after construction to build cycles.
type loopError struct {
	msg   string
	cause error
}

func (e *loopError) Error() string { return e.msg }
func (e *loopError) Unwrap() error { return e.cause }

type brokenError struct{}

func (brokenError) Error() string { panic("no message for you") }

type valueError struct{ code int }

func (e valueError) Error() string { return fmt.Sprintf("code %d", e.code) }

func chain(n int) error {
	var err error
	for i := 0; i < n; i++ {
		err = &loopError{msg: fmt.Sprintf("level %d", i), cause: err}
	}
	return err
}

func countBlocks(text string) int {
	return strings.Count(text, "\n\n")
}

func TestCapture_ChainLengths(t *testing.T) {
	for _, n := range []int{1, 2, 5, 100, 5000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			rec := Capture(chain(n))
			require.Len(t, rec.Frames, n)
			require.False(t, rec.Truncated)
			require.Equal(t, n, countBlocks(rec.String()))
		})
	}
}

func TestCapture_OrderIsOutermostFirst(t *testing.T) {
	inner := errors.New("InnerError")
	outer := fmt.Errorf("OuterError: %w", inner)

	rec := Capture(outer)
	require.Equal(t, []string{"OuterError: InnerError", "InnerError"}, rec.Messages())
	require.Equal(t, "*fmt.wrapError", rec.Frames[0].Type)
	require.Equal(t, "*errors.errorString", rec.Frames[1].Type)
}

func TestCapture_SelfReferentialChainTerminates(t *testing.T) {
	self := &loopError{msg: "self"}
	self.cause = self

	rec := Capture(self)
	require.Len(t, rec.Frames, 1)
	require.True(t, rec.Truncated)
	require.Contains(t, rec.String(), truncatedMarker)
}

func TestCapture_LongCycleTerminates(t *testing.T) {
	a := &loopError{msg: "a"}
	b := &loopError{msg: "b", cause: a}
	c := &loopError{msg: "c", cause: b}
	a.cause = c

	rec := Capture(c)
	require.Equal(t, []string{"c", "b", "a"}, rec.Messages())
	require.True(t, rec.Truncated)
	require.LessOrEqual(t, countBlocks(rec.String()), 3)
}

func TestCapture_ValueErrorsDoNotCollide(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", valueError{code: 7})

	rec := Capture(err)
	require.Len(t, rec.Frames, 2)
	require.Equal(t, "code 7", rec.Frames[1].Message)
}

func TestCapture_JoinedErrorsFollowFirstMember(t *testing.T) {
	first := errors.New("first")
	err := errors.Join(first, errors.New("second"))

	rec := Capture(err)
	require.Len(t, rec.Frames, 2)
	require.Equal(t, "first", rec.Frames[1].Message)
}

func TestCapture_PkgErrorsStackIsRendered(t *testing.T) {
	err := pkgerrors.New("with stack")

	rec := Capture(err)
	require.Len(t, rec.Frames, 1)
	require.NotEmpty(t, rec.Frames[0].Stack)
	require.Contains(t, rec.Frames[0].Stack[0], "TestCapture_PkgErrorsStackIsRendered")
	require.True(t, strings.HasPrefix(rec.Frames[0].Stack[0], "at "))
}

func TestCapture_PkgErrorsCauseIsFollowed(t *testing.T) {
	root := errors.New("root")
	err := pkgerrors.Wrap(root, "context")

	rec := Capture(err)
	require.Equal(t, "root", rec.Frames[len(rec.Frames)-1].Message)
}

func TestFormat_PlaceholderForMissingStack(t *testing.T) {
	text := Format(errors.New("plain"))
	require.Equal(t, "*errors.errorString: plain\n"+stackIndent+noStackPlaceholder+"\n\n", text)
}

func TestFormat_BrokenMessageUsesPlaceholder(t *testing.T) {
	text := Format(fmt.Errorf("outer: %w", brokenError{}))
	require.Contains(t, text, "(error message unavailable: no message for you)")
}

func TestFormat_IsDeterministic(t *testing.T) {
	err := pkgerrors.Wrap(fmt.Errorf("mid: %w", errors.New("leaf")), "top")

	first := Format(err)
	second := Format(err)
	require.Equal(t, first, second)
}

func TestFormat_NilErrorIsEmpty(t *testing.T) {
	require.Equal(t, "", Format(nil))
}

func TestPanicError_UnwrapsPanickedError(t *testing.T) {
	inner := errors.New("InnerError")
	pe := NewPanicError(fmt.Errorf("OuterError: %w", inner))

	rec := Capture(pe)
	require.Len(t, rec.Frames, 3)
	require.Equal(t, "panic: OuterError: InnerError", rec.Frames[0].Message)
	require.ErrorIs(t, pe, inner)
}

func TestDescribeGoroutineStack_StartsAtPanicSite(t *testing.T) {
	raw := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/dotcommander/keyward/internal/crash.Recover({0x5, 0x6})
	/src/internal/crash/hooks.go:90 +0x45
panic({0x4b2e60?, 0xc000012345?})
	/usr/local/go/src/runtime/panic.go:770 +0x132
main.(*Window).onKey(0xc000010000, 0x1)
	/src/window/window.go:42 +0x25
created by main.main in goroutine 1
	/src/main.go:10 +0x99
`)

	got := describeGoroutineStack(raw)
	require.Equal(t, []string{
		"at main.(*Window).onKey (/src/window/window.go:42)",
		"at created by main.main in goroutine 1 (/src/main.go:10)",
	}, got)
}

func TestDescribeGoroutineStack_WithoutPanicFrameKeepsEverything(t *testing.T) {
	raw := []byte("goroutine 1 [running]:\nmain.main()\n\t/src/main.go:5 +0x1\n")
	require.Equal(t, []string{"at main.main (/src/main.go:5)"}, describeGoroutineStack(raw))
}
