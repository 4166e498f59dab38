package crash

import (
	"errors"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrHooksInstalled is returned by Install while another set of hooks is active.
var ErrHooksInstalled = errors.New("crash hooks already installed")

//nolint:gochecknoglobals // process-wide hook target, swapped by Install/Uninstall
var active atomic.Pointer[Interceptor]

// Options configures Install.
type Options struct {
	// CrashOutputPath receives fatal runtime crash output (unrecoverable
	// panics, fatal errors). A non-empty file left by a previous run is
	// reported before the file is reused. Empty disables the hook.
	CrashOutputPath string
}

// Hooks is the handle returned by Install.
type Hooks struct {
	ic       *Interceptor
	once     sync.Once
	crashOut bool
}

// Install routes every hook to ic: Recover, Go and Callback start reporting
// to it, and fatal runtime output is redirected to opts.CrashOutputPath.
// Failing to set up crash output is logged and does not fail Install.
func Install(ic *Interceptor, opts Options) (*Hooks, error) {
	if !active.CompareAndSwap(nil, ic) {
		return nil, ErrHooksInstalled
	}
	h := &Hooks{ic: ic}
	if opts.CrashOutputPath != "" {
		replayCrashOutput(ic, opts.CrashOutputPath)
		if err := redirectCrashOutput(opts.CrashOutputPath); err != nil {
			ic.logger.Warn("fatal crash output not captured", "path", opts.CrashOutputPath, "error", err)
		} else {
			h.crashOut = true
		}
	}
	return h, nil
}

// Uninstall detaches the hooks. Panics after Uninstall propagate natively.
// Safe to call more than once.
func (h *Hooks) Uninstall() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.crashOut {
			_ = debug.SetCrashOutput(nil, debug.CrashOptions{})
		}
		active.CompareAndSwap(h.ic, nil)
	})
}

// Installed reports whether any hooks are active.
func Installed() bool {
	return active.Load() != nil
}

// Recover reports a panic to the installed interceptor. It must be deferred
// directly:
//
//	defer crash.Recover(crash.SourceBackground)
//
// Without installed hooks it does not call recover, so the panic continues
// to the runtime (and to an attached debugger) untouched.
func Recover(src Source) {
	ic := active.Load()
	if ic == nil {
		return
	}
	if r := recover(); r != nil {
		ic.Handle(src, FromPanic(r))
	}
}

// Go runs fn on a new goroutine whose panics are reported as background failures.
func Go(fn func()) {
	go func() {
		defer Recover(SourceBackground)
		fn()
	}()
}

// Callback wraps a UI event handler so its panics are reported as callback
// failures. On Continue the handler simply returns.
func Callback(fn func()) func() {
	return func() {
		defer Recover(SourceCallback)
		fn()
	}
}

func redirectCrashOutput(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFilePermissions)
	if err != nil {
		return err
	}
	// SetCrashOutput duplicates the descriptor.
	defer f.Close()
	return debug.SetCrashOutput(f, debug.CrashOptions{})
}

func replayCrashOutput(ic *Interceptor, path string) {
	b, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(b)) == "" {
		return
	}
	ic.Report(SourceFatal, newFatalCrashError(string(b)))
}

// FatalCrashError carries runtime crash output captured during a previous run.
type FatalCrashError struct {
	Output string
}

func newFatalCrashError(output string) *FatalCrashError {
	return &FatalCrashError{Output: output}
}

func (e *FatalCrashError) Error() string {
	first, _, _ := strings.Cut(strings.TrimSpace(e.Output), "\n")
	return "previous run crashed: " + first
}

// Stack returns the non-empty lines of the runtime's crash output.
func (e *FatalCrashError) Stack() []string {
	var out []string
	for _, line := range strings.Split(e.Output, "\n") {
		if line = strings.TrimRight(line, " \t\r"); strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimLeft(line, "\t"))
		}
	}
	return out
}
