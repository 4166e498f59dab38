// Package bootstrap runs the process start sequence: install the crash hooks
// unless a debugger is attached, apply process defaults, then hand control
// to the main window.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/crash"
)

// State is a step of the start sequence.
type State string

const (
	StateStart             State = "start"
	StateInstallHooks      State = "install_hooks"
	StateConfigureDefaults State = "configure_defaults"
	StateRunMainWindow     State = "run_main_window"
	StateNormal            State = "normal"
	StateFaulted           State = "faulted"
	StateEnd               State = "end"
)

// Bootstrapper sequences startup. Only MainWindow is required.
type Bootstrapper struct {
	// DebuggerAttached suppresses every hook when it reports true.
	DebuggerAttached func() bool
	// Interceptor receives captured failures. Nil runs without hooks.
	Interceptor *crash.Interceptor
	// CrashOutputPath receives fatal runtime output; see crash.Options.
	CrashOutputPath string

	Configure  func() error
	MainWindow func(ctx context.Context) error

	// Observe is called on every state transition.
	Observe func(State)
	Logger  *slog.Logger
}

// New returns a Bootstrapper wired to the process: debugger detection from
// /proc and process defaults from the loaded settings.
func New(ic *crash.Interceptor, mainWindow func(ctx context.Context) error) *Bootstrapper {
	return &Bootstrapper{
		DebuggerAttached: app.DebuggerAttached,
		Interceptor:      ic,
		Configure:        ConfigureFromSettings,
		MainWindow:       mainWindow,
	}
}

// ConfigureFromSettings loads settings and applies locale and rendering defaults.
func ConfigureFromSettings() error {
	s, err := app.LoadSettings()
	if err != nil {
		return err
	}
	return app.ConfigureProcessDefaults(s)
}

// Run executes the start sequence and blocks until the main window returns.
//
// A panic on the calling goroutine is reported through the full pipeline
// (including the prompt) and then re-raised. An error from Configure or
// MainWindow is formatted and persisted, then returned wrapped. With a
// debugger attached nothing is intercepted.
func (b *Bootstrapper) Run(ctx context.Context) error {
	b.enter(StateStart)

	hooks, intercepting := b.installHooksIfNotDebugging()
	defer hooks.Uninstall()
	defer func() {
		if !intercepting {
			return
		}
		if r := recover(); r != nil {
			b.enter(StateFaulted)
			b.Interceptor.Handle(crash.SourceStartup, crash.FromPanic(r))
			b.enter(StateEnd)
			panic(r)
		}
	}()

	b.enter(StateConfigureDefaults)
	if b.Configure != nil {
		if err := b.Configure(); err != nil {
			return b.fault(intercepting, fmt.Errorf("configure process defaults: %w", err))
		}
	}

	b.enter(StateRunMainWindow)
	if b.MainWindow == nil {
		return b.fault(intercepting, errors.New("no main window"))
	}
	if err := b.MainWindow(ctx); err != nil {
		return b.fault(intercepting, fmt.Errorf("main window: %w", err))
	}

	b.enter(StateNormal)
	b.enter(StateEnd)
	return nil
}

// installHooksIfNotDebugging reports whether failures escaping the hooks
// are intercepted: true whenever an Interceptor is configured and no
// debugger is attached, even if the hooks themselves could not be installed.
func (b *Bootstrapper) installHooksIfNotDebugging() (*crash.Hooks, bool) {
	b.enter(StateInstallHooks)
	logger := b.logger()
	if b.DebuggerAttached != nil && b.DebuggerAttached() {
		logger.Info("debugger attached, crash hooks not installed")
		return nil, false
	}
	if b.Interceptor == nil {
		logger.Info("crash handler disabled")
		return nil, false
	}
	h, err := crash.Install(b.Interceptor, crash.Options{CrashOutputPath: b.CrashOutputPath})
	if err != nil {
		logger.Warn("crash hooks not installed", "error", err)
		return nil, true
	}
	return h, true
}

func (b *Bootstrapper) fault(intercepting bool, err error) error {
	b.enter(StateFaulted)
	if intercepting {
		b.Interceptor.Report(crash.SourceStartup, err)
	}
	b.enter(StateEnd)
	return err
}

func (b *Bootstrapper) enter(s State) {
	b.logger().Debug("bootstrap", "state", string(s))
	if b.Observe != nil {
		b.Observe(s)
	}
}

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
