package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/bootstrap"
	"github.com/dotcommander/keyward/internal/crash"
	"github.com/dotcommander/keyward/internal/window"
)

type runOptions struct {
	noCrashHandler bool
	simulateCrash  crashSourceValue
}

// crashSourceValue is a pflag.Value accepting the hooks a crash can be
// simulated through.
type crashSourceValue struct {
	src crash.Source
}

var simulatableSources = []crash.Source{crash.SourceStartup, crash.SourceCallback, crash.SourceBackground}

func (v *crashSourceValue) String() string { return string(v.src) }

func (v *crashSourceValue) Set(s string) error {
	for _, src := range simulatableSources {
		if crash.Source(s) == src {
			v.src = src
			return nil
		}
	}
	names := make([]string, 0, len(simulatableSources))
	for _, src := range simulatableSources {
		names = append(names, string(src))
	}
	return fmt.Errorf("must be one of %s", strings.Join(names, "|"))
}

func (v *crashSourceValue) Type() string { return "string" }

// bindRunFlags registers the flags shared by the root and run commands.
func bindRunFlags(fs *pflag.FlagSet, o *runOptions) {
	fs.BoolVar(&o.noCrashHandler, "no-crash-handler", false, "Run without crash hooks (default: $KEYWARD_DISABLE_CRASH_HANDLER)")
	fs.Var(&o.simulateCrash, "simulate-crash", "Raise a crash through a hook: startup|callback|background")
	_ = fs.MarkHidden("simulate-crash")
}

// NewRunCmd creates the command that starts the authenticator window.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start keyward (the default when no command is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), opts)
		},
	}
	bindRunFlags(cmd.Flags(), &opts)

	return cmd
}

func runApp(ctx context.Context, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBootstrapper(opts)
	if err := b.Run(ctx); err != nil {
		return cmdErr(err)
	}
	return nil
}

func newBootstrapper(opts runOptions) *bootstrap.Bootstrapper {
	logger := slog.Default()

	var ic *crash.Interceptor
	if crashHandlerEnabled(opts) {
		prompter := crash.NewTerminalPrompter()
		prompter.Logger = logger
		persister := crash.NewDualSinkPersister()
		persister.Logger = logger
		ic = crash.NewInterceptor(persister, prompter, crash.KillProcess, logger)
	}

	b := bootstrap.New(ic, func(ctx context.Context) error {
		return window.Run(ctx, window.Options{
			SimulateCrash: opts.simulateCrash.src,
			Logger:        logger,
		})
	})
	b.Logger = logger
	if ic != nil {
		b.CrashOutputPath = crashOutputPath()
	}
	return b
}

func crashHandlerEnabled(opts runOptions) bool {
	if opts.noCrashHandler {
		return false
	}
	s, err := app.LoadSettings()
	if err != nil {
		// Configure reports the load error once hooks are installed.
		return true
	}
	return !s.DisableCrashHandler
}

// crashOutputPath places fatal runtime output next to the primary report.
func crashOutputPath() string {
	dir, err := crash.NewFileSink().Dir()
	if err != nil {
		slog.Warn("fatal crash output disabled", "error", err)
		return ""
	}
	return filepath.Join(dir, app.CrashOutputFileName)
}
