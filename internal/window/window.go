// Package window is the placeholder main window the bootstrap runs. It owns
// the terminal until the user quits and routes every handler through the
// crash hooks.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"

	"github.com/dotcommander/keyward/internal/crash"
)

// ErrSimulatedCrash is the cause of every crash raised by SimulateCrash.
var ErrSimulatedCrash = errors.New("simulated crash")

const (
	defaultTitle        = "keyward"
	defaultTickInterval = time.Second
	footer              = "[Q/Esc] Quit"
)

// Options configures Run.
type Options struct {
	Title     string
	NewScreen func() (tcell.Screen, error)

	// SimulateCrash raises a crash through the given hook once the window
	// is up: startup, callback or background. Empty disables it.
	SimulateCrash crash.Source

	TickInterval time.Duration
	Logger       *slog.Logger
}

// sharedScreen lets a crash prompt finalize the screen before the process is
// killed without the window finalizing it a second time.
type sharedScreen struct {
	tcell.Screen
	fini func()
}

func (s *sharedScreen) Fini() { s.fini() }

type interruptKind int

const (
	interruptTick interruptKind = iota
	interruptCancel
	interruptCrash
)

type window struct {
	screen  tcell.Screen
	title   string
	started time.Time
	ticks   int
	logger  *slog.Logger
}

// Run shows the window and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	newScreen := opts.NewScreen
	if newScreen == nil {
		newScreen = crash.DefaultScreen
	}
	screen, err := newScreen()
	if err != nil {
		return errors.Wrap(err, "open main window")
	}
	if err := screen.Init(); err != nil {
		return errors.Wrap(err, "init main window")
	}
	shared := &sharedScreen{Screen: screen, fini: sync.OnceFunc(screen.Fini)}
	defer shared.Fini()

	release := crash.ShareTerminal(shared)
	defer release()

	w := &window{
		screen:  screen,
		title:   opts.Title,
		started: time.Now(),
		logger:  opts.Logger,
	}
	if w.title == "" {
		w.title = defaultTitle
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	done := make(chan struct{})
	defer close(done)
	w.startTicker(ctx, done, opts.tickInterval())

	if opts.SimulateCrash == crash.SourceStartup {
		panic(errors.WithStack(fmt.Errorf("%w during startup", ErrSimulatedCrash)))
	}
	switch opts.SimulateCrash {
	case crash.SourceCallback:
		_ = screen.PostEvent(tcell.NewEventInterrupt(interruptCrash))
	case crash.SourceBackground:
		crash.Go(func() {
			panic(errors.WithStack(fmt.Errorf("%w in background worker", ErrSimulatedCrash)))
		})
	}

	w.draw()
	return w.loop()
}

func (o Options) tickInterval() time.Duration {
	if o.TickInterval > 0 {
		return o.TickInterval
	}
	return defaultTickInterval
}

// startTicker posts a redraw every interval and a cancel when ctx ends.
func (w *window) startTicker(ctx context.Context, done <-chan struct{}, interval time.Duration) {
	crash.Go(func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = w.screen.PostEvent(tcell.NewEventInterrupt(interruptCancel))
				return
			case <-t.C:
				_ = w.screen.PostEvent(tcell.NewEventInterrupt(interruptTick))
			}
		}
	})
}

func (w *window) loop() error {
	for {
		var quit bool
		switch ev := w.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			w.screen.Sync()
			w.draw()
		case *tcell.EventKey:
			crash.Callback(func() { quit = w.handleKey(ev) })()
		case *tcell.EventInterrupt:
			crash.Callback(func() { quit = w.handleInterrupt(ev) })()
		}
		if quit {
			return nil
		}
	}
}

func (w *window) handleKey(ev *tcell.EventKey) (quit bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		if ev.Rune() == 'q' || ev.Rune() == 'Q' {
			return true
		}
	}
	return false
}

func (w *window) handleInterrupt(ev *tcell.EventInterrupt) (quit bool) {
	kind, _ := ev.Data().(interruptKind)
	switch kind {
	case interruptCancel:
		return true
	case interruptCrash:
		panic(errors.WithStack(fmt.Errorf("%w in event handler", ErrSimulatedCrash)))
	default:
		w.ticks++
		w.draw()
	}
	return false
}

func (w *window) draw() {
	s := w.screen
	s.Clear()
	width, height := s.Size()
	titleStyle := tcell.StyleDefault.Reverse(true).Bold(true)
	footerStyle := tcell.StyleDefault.Reverse(true)

	fill(s, 0, width, titleStyle)
	put(s, 1, 0, width, titleStyle, w.title)

	put(s, 1, 2, width, tcell.StyleDefault, "No accounts configured.")
	put(s, 1, 3, width, tcell.StyleDefault.Dim(true),
		fmt.Sprintf("Up %s", time.Since(w.started).Truncate(time.Second)))

	if height > 1 {
		fill(s, height-1, width, footerStyle)
		put(s, 1, height-1, width, footerStyle, footer)
	}
	s.Show()
}

func fill(s tcell.Screen, y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func put(s tcell.Screen, x, y, maxX int, style tcell.Style, text string) {
	for _, r := range text {
		if x >= maxX {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
