package crash

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/oarkflow/clipboard"
	"golang.org/x/term"
)

// Decision is the user's answer to a crash report.
type Decision int

const (
	// Continue keeps the process running.
	Continue Decision = iota
	// Abort terminates the process immediately.
	Abort
)

func (d Decision) String() string {
	switch d {
	case Abort:
		return "abort"
	default:
		return "continue"
	}
}

// ErrNoDisplay is returned by DefaultScreen when no terminal is attached.
var ErrNoDisplay = errors.New("no display available")

// Prompter shows a crash report and returns the user's decision.
// Implementations must return Continue when they cannot ask.
type Prompter interface {
	Prompt(text string) Decision
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(text string) Decision

func (f PrompterFunc) Prompt(text string) Decision { return f(text) }

const (
	defaultPromptTitle = "keyward has encountered a problem"
	promptFooter       = "[Enter] Continue  [Q] Quit keyward  [C] Copy report  [Up/Down] Scroll"
)

// Suspender is a full-screen owner of the terminal that can hand it over
// while a report is shown. tcell.Screen satisfies it. Fini restores the
// terminal for good; it replaces Resume when the user quits.
type Suspender interface {
	Suspend() error
	Resume() error
	Fini()
}

type terminalOwner struct {
	s Suspender
}

//nolint:gochecknoglobals // the terminal is process-wide
var owner atomic.Pointer[terminalOwner]

// ShareTerminal registers s as the current owner of the terminal. Prompts
// suspend it while they run and resume it afterwards, or finalize it when
// the decision is Abort. The returned func unregisters s.
func ShareTerminal(s Suspender) (release func()) {
	o := &terminalOwner{s: s}
	owner.Store(o)
	return func() { owner.CompareAndSwap(o, nil) }
}

// TerminalPrompter shows the report as a full-screen modal dialog.
// Only Q aborts; every other way of leaving the dialog continues.
type TerminalPrompter struct {
	Title     string
	NewScreen func() (tcell.Screen, error)
	CopyText  func(string) error
	Logger    *slog.Logger

	// the terminal is one device; concurrent reports take turns
	mu sync.Mutex
}

// NewTerminalPrompter returns a prompter on the controlling terminal that
// copies to the system clipboard.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		Title:     defaultPromptTitle,
		NewScreen: DefaultScreen,
		CopyText:  clipboard.WriteAll,
	}
}

// DefaultScreen opens the controlling terminal, or fails with ErrNoDisplay
// when stdin or stdout is not a terminal.
func DefaultScreen() (tcell.Screen, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, ErrNoDisplay
	}
	return tcell.NewScreen()
}

// Prompt shows text and blocks until the user decides. It never panics.
func (p *TerminalPrompter) Prompt(text string) (d Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := loggerOrDefault(p.Logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("recovery prompt failed", "error", fmt.Sprint(r))
			d = Continue
		}
	}()

	d, err := p.run(text)
	if err != nil {
		logger.Warn("recovery prompt unavailable", "error", err)
		return Continue
	}
	return d
}

func (p *TerminalPrompter) run(text string) (d Decision, err error) {
	if o := owner.Load(); o != nil {
		if err := o.s.Suspend(); err == nil {
			defer func() {
				if d == Abort {
					// the process is about to be killed; deferred cleanup in
					// the owner never runs
					o.s.Fini()
					return
				}
				_ = o.s.Resume()
			}()
		}
	}

	newScreen := p.NewScreen
	if newScreen == nil {
		newScreen = DefaultScreen
	}
	screen, err := newScreen()
	if err != nil {
		return Continue, err
	}
	if err := screen.Init(); err != nil {
		return Continue, fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	title := p.Title
	if title == "" {
		title = defaultPromptTitle
	}
	v := newReportView(screen, title, text)
	v.draw()

	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return Continue, nil
		case *tcell.EventResize:
			screen.Sync()
			v.draw()
		case *tcell.EventKey:
			decision, done := p.handleKey(v, text, ev)
			if done {
				return decision, nil
			}
			v.draw()
		}
	}
}

func (p *TerminalPrompter) handleKey(v *reportView, text string, ev *tcell.EventKey) (Decision, bool) {
	switch ev.Key() {
	case tcell.KeyEnter, tcell.KeyEscape, tcell.KeyCtrlC:
		return Continue, true
	case tcell.KeyUp:
		v.scroll(-1)
	case tcell.KeyDown:
		v.scroll(1)
	case tcell.KeyPgUp:
		v.scroll(-v.pageSize())
	case tcell.KeyPgDn:
		v.scroll(v.pageSize())
	case tcell.KeyHome:
		v.offset = 0
	case tcell.KeyEnd:
		v.scroll(len(v.lines))
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return Abort, true
		case ' ':
			return Continue, true
		case 'c', 'C':
			v.status = p.copyReport(text)
		}
	}
	return Continue, false
}

func (p *TerminalPrompter) copyReport(text string) string {
	if p.CopyText == nil {
		return "Clipboard unavailable"
	}
	if err := p.CopyText(text); err != nil {
		return "Copy failed: " + err.Error()
	}
	return "Report copied to clipboard"
}

// reportView renders the modal: title bar, scrollable report, footer.
type reportView struct {
	screen tcell.Screen
	title  string
	lines  []string
	offset int
	status string
}

func newReportView(screen tcell.Screen, title, text string) *reportView {
	text = strings.ReplaceAll(strings.TrimRight(text, "\n"), "\t", "    ")
	return &reportView{
		screen: screen,
		title:  title,
		lines:  strings.Split(text, "\n"),
	}
}

// pageSize is the number of report lines visible between title and footer.
func (v *reportView) pageSize() int {
	_, h := v.screen.Size()
	if h-3 < 1 {
		return 1
	}
	return h - 3
}

func (v *reportView) scroll(delta int) {
	v.offset += delta
	if maxOffset := len(v.lines) - v.pageSize(); v.offset > maxOffset {
		v.offset = maxOffset
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

func (v *reportView) draw() {
	s := v.screen
	w, h := s.Size()
	s.Clear()

	titleStyle := tcell.StyleDefault.Background(tcell.ColorMaroon).Foreground(tcell.ColorWhite).Bold(true)
	bodyStyle := tcell.StyleDefault
	footerStyle := tcell.StyleDefault.Reverse(true)

	fillRow(s, 0, w, titleStyle)
	drawText(s, 1, 0, w, titleStyle, v.title)

	for row := 0; row < v.pageSize() && v.offset+row < len(v.lines); row++ {
		drawText(s, 1, row+2, w, bodyStyle, v.lines[v.offset+row])
	}

	footer := promptFooter
	if v.status != "" {
		footer = v.status + "  |  " + promptFooter
	}
	fillRow(s, h-1, w, footerStyle)
	drawText(s, 1, h-1, w, footerStyle, footer)

	s.Show()
}

func fillRow(s tcell.Screen, y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func drawText(s tcell.Screen, x, y, maxX int, style tcell.Style, text string) {
	for _, r := range text {
		if x >= maxX {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
