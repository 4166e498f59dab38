package crash

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
)

// scriptedScreen replays keys as soon as the prompter initializes it.
type scriptedScreen struct {
	tcell.SimulationScreen
	keys []*tcell.EventKey
}

func (s *scriptedScreen) Init() error {
	if err := s.SimulationScreen.Init(); err != nil {
		return err
	}
	for _, k := range s.keys {
		s.InjectKey(k.Key(), k.Rune(), k.Modifiers())
	}
	return nil
}

func key(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModNone) }

func runeKey(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func scriptedPrompter(keys ...*tcell.EventKey) (*TerminalPrompter, *scriptedScreen) {
	screen := &scriptedScreen{SimulationScreen: tcell.NewSimulationScreen("UTF-8"), keys: keys}
	p := NewTerminalPrompter()
	p.NewScreen = func() (tcell.Screen, error) { return screen, nil }
	p.CopyText = func(string) error { return nil }
	return p, screen
}

func TestTerminalPrompter_QuitAborts(t *testing.T) {
	for _, r := range []rune{'q', 'Q'} {
		p, _ := scriptedPrompter(runeKey(r))
		require.Equal(t, Abort, p.Prompt("report"))
	}
}

func TestTerminalPrompter_OtherDismissalsContinue(t *testing.T) {
	cases := map[string]*tcell.EventKey{
		"enter":  key(tcell.KeyEnter),
		"escape": key(tcell.KeyEscape),
		"ctrl-c": key(tcell.KeyCtrlC),
		"space":  runeKey(' '),
	}
	for name, k := range cases {
		t.Run(name, func(t *testing.T) {
			p, _ := scriptedPrompter(k)
			require.Equal(t, Continue, p.Prompt("report"))
		})
	}
}

func TestTerminalPrompter_UnmappedKeysKeepDialogOpen(t *testing.T) {
	p, _ := scriptedPrompter(runeKey('x'), key(tcell.KeyDown), key(tcell.KeyPgDn), key(tcell.KeyHome), runeKey('q'))
	require.Equal(t, Abort, p.Prompt(strings.Repeat("line\n", 200)))
}

func TestTerminalPrompter_CopyKeepsDialogOpen(t *testing.T) {
	var copied string
	p, _ := scriptedPrompter(runeKey('c'), key(tcell.KeyEnter))
	p.CopyText = func(s string) error {
		copied = s
		return nil
	}

	require.Equal(t, Continue, p.Prompt("the report"))
	require.Equal(t, "the report", copied)
}

func TestTerminalPrompter_CopyFailureIsNotFatal(t *testing.T) {
	p, _ := scriptedPrompter(runeKey('c'), runeKey('q'))
	p.CopyText = func(string) error { return errors.New("no clipboard") }

	require.Equal(t, Abort, p.Prompt("the report"))
}

func TestTerminalPrompter_NoDisplayContinues(t *testing.T) {
	p := NewTerminalPrompter()
	p.NewScreen = func() (tcell.Screen, error) { return nil, ErrNoDisplay }

	require.Equal(t, Continue, p.Prompt("report"))
}

type failingInitScreen struct {
	tcell.SimulationScreen
}

func (failingInitScreen) Init() error { return errors.New("terminal gone") }

func TestTerminalPrompter_InitFailureContinues(t *testing.T) {
	p := NewTerminalPrompter()
	p.NewScreen = func() (tcell.Screen, error) {
		return failingInitScreen{tcell.NewSimulationScreen("UTF-8")}, nil
	}

	require.Equal(t, Continue, p.Prompt("report"))
}

func TestTerminalPrompter_PanicWhileShowingContinues(t *testing.T) {
	p := NewTerminalPrompter()
	p.NewScreen = func() (tcell.Screen, error) { panic("display driver exploded") }

	require.Equal(t, Continue, p.Prompt("report"))
}

func TestTerminalPrompter_RendersTitleAndReport(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(60, 10)

	v := newReportView(screen, "Crash title", "first line\nsecond line\n")
	v.draw()

	require.Equal(t, "Crash title", strings.TrimSpace(rowText(screen, 0)))
	require.Equal(t, "first line", strings.TrimSpace(rowText(screen, 2)))
	require.Equal(t, "second line", strings.TrimSpace(rowText(screen, 3)))
	require.Contains(t, rowText(screen, 9), "[Q] Quit")
}

func TestReportView_ScrollIsClamped(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(40, 10)

	v := newReportView(screen, "t", strings.Repeat("x\n", 20))
	v.scroll(-5)
	require.Equal(t, 0, v.offset)
	v.scroll(100)
	require.Equal(t, 20-v.pageSize(), v.offset)
}

func TestDecision_String(t *testing.T) {
	require.Equal(t, "continue", Continue.String())
	require.Equal(t, "abort", Abort.String())
}

func rowText(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

type suspendSpy struct {
	events []string
}

func (s *suspendSpy) Suspend() error {
	s.events = append(s.events, "suspend")
	return nil
}

func (s *suspendSpy) Resume() error {
	s.events = append(s.events, "resume")
	return nil
}

func (s *suspendSpy) Fini() {
	s.events = append(s.events, "fini")
}

func TestTerminalPrompter_SuspendsSharedTerminal(t *testing.T) {
	owner := &suspendSpy{}
	release := ShareTerminal(owner)
	t.Cleanup(release)

	p, _ := scriptedPrompter(key(tcell.KeyEnter))
	inner := p.NewScreen
	p.NewScreen = func() (tcell.Screen, error) {
		owner.events = append(owner.events, "open")
		return inner()
	}

	require.Equal(t, Continue, p.Prompt("report"))
	require.Equal(t, []string{"suspend", "open", "resume"}, owner.events)

	release()
	p2, _ := scriptedPrompter(key(tcell.KeyEnter))
	p2.Prompt("report")
	require.Equal(t, []string{"suspend", "open", "resume"}, owner.events)
}

func TestTerminalPrompter_QuitFinalizesSharedTerminalBeforeTerminate(t *testing.T) {
	owner := &suspendSpy{}
	t.Cleanup(ShareTerminal(owner))

	p, _ := scriptedPrompter(runeKey('q'))
	terminate := func() { owner.events = append(owner.events, "terminate") }
	ic := NewInterceptor(NewPersister(), p, terminate, discardLogger())

	require.Equal(t, Abort, ic.Handle(SourceCallback, errors.New("boom")))
	require.Equal(t, []string{"suspend", "fini", "terminate"}, owner.events)
}
