package crash

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	texts []string
}

func newRecordingSink(name string) *recordingSink { return &recordingSink{name: name} }

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type panickingSink struct{}

func (panickingSink) Name() string            { return "panicking" }
func (panickingSink) Write(text string) error { panic("sink exploded") }

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }
func (s *blockingSink) Write(string) error {
	<-s.release
	return nil
}

type terminatorSpy struct {
	calls atomic.Int32
}

func (s *terminatorSpy) Terminate() { s.calls.Add(1) }

func (s *terminatorSpy) Calls() int { return int(s.calls.Load()) }

type promptSpy struct {
	decision Decision
	calls    atomic.Int32
	last     atomic.Value
	seen     chan string
}

func newPromptSpy(d Decision) *promptSpy {
	return &promptSpy{decision: d, seen: make(chan string, 16)}
}

func (p *promptSpy) Prompt(text string) Decision {
	p.calls.Add(1)
	p.last.Store(text)
	p.seen <- text
	return p.decision
}

func (p *promptSpy) Calls() int { return int(p.calls.Load()) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errSinkDown = errors.New("sink down")
