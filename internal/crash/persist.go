package crash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/store"
)

const (
	// RegistryNamespace scopes keyward's entries in the diagnostic registry.
	RegistryNamespace = app.Name
	// LastErrorKey holds the most recent crash report in the registry.
	LastErrorKey = "LastError"

	defaultSinkTimeout    = 5 * time.Second
	registryRetryWindow   = 2 * time.Second
	reportFilePermissions = 0o600
)

// ErrSinkTimeout is reported for a sink that did not finish in time.
var ErrSinkTimeout = errors.New("sink timed out")

// Sink is one independent destination for a crash report.
type Sink interface {
	Name() string
	Write(text string) error
}

// FileSink overwrites a fixed-name report file in the application data
// directory, or next to the executable when that directory does not exist.
// Both directories are resolved on every write, before any sink runs.
type FileSink struct {
	FileName    string
	DataDir     func() (string, error)
	FallbackDir func() (string, error)
}

// NewFileSink returns the primary sink writing keyward.log.
func NewFileSink() *FileSink {
	return &FileSink{
		FileName:    app.LogFileName,
		DataDir:     app.DataDir,
		FallbackDir: app.ExecutableDir,
	}
}

func (s *FileSink) Name() string { return "file" }

// Dir resolves the directory the next write goes to.
func (s *FileSink) Dir() (string, error) {
	if s.DataDir != nil {
		if dir, err := s.DataDir(); err == nil {
			if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
				return dir, nil
			}
		}
	}
	if s.FallbackDir == nil {
		return "", errors.New("no fallback directory configured")
	}
	return s.FallbackDir()
}

// Path resolves the full path of the next write.
func (s *FileSink) Path() (string, error) {
	dir, err := s.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.FileName), nil
}

func (s *FileSink) Write(text string) error {
	return s.Resolve().Write(text)
}

// Resolve pins the destination of the next write. Persister resolves every
// resolvingSink before any sink starts writing, so the directory choice does
// not depend on what a concurrent sink creates.
func (s *FileSink) Resolve() Sink {
	path, err := s.Path()
	return &resolvedFile{name: s.Name(), path: path, err: err}
}

type resolvedFile struct {
	name string
	path string
	err  error
}

func (f *resolvedFile) Name() string { return f.name }

func (f *resolvedFile) Write(text string) error {
	if f.err != nil {
		return fmt.Errorf("resolve report path: %w", f.err)
	}
	if err := os.WriteFile(f.path, []byte(text), reportFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// resolvingSink is a Sink whose destination depends on filesystem state.
type resolvingSink interface {
	Resolve() Sink
}

// RegistrySink stores the report under a fixed key in the diagnostic
// registry. The registry is opened and closed on every write.
type RegistrySink struct {
	Namespace   string
	Key         string
	Path        func() (string, error)
	RetryWindow time.Duration
}

// NewRegistrySink returns the secondary sink writing keyward/LastError.
func NewRegistrySink() *RegistrySink {
	return &RegistrySink{
		Namespace:   RegistryNamespace,
		Key:         LastErrorKey,
		Path:        app.GetRegistryPath,
		RetryWindow: registryRetryWindow,
	}
}

func (s *RegistrySink) Name() string { return "registry" }

func (s *RegistrySink) Write(text string) error {
	path, err := s.Path()
	if err != nil {
		return fmt.Errorf("resolve registry path: %w", err)
	}
	reg, err := store.OpenRegistry(path)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	window := s.RetryWindow
	if window <= 0 {
		window = registryRetryWindow
	}
	return reg.SetWithin(context.Background(), window, s.Namespace, s.Key, text)
}

// Persister writes a report to every sink. Sinks run concurrently, each
// behind its own panic guard and deadline, so one failing or stalled sink
// never prevents another from completing.
type Persister struct {
	Sinks   []Sink
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewPersister returns a Persister over sinks with the default deadline.
func NewPersister(sinks ...Sink) *Persister {
	return &Persister{Sinks: sinks, Timeout: defaultSinkTimeout}
}

// NewDualSinkPersister returns the standard keyward.log + registry persister.
func NewDualSinkPersister() *Persister {
	return NewPersister(NewFileSink(), NewRegistrySink())
}

type sinkResult struct {
	index int
	err   error
}

// Persist writes text to all sinks and returns the joined sink failures.
// Failures are logged; callers on the crash path ignore the result.
func (p *Persister) Persist(text string) error {
	if len(p.Sinks) == 0 {
		return nil
	}

	sinks := make([]Sink, len(p.Sinks))
	for i, s := range p.Sinks {
		sinks[i] = resolveGuarded(s)
	}

	results := make(chan sinkResult, len(sinks))
	for i, s := range sinks {
		go func() {
			results <- sinkResult{index: i, err: writeGuarded(s, text)}
		}()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	errs := make([]error, len(p.Sinks))
	done := make([]bool, len(p.Sinks))
	for pending := len(p.Sinks); pending > 0; {
		select {
		case r := <-results:
			errs[r.index] = r.err
			done[r.index] = true
			pending--
		case <-timer.C:
			for i := range p.Sinks {
				if !done[i] {
					errs[i] = ErrSinkTimeout
				}
			}
			pending = 0
		}
	}

	logger := loggerOrDefault(p.Logger)
	var failed []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := sinkName(p.Sinks[i])
		logger.Warn("crash report sink failed", "sink", name, "error", err)
		failed = append(failed, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(failed...)
}

func resolveGuarded(s Sink) (out Sink) {
	r, ok := s.(resolvingSink)
	if !ok {
		return s
	}
	defer func() {
		if recover() != nil {
			out = s
		}
	}()
	if resolved := r.Resolve(); resolved != nil {
		return resolved
	}
	return s
}

func writeGuarded(s Sink, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Write(text)
}

func sinkName(s Sink) (name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", s)
		}
	}()
	return s.Name()
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
