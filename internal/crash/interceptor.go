// Package crash captures unhandled failures, persists a diagnostic report to
// two independent sinks and asks the user whether to keep running.
//
// Every step of the reporting pipeline is guarded on its own: a failing
// formatter, sink or prompt never replaces the original failure and never
// escapes the handler.
package crash

import (
	"fmt"
	"log/slog"
)

// Source identifies which hook captured a failure.
type Source string

const (
	SourceStartup    Source = "startup"
	SourceCallback   Source = "callback"
	SourceBackground Source = "background"
	SourceFatal      Source = "fatal"
)

const formatFailedText = "(crash report could not be formatted)\n"

// Interceptor is the single reporting entry point for every hook.
// It is safe for concurrent use; each call runs the whole pipeline on the
// calling goroutine.
type Interceptor struct {
	persister *Persister
	prompter  Prompter
	terminate Terminator
	logger    *slog.Logger
}

// NewInterceptor wires the pipeline. A nil terminate defaults to KillProcess
// and a nil logger to slog.Default().
func NewInterceptor(persister *Persister, prompter Prompter, terminate Terminator, logger *slog.Logger) *Interceptor {
	if terminate == nil {
		terminate = KillProcess
	}
	return &Interceptor{
		persister: persister,
		prompter:  prompter,
		terminate: terminate,
		logger:    loggerOrDefault(logger),
	}
}

// Handle reports cause and asks for a decision. On Abort the terminator is
// invoked; Handle returns only if the terminator returns (tests) or on
// Continue.
func (ic *Interceptor) Handle(src Source, cause error) (d Decision) {
	d = Continue
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Error("crash handler failed", "source", string(src), "error", fmt.Sprint(r))
		}
	}()

	text := ic.report(src, cause)

	d = ic.decide(text)
	if d == Abort {
		ic.logger.Error("terminating after crash report", "source", string(src))
		ic.terminate()
	}
	return d
}

// Report formats and persists cause without prompting. It returns the text
// that was written.
func (ic *Interceptor) Report(src Source, cause error) string {
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Error("crash report failed", "source", string(src), "error", fmt.Sprint(r))
		}
	}()
	return ic.report(src, cause)
}

func (ic *Interceptor) report(src Source, cause error) string {
	text := ic.format(cause)
	ic.logger.Error("unhandled failure", "source", string(src), "message", safeMessageOf(cause))
	ic.persist(text)
	return text
}

func (ic *Interceptor) format(cause error) (text string) {
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Warn("crash report formatting failed", "error", fmt.Sprint(r))
			text = formatFailedText
		}
	}()
	return Format(cause)
}

func (ic *Interceptor) persist(text string) {
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Warn("crash report persistence failed", "error", fmt.Sprint(r))
		}
	}()
	if ic.persister == nil {
		return
	}
	_ = ic.persister.Persist(text)
}

func (ic *Interceptor) decide(text string) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			ic.logger.Warn("recovery prompt failed", "error", fmt.Sprint(r))
			d = Continue
		}
	}()
	if ic.prompter == nil {
		return Continue
	}
	return ic.prompter.Prompt(text)
}

func safeMessageOf(err error) string {
	if err == nil {
		return ""
	}
	return safeMessage(err)
}
