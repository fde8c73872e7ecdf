// Package telemetry carries the ambient logging and metrics that every
// condacore engine takes at construction time, generalizing the
// teacher's package-level internal/util.Logf/Vlogf into an injectable
// interface so tests can instantiate engines with a silent logger and
// production callers can swap in structured JSON (log/slog) output.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is the minimal logging surface every engine depends on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// stderrLogger mirrors the teacher's Logf/Vlogf: plain text to stderr,
// verbosity gated.
type stderrLogger struct {
	verbose bool
	prefix  string
}

// NewStderrLogger returns a Logger that writes "prefix: message" lines to
// stderr, the way golang-dep's internal/util package does.
func NewStderrLogger(prefix string, verbose bool) Logger {
	return &stderrLogger{verbose: verbose, prefix: prefix}
}

func (l *stderrLogger) Debugf(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.logf(format, args...)
}

func (l *stderrLogger) Infof(format string, args ...interface{})  { l.logf(format, args...) }
func (l *stderrLogger) Warnf(format string, args ...interface{})  { l.logf(format, args...) }
func (l *stderrLogger) Errorf(format string, args ...interface{}) { l.logf(format, args...) }

func (l *stderrLogger) logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, l.prefix+": "+format+"\n", args...)
}

// slogLogger adapts *slog.Logger to Logger, used when the caller asks
// for structured JSON output (the way a-h/depot is built end to end
// around *slog.Logger).
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps an existing *slog.Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debugf(format string, args ...interface{}) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Infof(format string, args ...interface{}) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Warnf(format string, args ...interface{}) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Errorf(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
}

// NewJSONLogger returns a Logger that writes structured JSON lines to
// stderr, selected by cmd/condacore's -json flag.
func NewJSONLogger() Logger {
	h := slog.NewJSONHandler(os.Stderr, nil)
	return NewSlogLogger(slog.New(h))
}
