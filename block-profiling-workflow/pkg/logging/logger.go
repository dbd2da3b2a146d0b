// =============================================================================
// pkg/logging/logger.go - Dual Logging Implementation
// =============================================================================
//
// This package provides a dual-output logger that writes:
//   - Every message to a console stream (normally stderr) and an optional log file
//   - Error messages additionally to an optional, separate error file
//
// SCOPED LOGGING:
//   Loggers can be scoped with a prefix using WithScope(). This creates a child
//   logger that prefixes all messages with the scope name, e.g.:
//
//     logger, _ := NewDualLogger(os.Stderr, "profile.log", "profile.err")
//     traceLog := logger.WithScope("TRACE")
//     traceLog.Info("Merged 0xabc")   // → [2006-01-02 15:04:05.000] [TRACE] Merged 0xabc
//
//   The parent logger continues to work without the prefix:
//     logger.Info("Starting run")     // → [2006-01-02 15:04:05.000] Starting run
//
// When the console is a terminal, the ERROR marker is highlighted in red.
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// SeparatorLine is the visual separator used in logs
	SeparatorLine = "========================================================================="

	// TimeFormat is the timestamp format for log messages
	TimeFormat = "2006-01-02 15:04:05.000"

	errorMarker      = "ERROR:"
	errorMarkerColor = "\x1b[31mERROR:\x1b[0m"
)

// =============================================================================
// DualLogger Implementation
// =============================================================================

// DualLogger implements the Logger interface with a console stream plus
// optional log and error files.
type DualLogger struct {
	mu        sync.Mutex
	console   io.Writer
	color     bool
	logFile   *os.File
	errorFile *os.File
}

// NewDualLogger creates a new DualLogger.
// Empty paths disable the corresponding file. Existing files are truncated.
func NewDualLogger(console io.Writer, logPath, errorPath string) (*DualLogger, error) {
	l := &DualLogger{
		console: console,
		color:   isTerminal(console),
	}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", logPath)
		}
		l.logFile = f
	}

	if errorPath != "" {
		f, err := os.OpenFile(errorPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			if l.logFile != nil {
				l.logFile.Close()
			}
			return nil, errors.Wrapf(err, "failed to open error file %s", errorPath)
		}
		l.errorFile = f
	}

	return l, nil
}

// NewConsoleLogger creates a DualLogger that only writes to w.
func NewConsoleLogger(w io.Writer) *DualLogger {
	return &DualLogger{console: w, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WithScope creates a scoped logger that prefixes all messages with the scope name.
// The returned ScopedLogger shares the same underlying sinks as the parent.
func (l *DualLogger) WithScope(scope string) interfaces.Logger {
	return &ScopedLogger{
		parent: l,
		scope:  scope,
	}
}

// Info logs an informational message.
func (l *DualLogger) Info(format string, args ...interface{}) {
	l.write("", false, fmt.Sprintf(format, args...))
}

// Error logs an error message to every sink, including the error file.
func (l *DualLogger) Error(format string, args ...interface{}) {
	l.write("", true, fmt.Sprintf(format, args...))
}

// Separator logs a visual separator line.
func (l *DualLogger) Separator() {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, SeparatorLine)
	if l.logFile != nil {
		fmt.Fprintln(l.logFile, SeparatorLine)
	}
}

func (l *DualLogger) write(scope string, isError bool, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := "[" + time.Now().Format(TimeFormat) + "]"
	if scope != "" {
		prefix += " [" + scope + "]"
	}

	if !isError {
		fmt.Fprintf(l.console, "%s %s\n", prefix, msg)
		if l.logFile != nil {
			fmt.Fprintf(l.logFile, "%s %s\n", prefix, msg)
		}
		return
	}

	marker := errorMarker
	if l.color {
		marker = errorMarkerColor
	}
	fmt.Fprintf(l.console, "%s %s %s\n", prefix, marker, msg)
	if l.logFile != nil {
		fmt.Fprintf(l.logFile, "%s %s %s\n", prefix, errorMarker, msg)
	}
	if l.errorFile != nil {
		fmt.Fprintf(l.errorFile, "%s %s %s\n", prefix, errorMarker, msg)
	}
}

// Sync forces a flush of all log data to disk.
func (l *DualLogger) Sync() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Sync()
	}
	if l.errorFile != nil {
		l.errorFile.Sync()
	}
}

// Close closes all log files after syncing.
func (l *DualLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Sync()
		l.logFile.Close()
		l.logFile = nil
	}

	if l.errorFile != nil {
		l.errorFile.Sync()
		l.errorFile.Close()
		l.errorFile = nil
	}
}

// =============================================================================
// ScopedLogger - Logger with a Prefix
// =============================================================================

// ScopedLogger wraps a DualLogger and prefixes all messages with a scope name.
//
// ScopedLogger shares the underlying sinks with its parent DualLogger.
// Closing the parent will close the files; do not close ScopedLogger directly.
type ScopedLogger struct {
	parent *DualLogger
	scope  string
}

// WithScope creates a nested scoped logger.
// The scopes are combined: parent.WithScope("A").WithScope("B") → [A:B]
func (l *ScopedLogger) WithScope(scope string) interfaces.Logger {
	return &ScopedLogger{
		parent: l.parent,
		scope:  l.scope + ":" + scope,
	}
}

// Info logs an informational message with the scope prefix.
func (l *ScopedLogger) Info(format string, args ...interface{}) {
	l.parent.write(l.scope, false, fmt.Sprintf(format, args...))
}

// Error logs an error message with the scope prefix.
func (l *ScopedLogger) Error(format string, args ...interface{}) {
	l.parent.write(l.scope, true, fmt.Sprintf(format, args...))
}

// Separator logs a visual separator line (no scope prefix for separators).
func (l *ScopedLogger) Separator() {
	l.parent.Separator()
}

// Sync forces a flush of all log data to disk.
func (l *ScopedLogger) Sync() {
	l.parent.Sync()
}

// Close is a no-op for ScopedLogger. Close the parent DualLogger instead.
func (l *ScopedLogger) Close() {}

var (
	_ interfaces.Logger = (*DualLogger)(nil)
	_ interfaces.Logger = (*ScopedLogger)(nil)
)
