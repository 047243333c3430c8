// Package logx provides component-scoped logging for the AI config SDK.
//
// Loggers are passed explicitly through constructors rather than pulled from
// a process-wide default, so hosts embedding the SDK keep full control over
// where library output goes.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes timestamped, component-tagged log lines.
type Logger struct {
	component string
	logger    *log.Logger
	debug     bool
}

var (
	debugMu      sync.RWMutex
	debugEnabled = envDebugEnabled()
)

func envDebugEnabled() bool {
	v := os.Getenv("DEBUG")
	return v == "1" || strings.EqualFold(v, "true")
}

// SetDebug toggles debug logging for all loggers created afterwards.
func SetDebug(enabled bool) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
}

// NewLogger creates a logger tagged with the given component name.
// Output goes to stderr so hosts using stdout for their own protocol
// are not disturbed.
func NewLogger(component string) *Logger {
	return NewLoggerTo(component, os.Stderr)
}

// NewLoggerTo creates a logger writing to the given sink. Useful in tests.
func NewLoggerTo(component string, w io.Writer) *Logger {
	debugMu.RLock()
	dbg := debugEnabled
	debugMu.RUnlock()
	return &Logger{
		component: component,
		logger:    log.New(w, "", 0),
		debug:     dbg,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", logger: log.New(io.Discard, "", 0)}
}

// WithComponent returns a logger sharing the sink but tagged differently.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, logger: l.logger, debug: l.debug}
}

// Component returns the component tag of this logger.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, message)
}

// Debug logs a debug message when debug logging is enabled (DEBUG=1).
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Errorf logs and returns the formatted error. Use when a failure is both
// reported and propagated:
//
//	return logx.Errorf(l, "open store: %w", err)
func Errorf(l *Logger, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	l.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns the wrapped error.
func Wrap(l *Logger, err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	l.Error("%s", wrapped.Error())
	return wrapped
}
