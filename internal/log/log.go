// Package log provides structured logging for hotswap.
// Lines carry a level, a category, and key=value fields. Logging is off until
// Init is called (via --debug or HOTSWAP_DEBUG) so library callers pay nothing.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/hotswap/internal/pubsub"
)

// Level represents log severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config string onto a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Category groups related log messages.
type Category string

const (
	CatRegistry Category = "registry" // Entry lifecycle: register, reload, rollback
	CatStore    Category = "store"    // Artifact store backends
	CatLoader   Category = "loader"   // Manifest loading and template compilation
	CatWatcher  Category = "watcher"  // File watcher events
	CatConfig   Category = "config"   // Configuration loading/saving
	CatCache    Category = "cache"    // cache operations
	CatCLI      Category = "cli"      // shell and subcommands
)

// Logger writes formatted lines and republishes them to listeners.
type Logger struct {
	mu      sync.Mutex // serializes writes
	out     io.Writer
	closer  io.Closer
	enabled atomic.Bool
	level   atomic.Int32
	lines   *pubsub.Broker[string]
}

func newLogger(out io.Writer, closer io.Closer) *Logger {
	l := &Logger{out: out, closer: closer, lines: pubsub.NewBroker[string]()}
	l.enabled.Store(true)
	l.level.Store(int32(LevelDebug))
	return l
}

var current atomic.Pointer[Logger]

// Init starts logging to the file at path, appending. The returned cleanup
// stops logging and closes the file. Calling Init again replaces the logger.
func Init(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l := newLogger(f, f)
	install(l)
	return func() {
		if current.CompareAndSwap(l, nil) {
			l.close()
		}
	}, nil
}

// InitWriter logs to w. Tests use it to capture output.
func InitWriter(w io.Writer) {
	install(newLogger(w, nil))
}

func install(l *Logger) {
	if prev := current.Swap(l); prev != nil {
		prev.close()
	}
}

func (l *Logger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines.Close()
	if l.closer != nil {
		_ = l.closer.Close()
		l.closer = nil
	}
	l.out = io.Discard
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := current.Load(); l != nil {
		l.enabled.Store(enabled)
	}
}

// SetMinLevel drops lines below level.
func SetMinLevel(level Level) {
	if l := current.Load(); l != nil {
		l.level.Store(int32(level))
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) { emit(LevelDebug, cat, msg, fields) }

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) { emit(LevelInfo, cat, msg, fields) }

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) { emit(LevelWarn, cat, msg, fields) }

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) { emit(LevelError, cat, msg, fields) }

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	var text string
	if err != nil {
		text = err.Error()
	} else {
		text = "<nil>"
	}
	emit(LevelError, cat, msg, append(fields, "error", text))
}

func emit(level Level, cat Category, msg string, fields []any) {
	l := current.Load()
	if l == nil || !l.enabled.Load() || level < Level(l.level.Load()) {
		return
	}
	line := format(time.Now(), level, cat, msg, fields)

	l.mu.Lock()
	_, _ = io.WriteString(l.out, line)
	l.mu.Unlock()
	l.lines.Publish(pubsub.LogLineEvent, line)
}

// format renders "2025-12-06T10:45:00 [ERROR] [registry] message k=v k2=v2\n".
func format(ts time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	b.WriteString(ts.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		b.WriteByte(' ')
		fmt.Fprint(&b, fields[i])
		b.WriteByte('=')
		if i+1 < len(fields) {
			fmt.Fprint(&b, fields[i+1])
		} else {
			b.WriteString("<missing>")
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// NewListener subscribes to formatted log lines until ctx ends. It returns
// nil when logging was never initialized.
func NewListener(ctx context.Context) <-chan LogEvent {
	l := current.Load()
	if l == nil {
		return nil
	}
	return l.lines.Subscribe(ctx, pubsub.LogLineEvent)
}
