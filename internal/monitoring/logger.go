// Package monitoring configures the process loggers: a structured slog
// logger used by instrument sessions, and the printf-style Logf hook used by
// the driver and the reconnect loop.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	console "github.com/phsym/console-slog"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	mu      sync.Mutex
	current = slog.Default()
)

// Logger returns the structured logger handed to new sessions.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// SetSlog installs l as the structured logger and routes Logf through it at
// info level.
func SetSlog(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mu.Lock()
	current = l
	mu.Unlock()
	SetLogger(func(format string, v ...interface{}) {
		l.Info(fmt.Sprintf(format, v...))
	})
}

// Options select the handler built by NewSlog.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "json" or "console". Empty means json.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewSlog builds a structured logger: colourised console output for
// interactive runs, JSON lines otherwise.
func NewSlog(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "console":
		handler = console.NewHandler(out, &console.HandlerOptions{Level: level})
	case "", "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	default:
		return nil, fmt.Errorf("unknown log format %q: expected json or console", opts.Format)
	}
	return slog.New(handler), nil
}
