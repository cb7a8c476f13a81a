// Package logging provides structured logging built on log/slog, with
// optional file rotation via lumberjack. Two renderings of the same events
// are available: a JSON logger for files/ingestion and a human-readable
// text logger for the console, selected by Settings.Debug at the call site.
package logging

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below slog.LevelDebug for wire-level dumps (raw SSDP
// datagrams, full directive bodies) that are too noisy for Debug.
const LevelTrace = slog.Level(-8)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
}

// replaceAttr formats timestamps to second precision, renders custom level
// names, and truncates floats to 2 decimal places to keep log lines stable
// across runs (useful for diffing).
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime:
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	case a.Key == slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			if name, known := levelNames[level]; known {
				a.Value = slog.StringValue(name)
			}
		}
	case a.Value.Kind() == slog.KindFloat64:
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

var (
	mu          sync.RWMutex
	level       = new(slog.LevelVar)
	initialized bool
)

// Loggers bundles the two renderings produced by New.
type Loggers struct {
	JSON  *slog.Logger
	Text  *slog.Logger
	Level *slog.LevelVar
	// Close releases any file handles opened for rotation. Safe to call
	// more than once.
	Close func() error
}

// New builds the pair of loggers for a hub. When path is empty, JSON output
// goes to stderr instead of a rotated file.
func New(path string, debug bool) (*Loggers, error) {
	mu.Lock()
	level.Set(slog.LevelInfo)
	if debug {
		level.Set(slog.LevelDebug)
	}
	initialized = true
	mu.Unlock()

	var jsonWriter = os.Stderr
	var closeFn = func() error { return nil }

	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log directory %s: %w", dir, err)
			}
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		closeFn = lj.Close
		jsonHandler := slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
		textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
		return &Loggers{
			JSON:  slog.New(jsonHandler),
			Text:  slog.New(textHandler),
			Level: level,
			Close: closeFn,
		}, nil
	}

	jsonHandler := slog.NewJSONHandler(jsonWriter, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr})
	return &Loggers{
		JSON:  slog.New(jsonHandler),
		Text:  slog.New(textHandler),
		Level: level,
		Close: closeFn,
	}, nil
}

// IsInitialized reports whether New has run at least once.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

// ForComponent returns a child logger tagged with "component".
func ForComponent(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", component)
}
