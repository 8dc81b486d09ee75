// Package log provides categorized structured logging for dndj.
//
// Every call names a Category so that output can be filtered by subsystem:
//
//	log.Debug(log.CatMusic, "Track finished", "file", track.File)
//	log.ErrorErr(log.CatDB, "Failed to open cache", err, "path", path)
//
// Output goes to stderr and, when configured, to a size-rotated log file.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category identifies the subsystem that emitted a log record.
type Category string

const (
	CatConfig Category = "config"
	CatDB     Category = "db"
	CatMusic  Category = "music"
	CatSound  Category = "sound"
	CatServer Category = "server"
	CatCheck  Category = "check"
	CatStream Category = "stream"
	CatAudio  Category = "audio"
	CatTask   Category = "task"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File enables rotated file logging when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr overrides the console writer (tests).
	Stderr io.Writer
}

var (
	mu      sync.RWMutex
	current = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	closer  io.Closer
)

// Init replaces the process-wide logger. It is safe to call more than once;
// a previously opened log file is closed.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	writers := []io.Writer{stderr}

	var fileWriter *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		fileWriter = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, fileWriter)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})

	mu.Lock()
	prev := closer
	current = slog.New(handler)
	closer = nil
	if fileWriter != nil {
		closer = fileWriter
	}
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// ParseLevel converts a level name to a slog.Level.
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
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func emit(level slog.Level, cat Category, msg string, args []any) {
	l := logger()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, msg, append([]any{"cat", string(cat)}, args...)...)
}

// Debug logs at debug level.
func Debug(cat Category, msg string, args ...any) { emit(slog.LevelDebug, cat, msg, args) }

// Info logs at info level.
func Info(cat Category, msg string, args ...any) { emit(slog.LevelInfo, cat, msg, args) }

// Warn logs at warn level.
func Warn(cat Category, msg string, args ...any) { emit(slog.LevelWarn, cat, msg, args) }

// Error logs at error level.
func Error(cat Category, msg string, args ...any) { emit(slog.LevelError, cat, msg, args) }

// ErrorErr logs at error level with err attached under the "error" key.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	emit(slog.LevelError, cat, msg, append([]any{"error", err}, args...))
}

// SafeGo runs fn in a new goroutine and logs instead of crashing if it panics.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error(CatServer, "Recovered panic in goroutine", "goroutine", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
