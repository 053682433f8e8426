// Package logger wraps log/slog the way the rest of the core expects:
// subsystem-tagged calls (Info/Warning/Error/Debug) rather than free-form
// printf logging, so every log line can be filtered by the part of the
// daemon that produced it.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level mirrors slog's levels under names the rest of the core uses.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Manager. Loading it from a file is out of scope for
// the core; callers hand in an already-populated Config.
type Config struct {
	Level  Level
	Format string // "text" or "json"
	Output io.Writer
}

// Manager is the process-wide log sink. A single Manager is constructed at
// startup and threaded through the Matrix and its subsystems.
type Manager struct {
	level   atomic.Int32
	slogger *slog.Logger
}

// NewManager builds a Manager from Config, defaulting to text output on
// stderr at Info level.
func NewManager(cfg Config) *Manager {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	m := &Manager{slogger: slog.New(handler)}
	m.level.Store(int32(cfg.Level))
	return m
}

// SetLevel adjusts the minimum level atomically; safe to call from a
// REHASH path concurrent with logging calls.
func (m *Manager) SetLevel(l Level) {
	m.level.Store(int32(l))
}

func (m *Manager) enabled(l Level) bool {
	return int32(l) >= m.level.Load()
}

func (m *Manager) log(l Level, subsystem string, msg string, args ...any) {
	if !m.enabled(l) {
		return
	}
	m.slogger.Log(context.Background(), l.slogLevel(), msg, append([]any{"subsystem", subsystem}, args...)...)
}

// Debug logs a debug-level line tagged with subsystem.
func (m *Manager) Debug(subsystem, msg string, args ...any) { m.log(LevelDebug, subsystem, msg, args...) }

// Info logs an info-level line tagged with subsystem.
func (m *Manager) Info(subsystem, msg string, args ...any) { m.log(LevelInfo, subsystem, msg, args...) }

// Warning logs a warning-level line tagged with subsystem.
func (m *Manager) Warning(subsystem, msg string, args ...any) {
	m.log(LevelWarning, subsystem, msg, args...)
}

// Error logs an error-level line tagged with subsystem, with full context;
// per spec §7 this never aborts the process on client-triggered input.
func (m *Manager) Error(subsystem, msg string, args ...any) { m.log(LevelError, subsystem, msg, args...) }

// Sub returns a lightweight handle bound to one subsystem name, for
// components that log frequently and don't want to repeat the tag.
func (m *Manager) Sub(subsystem string) *Sub {
	return &Sub{m: m, subsystem: subsystem}
}

// Sub is a subsystem-scoped logging handle.
type Sub struct {
	m         *Manager
	subsystem string
}

func (s *Sub) Debug(msg string, args ...any)   { s.m.Debug(s.subsystem, msg, args...) }
func (s *Sub) Info(msg string, args ...any)    { s.m.Info(s.subsystem, msg, args...) }
func (s *Sub) Warning(msg string, args ...any) { s.m.Warning(s.subsystem, msg, args...) }
func (s *Sub) Error(msg string, args ...any)   { s.m.Error(s.subsystem, msg, args...) }

// Fields is a convenience for building args slices out of a map, mirroring
// the key/value pairing slog.Logger.Log expects.
func Fields(kv map[string]any) []any {
	out := make([]any, 0, len(kv)*2)
	for k, v := range kv {
		out = append(out, k, v)
	}
	return out
}
