package slogutil

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// silentLevel sits above every standard level.
const silentLevel = slog.Level(100)

// NewLogger creates a logger writing one line per record to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewLineHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger creates a logger that drops everything. Used in tests.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewLineHandler(io.Discard, &slog.HandlerOptions{Level: silentLevel}))
}

// FileOptions controls size-based rotation of a log file.
// Zero values fall back to lumberjack's defaults (100 MB, keep all backups).
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// OpenFile opens path for appending through a rotating writer. The
// directory is created on first write.
func OpenFile(path string, opts FileOptions) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// LevelFromString parses a configured level name. Besides slog's own
// syntax ("info", "WARN+2") it accepts "warning" and "off". Anything
// unparseable yields info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return slog.LevelWarn
	case "off", "none":
		return silentLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LevelFromVerbosity maps -v/-q flags to a level: quiet silences
// everything, each -v above zero drops to debug.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return silentLevel
	}
	if verbosity > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
