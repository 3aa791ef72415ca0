package slogutil

import (
	"io"
	"log/slog"
	"os"

	"hybridserver/internal/config"
)

// LoggerFactory builds the server logger from configuration.
// CLI level (when set) takes precedence over the configured level.
type LoggerFactory struct {
	config   config.LoggingConfig
	cliLevel *slog.Level
	stderr   io.Writer
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory.
// cliLevel should be nil if no CLI override was specified.
func NewLoggerFactory(cfg config.LoggingConfig, cliLevel *slog.Level) *LoggerFactory {
	return &LoggerFactory{
		config:   cfg,
		cliLevel: cliLevel,
		stderr:   os.Stderr,
	}
}

// ServerLogger returns a logger writing to stderr, teed to the configured
// rotating log file when one is set.
func (f *LoggerFactory) ServerLogger() *slog.Logger {
	level := f.effectiveLevel()
	opts := &slog.HandlerOptions{Level: level}

	console := f.handler(f.stderr, opts)
	if f.config.File == "" {
		return slog.New(console)
	}

	file := OpenFile(f.config.File, FileOptions{
		MaxSizeMB:  f.config.MaxSizeMB,
		MaxBackups: f.config.MaxBackups,
	})
	f.closers = append(f.closers, file)

	return slog.New(NewTeeHandler(console, f.handler(file, opts)))
}

func (f *LoggerFactory) handler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if f.config.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewLineHandler(w, opts)
}

// effectiveLevel returns the effective log level.
// Precedence: CLI flag > config > default (info)
func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.config.Level != "" {
		return LevelFromString(f.config.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
