// Package logging provides the console backend for the core Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Format selects the line encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)

// Options configures a Logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level  string
	Format Format
	Prefix string
	Output io.Writer
}

// Logger writes structured records through charmbracelet/log.
type Logger struct {
	logger *log.Logger
}

// New builds a Logger writing to opts.Output (stderr when nil).
func New(opts Options) (*Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	lo := log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          opts.Prefix,
	}
	switch opts.Format {
	case FormatJSON:
		lo.Formatter = log.JSONFormatter
	case FormatLogfmt:
		lo.Formatter = log.LogfmtFormatter
	case FormatText, "":
		lo.Formatter = log.TextFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return &Logger{logger: log.NewWithOptions(out, lo)}, nil
}

// With returns a logger that adds keyvals to every record.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{logger: l.logger.With(keyvals...)}
}

// Debug writes a message at DEBUG level.
func (l *Logger) Debug(msg string, keyvals ...any) { l.logger.Debug(msg, keyvals...) }

// Info writes a message at INFO level.
func (l *Logger) Info(msg string, keyvals ...any) { l.logger.Info(msg, keyvals...) }

// Warn writes a message at WARN level.
func (l *Logger) Warn(msg string, keyvals ...any) { l.logger.Warn(msg, keyvals...) }

// Error writes a message at ERROR level.
func (l *Logger) Error(msg string, keyvals ...any) { l.logger.Error(msg, keyvals...) }
