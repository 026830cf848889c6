// Package logger carries wldd's diagnostics: pipeline state changes, directory listing
// failures and truncated import tables. Results never go through it; they are printed by the
// reporters on stdout.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is what the resolver and the per-file pipeline write to. --log-format picks the
// handler behind it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// SlogLogger backs Logger with a *slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// New wraps handler.
func New(handler slog.Handler) Logger {
	return &SlogLogger{logger: slog.New(handler)}
}

func levelAt(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level}
}

// Default is used when no logger was put in the context: key=value lines on stderr, info and up.
func Default() Logger {
	return New(slog.NewTextHandler(os.Stderr, levelAt(slog.LevelInfo)))
}

// Discard is for library callers that pass no logger.
func Discard() Logger {
	return New(slog.NewTextHandler(io.Discard, levelAt(slog.LevelError+1)))
}

// JSON is --log-format json: one object per line, for scripts that already read --json output.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, levelAt(level)))
}

// Text is --log-format text.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, levelAt(level)))
}

// Pretty is the default --log-format: short colored lines meant for a terminal.
func Pretty(w io.Writer, level slog.Level) Logger {
	return New(NewPrettyHandler(w, levelAt(level)))
}

// ForFormat maps a --log-format value to a logger. Anything unrecognised gets Pretty.
func ForFormat(format string, w io.Writer, level slog.Level) Logger {
	switch strings.ToLower(format) {
	case "json":
		return JSON(w, level)
	case "text":
		return Text(w, level)
	default:
		return Pretty(w, level)
	}
}

type ctxKey struct{}

// WithContext stores l in ctx. The CLI does this once per run so deps.AnalyzeFiles and its
// workers share the configured logger.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, falling back to Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

// ParseLevel reads a --log-level value. "warning" is accepted for warn; unknown values give info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

func (l *SlogLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

func (l *SlogLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

func (l *SlogLogger) WithGroup(name string) Logger {
	return &SlogLogger{logger: l.logger.WithGroup(name)}
}
