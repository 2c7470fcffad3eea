// Package logging configures the process-wide slog logger and derives
// per-call loggers from a context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type contextKey string

const (
	searchIDKey contextKey = "search_id"
	branchKey   contextKey = "branch"
)

var defaultLogger atomic.Pointer[slog.Logger]

// Init installs a JSON or text handler writing to stdout.
func Init(level string, format string) *slog.Logger {
	return InitWriter(os.Stdout, level, format)
}

// InitWriter installs a JSON or text handler writing to w.
func InitWriter(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	SetDefault(logger)
	return logger
}

// SetDefault replaces the logger returned by Default.
func SetDefault(logger *slog.Logger) {
	defaultLogger.Store(logger)
	slog.SetDefault(logger)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug, info, warn and error; anything else is info.
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

// Default returns the installed logger, or slog.Default when Init was not called.
func Default() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// FromContext decorates the default logger with the search id and branch
// carried by ctx.
func FromContext(ctx context.Context) *slog.Logger {
	logger := Default()
	if ctx == nil {
		return logger
	}
	if id, ok := ctx.Value(searchIDKey).(string); ok {
		logger = logger.With("search_id", id)
	}
	if branch, ok := ctx.Value(branchKey).(string); ok {
		logger = logger.With("branch", branch)
	}
	return logger
}

// WithSearchID tags ctx with a fresh search id unless it already has one.
func WithSearchID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(searchIDKey).(string); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, searchIDKey, id), id
}

// SearchID returns the id set by WithSearchID, or "".
func SearchID(ctx context.Context) string {
	id, _ := ctx.Value(searchIDKey).(string)
	return id
}

// WithBranch tags ctx with the name of the search branch running under it.
func WithBranch(ctx context.Context, branch string) context.Context {
	return context.WithValue(ctx, branchKey, branch)
}
