// Package log is the structured logger shared by the static server and its
// ops listener. Records carry trace/span IDs from the context and, above a
// configurable level, a cleaned stack trace.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is the structured logger used across the server. Every call takes
// the request context so trace and span IDs can be attached.
type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

type Options struct {
	App       string
	Component string
	Version   string

	Level             slog.Level
	StacktraceLevel   slog.Level
	JsonFormat        bool
	MaxErrorLinks     int
	IncludeErrorLinks bool
	Writer            io.Writer
}

func New(opts Options) (Logger, error) { return newSlog(opts) }

// ParseLevel maps a -log-level value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "warning":
		return slog.LevelWarn, nil
	case "debug", "info", "warn", "error":
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return 0, err
		}
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}

// nop drops every record; the discard handler reports every level disabled
// so no attrs are ever built.
var nop Logger = &slogLogger{h: slog.DiscardHandler}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop }

type ctxKey struct{}

// WithContext returns a child context carrying l.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, or Nop.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return nop
}
