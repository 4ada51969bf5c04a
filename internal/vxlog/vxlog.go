// Package vxlog provides vx's structured logger: a slog.Logger gated by the
// VX_LOG environment variable, with a ksuid correlation id minted once per
// top-level invocation and threaded through context.Context. Modeled on
// the teacher's internal/logger, trimmed to vx's needs (no per-command
// output capture — vx's children inherit stdio directly per spec.md §4.5).
package vxlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"
)

// EnvLogLevel is the environment variable that controls vx's log verbosity.
const EnvLogLevel = "VX_LOG"

type ctxKey struct{}

var (
	global     *slog.Logger
	globalOnce sync.Once
)

func levelFromEnv() (slog.Level, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel)))

	switch v {
	case "", "off", "0", "false":
		return 0, false
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, true
	}
}

// Global returns the process-wide logger, initializing it from VX_LOG on
// first use. When logging is disabled it returns a logger writing to
// io.Discard so callers never need a nil check.
func Global() *slog.Logger {
	globalOnce.Do(func() {
		level, enabled := levelFromEnv()

		var w io.Writer = io.Discard
		if enabled {
			w = os.Stderr
		}

		global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	})

	return global
}

// NewInvocation mints a correlation id for one top-level vx invocation and
// returns a context carrying both the id and a logger annotated with it.
func NewInvocation(ctx context.Context) (context.Context, string) {
	id := ksuid.New().String()
	l := Global().With("invocation", id)

	return context.WithValue(ctx, ctxKey{}, l), id
}

// From returns the logger attached to ctx, or the global logger if none was
// attached via NewInvocation.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return Global()
}
