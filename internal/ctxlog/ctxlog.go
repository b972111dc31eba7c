// Package ctxlog passes a slog.Logger through context.Context so that every
// layer of the engine logs with the fields its caller established (worker
// rank, graph name, operation) without threading a logger argument around.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from
// other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger was
// installed it returns the process-default logger, so library code can log
// unconditionally.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// With returns a context whose embedded logger carries the extra attributes.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}
