package engine

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// withLogger returns ctx carrying logger, used to tag an update with the
// worker that runs it.
func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
