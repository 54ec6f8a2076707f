// Package logging builds the zap loggers used by optilab and carries them
// through contexts.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxLoggerKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the global zap logger
// if none exists.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return zap.L()
}

// ForRun returns a child of logger tagged with the fields identifying one
// optimization run.
func ForRun(logger *zap.Logger, method, function string, dim, trial int) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("method", method),
		zap.String("function", function),
		zap.Int("dim", dim),
		zap.Int("trial", trial),
	)
}
