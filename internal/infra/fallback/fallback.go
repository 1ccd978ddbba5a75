// Package fallback wraps calls to external dependencies with a timeout and a
// degraded result, so pipeline stages never fail a turn because an oracle or
// search service is down.
package fallback

import (
	"context"
	"log/slog"
	"time"
)

// Call runs primary with a deadline. When primary fails or the deadline
// expires, the error is logged at Warn level and the degraded value produced
// by fb is returned instead. A turn keeps going either way.
func Call[T any](ctx context.Context, logger *slog.Logger, name string, timeout time.Duration, primary func(context.Context) (T, error), fb func(error) T) T {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := primary(callCtx)
	if err != nil {
		logger.WarnContext(ctx, "external_call_degraded",
			slog.String("dependency", name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return fb(err)
	}

	logger.DebugContext(ctx, "external_call_completed",
		slog.String("dependency", name),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result
}
