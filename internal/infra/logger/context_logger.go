// ABOUTME: This file provides context-aware structured logging for turn processing
// ABOUTME: Supports thread ID, trace ID, and pipeline stage propagation with JSON output format
package logger

import (
	"context"
	"log/slog"
	"os"
)

type ContextKey string

const (
	// Business context keys for turn-level observability.
	// These follow OpenTelemetry semantic conventions with a 'stylist.' prefix.
	ThreadIDKey      ContextKey = "stylist.thread.id"
	TraceIDKey       ContextKey = "stylist.turn.trace_id"
	PipelineStageKey ContextKey = "stylist.pipeline.stage"
)

// ContextLogger provides context-aware logging with turn business context.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger creates a new context-aware logger.
func NewContextLogger(serviceName string) *ContextLogger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)

	return &ContextLogger{
		logger:      slog.New(handler),
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if threadID := ctx.Value(ThreadIDKey); threadID != nil {
		fields = append(fields, string(ThreadIDKey), threadID)
	}
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		fields = append(fields, string(TraceIDKey), traceID)
	}
	if stage := ctx.Value(PipelineStageKey); stage != nil {
		fields = append(fields, string(PipelineStageKey), stage)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// WithThreadID adds the conversation thread ID to context for observability.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ThreadIDKey, threadID)
}

// WithTraceID adds the turn trace ID to context for observability.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithPipelineStage adds the pipeline stage to context for observability.
func WithPipelineStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, PipelineStageKey, stage)
}
