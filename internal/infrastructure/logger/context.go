package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey       contextKey = "logger"
	requestIDKey    contextKey = "request_id"
	connectionIDKey contextKey = "connection_id"
	runIDKey        contextKey = "run_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds the request ID to the context and its logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithConnectionID scopes the context and its logger to one marketplace
// connection.
func WithConnectionID(ctx context.Context, logger *zap.Logger, connectionID int64) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, connectionIDKey, connectionID)
	enriched := logger.With(zap.Int64("connection_id", connectionID))
	return WithContext(ctx, enriched), enriched
}

// WithRunID scopes the context and its logger to one scheduled or
// on-demand job run.
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, runIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetConnectionID retrieves the connection ID from context
func GetConnectionID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(connectionIDKey).(int64)
	return id, ok
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// GetTraceID extracts the trace ID of the active span, if any.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

func traceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

// ContextFields returns every correlation field carried by ctx. Loggers
// not derived from the context logger use it to tag their entries.
func ContextFields(ctx context.Context) []zap.Field {
	fields := traceFields(ctx)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := GetConnectionID(ctx); ok {
		fields = append(fields, zap.Int64("connection_id", id))
	}
	if id := GetRunID(ctx); id != "" {
		fields = append(fields, zap.String("run_id", id))
	}
	return fields
}

// L returns the context logger with the active trace attached. Request,
// connection and run fields are already carried by the context logger.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(traceFields(ctx)...)
}
