package logging

import "context"

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// WithLogger attaches logger to ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger attached to ctx, or the global logger
func Ctx(ctx context.Context) *Logger {
	return CtxOr(ctx, nil)
}

// CtxOr returns the logger attached to ctx, or fallback when ctx carries
// none. A nil fallback means the global logger.
func CtxOr(ctx context.Context, fallback *Logger) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return global
}

// WithRequestID records id on ctx and scopes the context logger to it
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	return WithLogger(ctx, Ctx(ctx).With("request_id", id))
}

// RequestID returns the request ID stored in ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSensorID scopes the context logger to one reporting sensor
func WithSensorID(ctx context.Context, sensorID string) context.Context {
	if sensorID == "" {
		return ctx
	}
	return WithLogger(ctx, Ctx(ctx).With("sensor_id", sensorID))
}
