package log

import (
	"context"
	"maps"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// TraceIDKey is the context key for trace IDs.
	TraceIDKey ContextKey = "trace_id"
	// LogFieldsKey is the context key for additional log fields.
	LogFieldsKey ContextKey = "log_fields"
)

// LogFields represents a collection of structured log fields.
type LogFields map[string]any

// WithFields merges fields into those already carried by ctx; new keys win.
func WithFields(ctx context.Context, fields LogFields) context.Context {
	merged := make(LogFields, len(fields))
	maps.Copy(merged, GetLogFields(ctx))
	maps.Copy(merged, fields)
	return context.WithValue(ctx, LogFieldsKey, merged)
}

// WithTraceID stores the trace id used to correlate every log line of one
// inbound webhook.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetLogFields retrieves log fields from the context.
// Returns an empty LogFields if none are found.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(LogFieldsKey).(LogFields); ok {
		return fields
	}
	return make(LogFields)
}

// TraceID returns the trace id stored in ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}
