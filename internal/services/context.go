package services

import "context"

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	phaseKey     contextKey = "phase"
	requestIDKey contextKey = "request_id"
)

// WithTaskID stores the task identifier on the context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskIDFromContext returns the task identifier, if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(taskIDKey).(string)
	return value, ok && value != ""
}

// WithPhase stores the current pipeline phase name on the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the pipeline phase, if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(phaseKey).(string)
	return value, ok && value != ""
}

// WithRequestID stores an API request correlation id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the correlation id, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	return value, ok && value != ""
}
