package logging

import (
	"context"
	"log/slog"

	"docflow/internal/services"
)

// Shared structured field names used across components.
const (
	FieldComponent     = "component"
	FieldTaskID        = "task_id"
	FieldKind          = "kind"
	FieldPhase         = "phase"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts well-known request scoped values as attrs.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if taskID, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, String(FieldTaskID, taskID))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, String(FieldPhase, phase))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldCorrelationID, requestID))
	}
	return fields
}

// WithContext returns a logger enriched with context scoped fields.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
