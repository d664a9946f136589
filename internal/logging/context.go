package logging

import (
	"context"
	"log/slog"

	"reelcap/internal/services"
)

// Structured keys shared by every package that logs.
const (
	FieldComponent     = "component"
	FieldArtifactID    = "artifact_id"
	FieldPhase         = "phase"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. upload_part_failed.
	FieldEventType = "event_type"
	// FieldErrorHint is the next step the user should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is what the failure means for the recording.
	FieldImpact = "impact"
)

// ContextFields returns the artifact, phase and request id stamped on ctx by
// the services helpers.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := services.ArtifactIDFromContext(ctx); ok {
		fields = append(fields, ArtifactID(id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger extended with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
