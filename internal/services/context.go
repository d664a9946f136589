package services

import "context"

type contextKey string

const (
	artifactIDKey contextKey = "artifact_id"
	requestIDKey  contextKey = "request_id"
	phaseKey      contextKey = "phase"
)

// WithArtifactID annotates context with the remote artifact identifier.
func WithArtifactID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, artifactIDKey, id)
}

// ArtifactIDFromContext extracts the artifact identifier if present.
func ArtifactIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(artifactIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the session phase that issued the work.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
