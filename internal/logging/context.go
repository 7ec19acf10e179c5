package logging

import (
	"context"
	"log/slog"

	"repolearn/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRepo is the standardized key for owner/name repository identifiers.
	FieldRepo = "repo"
	// FieldOperation is the standardized key for workflow operations (plan, chapter, quiz, grade, ask).
	FieldOperation = "operation"
	// FieldRequestID is the standardized key for correlation identifiers.
	FieldRequestID = "request_id"
	// FieldAttempt is the 1-based generation attempt number.
	FieldAttempt = "attempt"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// WithContext returns logger with the repo, operation and request id carried
// by ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var fields []any
	if repo, ok := services.RepoFromContext(ctx); ok {
		fields = append(fields, String(FieldRepo, repo))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, String(FieldOperation, op))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldRequestID, rid))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
