package structured

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"repolearn/internal/llm"
	"repolearn/internal/logging"
)

// DefaultMaxAttempts bounds transport calls when neither the request nor the
// engine defaults specify a limit.
const DefaultMaxAttempts = 3

// Request is one structured generation. Either Prompt (with optional System)
// or Messages must be set.
type Request struct {
	// Name labels the schema for logs and providers that require a name.
	Name     string
	System   string
	Prompt   string
	Messages []llm.Message
	// Schema is the JSON Schema document forwarded to the model as its
	// response format. Validation is performed by the Validator passed to
	// Generate, which is usually built from the same document.
	Schema          json.RawMessage
	ResponseFormat  string
	MaxAttempts     int
	Timeout         time.Duration
	Temperature     *float64
	MaxOutputTokens int
	Model           string
}

// Defaults fill request fields left at their zero value.
type Defaults struct {
	MaxAttempts     int
	Timeout         time.Duration
	Temperature     *float64
	MaxOutputTokens int
	Model           string
}

// Engine runs structured generations over a transport. It holds no
// per-call state and is safe for concurrent use when the transport is.
type Engine struct {
	transport llm.Transport
	logger    *slog.Logger
	defaults  Defaults
}

// Option customizes the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDefaults sets request defaults.
func WithDefaults(defaults Defaults) Option {
	return func(e *Engine) {
		e.defaults = defaults
	}
}

// NewEngine constructs an engine around transport.
func NewEngine(transport llm.Transport, opts ...Option) *Engine {
	engine := &Engine{
		transport: transport,
		logger:    logging.NewNop(),
		defaults:  Defaults{MaxAttempts: DefaultMaxAttempts},
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.logger = logging.NewComponentLogger(engine.logger, "structured")
	return engine
}

// Generate runs the attempt loop for req and returns a terminal Result.
// It makes at most MaxAttempts transport calls, one at a time.
func Generate[T any](ctx context.Context, e *Engine, req Request, validator Validator[T]) Result[T] {
	logger := logging.WithContext(ctx, e.logger).With(logging.String("schema", req.Name))
	maxAttempts := e.maxAttempts(req)
	base := baseTurns(req)
	if len(base) == 0 {
		return failed[T](Failure{Code: llm.CodeBadRequest, Message: "provide either a prompt or messages"}, 0)
	}

	var (
		history []llm.Message
		lastRaw string
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptLogger := logger.With(logging.Int(logging.FieldAttempt, attempt), logging.Int("max_attempts", maxAttempts))
		attemptLogger.Debug("sending generation request", logging.Int("turns", max(len(history), len(base))))

		completion, err := e.transport.Generate(ctx, e.transportRequest(req, history))
		if err != nil {
			code := llm.CodeOf(err)
			failure := Failure{Code: code, Message: err.Error(), LastRawOutput: lastRaw}
			if code == llm.CodeCancelled {
				attemptLogger.Info("generation cancelled")
				return failed[T](failure, attempt)
			}
			if attempt < maxAttempts && llm.Retriable(code) {
				logging.WarnWithContext(attemptLogger, "transport failed; retrying", "llm_transport_retry",
					logging.String("code", string(code)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "one attempt consumed"),
					logging.String(logging.FieldErrorHint, "check provider status and rate limits"),
				)
				continue
			}
			logging.WarnWithContext(attemptLogger, "transport failed; giving up", "llm_transport_failed",
				logging.String("code", string(code)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "caller falls back to deterministic content when available"),
				logging.String(logging.FieldErrorHint, llm.Describe(err)),
			)
			return failed[T](failure, attempt)
		}

		raw := completion.Text
		lastRaw = raw
		parsed, err := llm.ParseLoosely(raw)
		if err != nil {
			if attempt < maxAttempts {
				attemptLogger.Debug("output was not JSON; requesting repair", logging.Error(err))
				history = withRepair(base, history, raw, err.Error())
				continue
			}
			return exhausted[T](attemptLogger, Failure{Code: CodeExtractionFailed, Message: err.Error(), LastRawOutput: raw}, attempt)
		}

		value, err := validator.Validate(parsed)
		if err != nil {
			if attempt < maxAttempts {
				attemptLogger.Debug("output failed validation; requesting repair", logging.Error(err))
				history = withRepair(base, history, raw, err.Error())
				continue
			}
			return exhausted[T](attemptLogger, Failure{Code: CodeValidationFailed, Message: err.Error(), LastRawOutput: raw}, attempt)
		}

		attemptLogger.Debug("generation succeeded", logging.String("model", completion.Model))
		return succeeded(value, attempt)
	}

	return failed[T](Failure{Code: llm.CodeInternalError, Message: "attempts exhausted", LastRawOutput: lastRaw}, maxAttempts)
}

func exhausted[T any](logger *slog.Logger, failure Failure, attempts int) Result[T] {
	logging.WarnWithContext(logger, "model output rejected on final attempt", "llm_output_rejected",
		logging.String("code", string(failure.Code)),
		logging.String("reason", failure.Message),
		logging.String(logging.FieldImpact, "caller falls back to deterministic content when available"),
		logging.String(logging.FieldErrorHint, "raise llm.max_attempts or try a stronger model"),
	)
	return failed[T](failure, attempts)
}

func (e *Engine) maxAttempts(req Request) int {
	switch {
	case req.MaxAttempts > 0:
		return req.MaxAttempts
	case e.defaults.MaxAttempts > 0:
		return e.defaults.MaxAttempts
	default:
		return DefaultMaxAttempts
	}
}

// transportRequest builds the request for one attempt. Before any repair the
// caller's own shape (system/prompt or messages) is sent unchanged.
func (e *Engine) transportRequest(req Request, history []llm.Message) llm.Request {
	out := llm.Request{
		Model:           firstNonEmpty(req.Model, e.defaults.Model),
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		Timeout:         req.Timeout,
		ResponseFormat: llm.ResponseFormat{
			MimeType: firstNonEmpty(req.ResponseFormat, "application/json"),
			Name:     req.Name,
			Schema:   req.Schema,
		},
	}
	if out.Temperature == nil {
		out.Temperature = e.defaults.Temperature
	}
	if out.MaxOutputTokens <= 0 {
		out.MaxOutputTokens = e.defaults.MaxOutputTokens
	}
	if out.Timeout <= 0 {
		out.Timeout = e.defaults.Timeout
	}
	switch {
	case len(history) > 0:
		out.Messages = append([]llm.Message(nil), history...)
	case len(req.Messages) > 0:
		out.Messages = baseTurns(req)
	default:
		out.System = req.System
		out.Prompt = req.Prompt
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
