package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is the closed set of transport failure kinds.
type ErrorCode string

const (
	CodeMethodNotAllowed     ErrorCode = "METHOD_NOT_ALLOWED"
	CodeBadRequest           ErrorCode = "BAD_REQUEST"
	CodeConfigMissing        ErrorCode = "CONFIG_MISSING"
	CodeUpstreamUnauthorized ErrorCode = "UPSTREAM_UNAUTHORIZED"
	CodeUpstreamRateLimit    ErrorCode = "UPSTREAM_RATE_LIMIT"
	CodeUpstreamError        ErrorCode = "UPSTREAM_ERROR"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodeCancelled            ErrorCode = "CANCELLED"
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeNetworkError         ErrorCode = "NETWORK_ERROR"
	CodeInvalidResponse      ErrorCode = "INVALID_RESPONSE"
)

// Codes lists every transport error code.
func Codes() []ErrorCode {
	return []ErrorCode{
		CodeMethodNotAllowed,
		CodeBadRequest,
		CodeConfigMissing,
		CodeUpstreamUnauthorized,
		CodeUpstreamRateLimit,
		CodeUpstreamError,
		CodeTimeout,
		CodeCancelled,
		CodeInternalError,
		CodeNetworkError,
		CodeInvalidResponse,
	}
}

// Error is the failure type returned by every Transport.
type Error struct {
	Code    ErrorCode
	Message string
	// Status is the upstream HTTP status when one was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
	}
	if e.Status > 0 {
		return fmt.Sprintf("llm %s (http %d): %s", e.Code, e.Status, msg)
	}
	return fmt.Sprintf("llm %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Retriable reports whether a failure with code may succeed on another attempt.
func Retriable(code ErrorCode) bool {
	switch code {
	case CodeTimeout,
		CodeUpstreamRateLimit,
		CodeUpstreamError,
		CodeInternalError,
		CodeNetworkError,
		CodeInvalidResponse:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps a non-2xx upstream HTTP status to an error code.
func ClassifyStatus(status int) ErrorCode {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeUpstreamUnauthorized
	case http.StatusTooManyRequests:
		return CodeUpstreamRateLimit
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		return CodeUpstreamError
	}
}

// CodeOf extracts the error code carried by err. Bare context errors map to
// CANCELLED and TIMEOUT; any other non-nil error is INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.Code != "" {
		return llmErr.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternalError
	}
}

// Describe renders err as a short sentence for terminal output.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var llmErr *Error
	message := err.Error()
	if errors.As(err, &llmErr) {
		message = strings.TrimSpace(llmErr.Message)
	}
	switch CodeOf(err) {
	case CodeConfigMissing:
		return "The model API key is not configured (set llm.api_key or OPENROUTER_API_KEY)."
	case CodeUpstreamUnauthorized:
		return "The model provider rejected the credentials (invalid API key or missing permission)."
	case CodeUpstreamRateLimit:
		return "The model provider is rate limiting requests. Try again shortly."
	case CodeTimeout:
		return "The model request timed out."
	case CodeCancelled:
		return "The model request was cancelled."
	case CodeBadRequest:
		return "The model request was rejected as invalid: " + message
	case CodeMethodNotAllowed:
		return "The model endpoint does not accept this request method."
	case CodeInvalidResponse:
		return "The model returned a response that could not be parsed."
	case CodeNetworkError:
		return "The model provider could not be reached."
	default:
		return "The model call failed: " + message
	}
}
