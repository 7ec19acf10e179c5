package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Code classifies ingestion and host failures.
type Code string

const (
	CodeInvalidRepoURL Code = "INVALID_REPO_URL"
	CodeInvalidOptions Code = "INVALID_OPTIONS"
	CodeNotFound       Code = "NOT_FOUND"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeRepoTooLarge   Code = "REPO_TOO_LARGE"
	CodeNotPublic      Code = "NOT_PUBLIC"
	CodeFetchFailed    Code = "FETCH_FAILED"
	CodeTimeout        Code = "TIMEOUT"
	CodeCancelled      Code = "CANCELLED"
)

// Error is returned by every operation in this package and by ingestion.
type Error struct {
	Code    Code
	Message string
	// Status is the HTTP status when the host answered.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("github %s (http %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("github %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error without an underlying cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the Code from err. Context errors map to CANCELLED and
// TIMEOUT; anything else unrecognised is FETCH_FAILED.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ghErr *Error
	if errors.As(err, &ghErr) {
		return ghErr.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeFetchFailed
	}
}

var rateLimitPattern = regexp.MustCompile(`(?i)rate limit`)

// ClassifyResponse maps a non-success host response to an *Error.
func ClassifyResponse(status int, header http.Header, message string) *Error {
	switch {
	case status == http.StatusNotFound:
		return &Error{Code: CodeNotFound, Message: "repository not found", Status: status}
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && (strings.TrimSpace(header.Get("X-RateLimit-Remaining")) == "0" || rateLimitPattern.MatchString(message)):
		return &Error{Code: CodeRateLimited, Message: "GitHub rate limit exceeded", Status: status}
	default:
		return &Error{Code: CodeFetchFailed, Message: fmt.Sprintf("GitHub request failed (%d)", status), Status: status}
	}
}

// classifyTransportError maps a failed round trip. ctx is the per-call
// context, so its deadline firing reads as TIMEOUT.
func classifyTransportError(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Code: CodeCancelled, Message: "GitHub request cancelled", Err: ctx.Err()}
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTimeout, Message: "GitHub request timed out", Err: err}
	default:
		return &Error{Code: CodeFetchFailed, Message: "network request failed", Err: err}
	}
}

// Hint renders err as a sentence suitable for CLI output.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	message := err.Error()
	var ghErr *Error
	if errors.As(err, &ghErr) {
		message = ghErr.Message
	}
	switch CodeOf(err) {
	case CodeInvalidRepoURL:
		return "Invalid repository URL: " + message
	case CodeInvalidOptions:
		return "Invalid ingestion limits: " + message
	case CodeNotFound:
		return "Repository not found (404). Check the URL and make sure the repository is public."
	case CodeNotPublic:
		return "The repository is not public; private repositories are not supported."
	case CodeRateLimited:
		return "GitHub rate limit reached (403/429). Try again later or set GITHUB_TOKEN."
	case CodeRepoTooLarge:
		return "Repository too large or over the safety limits: " + message
	case CodeTimeout:
		return "GitHub request timed out. Try again later."
	case CodeCancelled:
		return "GitHub request cancelled."
	default:
		return "GitHub request failed: " + message
	}
}
