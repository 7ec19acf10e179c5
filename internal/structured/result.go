package structured

import (
	"fmt"

	"repolearn/internal/llm"
)

// Engine-level failure causes. Transport failures keep their llm.ErrorCode.
const (
	CodeExtractionFailed llm.ErrorCode = "EXTRACTION_FAILED"
	CodeValidationFailed llm.ErrorCode = "VALIDATION_FAILED"
)

// Failure describes why a generation ended without data.
type Failure struct {
	Code    llm.ErrorCode
	Message string
	// LastRawOutput is the last text the model produced, when any.
	LastRawOutput string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Result is the terminal outcome of Generate: either a value or a Failure,
// never both. Results are plain values and are not modified after return.
type Result[T any] struct {
	value    T
	failure  *Failure
	attempts int
}

func succeeded[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func failed[T any](f Failure, attempts int) Result[T] {
	return Result[T]{failure: &f, attempts: attempts}
}

// OK reports whether the result carries data.
func (r Result[T]) OK() bool {
	return r.failure == nil
}

// Value returns the validated data and true on success.
func (r Result[T]) Value() (T, bool) {
	if r.failure != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Failure returns the failure and true when the generation did not succeed.
func (r Result[T]) Failure() (Failure, bool) {
	if r.failure == nil {
		return Failure{}, false
	}
	return *r.failure, true
}

// Cancelled reports whether the caller aborted the generation.
func (r Result[T]) Cancelled() bool {
	return r.failure != nil && r.failure.Code == llm.CodeCancelled
}

// Attempts is the number of transport calls that were made.
func (r Result[T]) Attempts() int {
	return r.attempts
}
