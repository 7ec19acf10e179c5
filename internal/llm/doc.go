// Package llm is the boundary to the text-generating model.
//
// It owns three things:
//
//   - The Transport contract: one request in, one completion or one *Error
//     out. Errors always carry an ErrorCode from a closed set so callers can
//     decide whether to retry without parsing messages.
//   - ChatClient, an OpenAI-compatible chat completions transport (OpenRouter
//     by default). The client performs exactly one HTTP call per Generate and
//     never retries on its own; retry policy belongs to the caller.
//   - ParseLoosely / DecodeLoosely, which recover a JSON value from model
//     output that may be wrapped in prose or markdown fences.
//
// Classification helpers (ClassifyStatus, Retriable, CodeOf) are pure total
// functions so the error taxonomy stays auditable in one place.
package llm
