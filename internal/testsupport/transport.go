package testsupport

import (
	"context"
	"sync"

	"repolearn/internal/llm"
)

// Step is one scripted transport outcome.
type Step func(ctx context.Context, req llm.Request) (llm.Completion, error)

// Reply answers with text.
func Reply(text string) Step {
	return func(context.Context, llm.Request) (llm.Completion, error) {
		return llm.Completion{Text: text, Model: "scripted", FinishReason: "stop"}, nil
	}
}

// Fail returns a transport error carrying code.
func Fail(code llm.ErrorCode) Step {
	return func(context.Context, llm.Request) (llm.Completion, error) {
		return llm.Completion{}, &llm.Error{Code: code, Message: "scripted " + string(code)}
	}
}

// Cancel cancels the caller's context through cancel and then reports
// CANCELLED, the way a real transport observes an abort mid-call.
func Cancel(cancel context.CancelFunc) Step {
	return func(ctx context.Context, _ llm.Request) (llm.Completion, error) {
		cancel()
		<-ctx.Done()
		return llm.Completion{}, &llm.Error{Code: llm.CodeCancelled, Message: "request cancelled", Err: ctx.Err()}
	}
}

// ScriptedTransport replays steps in order and records every request. Calls
// beyond the script fail with INTERNAL_ERROR.
type ScriptedTransport struct {
	mu    sync.Mutex
	steps []Step
	calls []llm.Request
}

// NewScriptedTransport builds a transport that plays steps in order.
func NewScriptedTransport(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

// Generate implements llm.Transport.
func (s *ScriptedTransport) Generate(ctx context.Context, req llm.Request) (llm.Completion, error) {
	s.mu.Lock()
	index := len(s.calls)
	s.calls = append(s.calls, req)
	var step Step
	if index < len(s.steps) {
		step = s.steps[index]
	}
	s.mu.Unlock()

	if step == nil {
		return llm.Completion{}, &llm.Error{Code: llm.CodeInternalError, Message: "script exhausted"}
	}
	return step(ctx, req)
}

// Calls returns a copy of the recorded requests.
func (s *ScriptedTransport) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.calls))
	copy(out, s.calls)
	return out
}
