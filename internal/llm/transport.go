package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat describes the shape the model is asked to produce.
type ResponseFormat struct {
	MimeType string
	// Name labels the schema for providers that require one.
	Name   string
	Schema json.RawMessage
}

// Request is one generation call. Either Messages or Prompt (with optional
// System) must be set; Messages wins when both are present.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Messages        []Message
	ResponseFormat  ResponseFormat
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// Conversation returns the turns the request resolves to. The returned slice
// is freshly allocated.
func (r Request) Conversation() []Message {
	if len(r.Messages) > 0 {
		out := make([]Message, len(r.Messages))
		copy(out, r.Messages)
		return out
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return nil
	}
	out := make([]Message, 0, 2)
	if strings.TrimSpace(r.System) != "" {
		out = append(out, Message{Role: RoleSystem, Content: r.System})
	}
	return append(out, Message{Role: RoleUser, Content: r.Prompt})
}

// Completion is a successful transport result.
type Completion struct {
	Text         string
	Model        string
	FinishReason string
	RequestID    string
}

// Transport sends one generation request. Implementations must honour ctx
// cancellation and report failures as *Error.
type Transport interface {
	Generate(ctx context.Context, req Request) (Completion, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Completion, error)

// Generate calls f.
func (f TransportFunc) Generate(ctx context.Context, req Request) (Completion, error) {
	return f(ctx, req)
}
