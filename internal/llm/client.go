package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"repolearn/internal/textutil"
)

const (
	jsonResponseType   = "json_object"
	jsonSchemaType     = "json_schema"
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel       = "google/gemini-2.0-flash-001"
	defaultCallTimeout = 30 * time.Second
	maxCallTimeout     = 2 * time.Minute
	maxSystemChars     = 20_000
	maxPromptChars     = 120_000
	maxOutputTokens    = 8192
	maxResponseBytes   = 8 << 20
)

// Config captures the runtime settings required to talk to the model provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// ChatClient wraps an OpenAI-compatible chat completion API. Each Generate
// performs exactly one HTTP request.
type ChatClient struct {
	cfg        Config
	httpClient *http.Client
	timeout    time.Duration
	newID      func() string
}

// Option customizes the client.
type Option func(*ChatClient)

// WithHTTPClient overrides the default HTTP client. Per-call deadlines are
// applied through the request context, so the client's own Timeout should
// normally be zero.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ChatClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestIDs overrides how request ids are minted (useful for tests).
func WithRequestIDs(fn func() string) Option {
	return func(c *ChatClient) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient constructs a chat client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *ChatClient {
	client := &ChatClient{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{},
		timeout:    defaultCallTimeout,
		newID:      uuid.NewString,
	}
	if cfg.TimeoutSeconds > 0 {
		client.timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	return client
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta chatCompletionMessage `json:"delta"`
		// Legacy "text" field (completion-style responses).
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content      string        `json:"content"`
	ToolCalls    []toolCall    `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
	Refusal      string        `json:"refusal"`
}

type toolCall struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Index    int          `json:"index"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Generate issues one chat completion request.
func (c *ChatClient) Generate(ctx context.Context, req Request) (Completion, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return Completion{}, newError(CodeCancelled, "request cancelled", err)
		}
		return Completion{}, newError(CodeTimeout, "request deadline exceeded", err)
	}
	if c.cfg.APIKey == "" {
		return Completion{}, newError(CodeConfigMissing, "api key required", nil)
	}
	payload, err := c.buildPayload(req)
	if err != nil {
		return Completion{}, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, newError(CodeInternalError, "encode request body", err)
	}

	timeout := clampTimeout(req.Timeout, c.timeout)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := c.newID()
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return Completion{}, newError(CodeInternalError, "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
		httpReq.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, classifyCallError(ctx, callCtx, timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Completion{}, classifyCallError(ctx, callCtx, timeout, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Completion{}, &Error{
			Code:    ClassifyStatus(resp.StatusCode),
			Message: upstreamMessage(body),
			Status:  resp.StatusCode,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return Completion{}, &Error{
			Code:    CodeInvalidResponse,
			Message: "decode response: " + textutil.Snippet(string(body), textutil.DefaultSnippetRunes),
			Status:  resp.StatusCode,
			Err:     err,
		}
	}
	if completion.Error != nil {
		return Completion{}, &Error{
			Code:    CodeUpstreamError,
			Message: strings.TrimSpace(completion.Error.Message),
			Status:  resp.StatusCode,
		}
	}
	content, finishReason := extractCompletionPayload(completion)
	if content == "" {
		return Completion{}, &Error{
			Code: CodeInvalidResponse,
			Message: fmt.Sprintf(
				"empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
				finishReason,
				extractCompletionRefusal(completion),
				textutil.Snippet(string(body), textutil.DefaultSnippetRunes),
			),
			Status: resp.StatusCode,
		}
	}
	model := strings.TrimSpace(completion.Model)
	if model == "" {
		model = payload.Model
	}
	if id := strings.TrimSpace(completion.ID); id != "" {
		requestID = id
	}
	return Completion{
		Text:         content,
		Model:        model,
		FinishReason: finishReason,
		RequestID:    requestID,
	}, nil
}

func (c *ChatClient) buildPayload(req Request) (chatCompletionRequest, error) {
	turns := req.Conversation()
	if len(turns) == 0 {
		return chatCompletionRequest{}, newError(CodeBadRequest, "provide either a prompt or messages", nil)
	}
	messages := make([]chatMessage, 0, len(turns))
	var userChars int
	for _, turn := range turns {
		switch turn.Role {
		case RoleSystem:
			if len([]rune(turn.Content)) > maxSystemChars {
				return chatCompletionRequest{}, newError(CodeBadRequest, fmt.Sprintf("system is too large (max %d chars)", maxSystemChars), nil)
			}
		case RoleUser:
			userChars += len([]rune(turn.Content))
		case RoleAssistant:
		default:
			return chatCompletionRequest{}, newError(CodeBadRequest, fmt.Sprintf("unsupported message role %q", turn.Role), nil)
		}
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	if userChars > maxPromptChars {
		return chatCompletionRequest{}, newError(CodeBadRequest, fmt.Sprintf("prompt is too large (max %d chars)", maxPromptChars), nil)
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	payload := chatCompletionRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: responseFormatPayload(req.ResponseFormat),
	}
	if req.Temperature != nil {
		temp := min(max(*req.Temperature, 0), 2)
		payload.Temperature = &temp
	}
	if req.MaxOutputTokens > 0 {
		payload.MaxTokens = min(req.MaxOutputTokens, maxOutputTokens)
	}
	return payload, nil
}

func responseFormatPayload(format ResponseFormat) any {
	if len(bytes.TrimSpace(format.Schema)) > 0 {
		name := strings.TrimSpace(format.Name)
		if name == "" {
			name = "response"
		}
		return jsonSchemaFormat{
			Type:       jsonSchemaType,
			JSONSchema: jsonSchemaSpec{Name: name, Schema: format.Schema},
		}
	}
	if strings.EqualFold(strings.TrimSpace(format.MimeType), "application/json") {
		return map[string]string{"type": jsonResponseType}
	}
	return nil
}

func clampTimeout(requested, fallback time.Duration) time.Duration {
	timeout := requested
	if timeout <= 0 {
		timeout = fallback
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return min(timeout, maxCallTimeout)
}

// classifyCallError separates caller cancellation from deadlines. Only
// context.Canceled on the caller's context is CANCELLED; the caller's own
// deadline and the per-call deadline are both TIMEOUT.
func classifyCallError(parent, call context.Context, timeout time.Duration, err error) *Error {
	if errors.Is(parent.Err(), context.Canceled) {
		return newError(CodeCancelled, "request cancelled", parent.Err())
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		return newError(CodeTimeout, "request deadline exceeded", err)
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return newError(CodeTimeout, fmt.Sprintf("request timed out after %s", timeout), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeTimeout, fmt.Sprintf("request timed out after %s", timeout), err)
	}
	return newError(CodeNetworkError, "network request failed", err)
}

func upstreamMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil && strings.TrimSpace(envelope.Error.Message) != "" {
			return strings.TrimSpace(envelope.Error.Message)
		}
		if strings.TrimSpace(envelope.Message) != "" {
			return strings.TrimSpace(envelope.Message)
		}
	}
	return textutil.Snippet(string(body), textutil.DefaultSnippetRunes)
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
		); content != "" {
			return content, finishReason
		}
		if args := firstNonEmpty(
			functionCallArguments(choice.Message.FunctionCall),
			functionCallArguments(choice.Delta.FunctionCall),
		); args != "" {
			return args, finishReason
		}
		if args := firstNonEmpty(
			toolCallArguments(choice.Message.ToolCalls),
			toolCallArguments(choice.Delta.ToolCalls),
		); args != "" {
			return args, finishReason
		}
	}
	return "", finishReason
}

func extractCompletionRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func functionCallArguments(fc *functionCall) string {
	if fc == nil {
		return ""
	}
	return strings.TrimSpace(fc.Arguments)
}

func toolCallArguments(calls []toolCall) string {
	for _, call := range calls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
