package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"id":    "gen-1",
			"model": "demo-model",
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}
}

func TestClientGenerateSendsConversation(t *testing.T) {
	var captured chatCompletionRequest
	var auth, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		completionHandler(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "repolearn"})
	temp := 3.5
	completion, err := client.Generate(context.Background(), Request{
		System:          "system text",
		Prompt:          "user text",
		Temperature:     &temp,
		MaxOutputTokens: 100_000,
		ResponseFormat: ResponseFormat{
			MimeType: "application/json",
			Name:     "chapter",
			Schema:   json.RawMessage(`{"type":"object"}`),
		},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if completion.Text != `{"ok":true}` || completion.Model != "demo-model" || completion.FinishReason != "stop" {
		t.Fatalf("unexpected completion %+v", completion)
	}
	if completion.RequestID != "gen-1" {
		t.Fatalf("expected provider id to be used as request id, got %q", completion.RequestID)
	}
	if auth != "Bearer test" || title != "repolearn" {
		t.Fatalf("unexpected headers auth=%q title=%q", auth, title)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "user text" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if captured.Temperature == nil || *captured.Temperature != 2 {
		t.Fatalf("expected temperature clamped to 2, got %v", captured.Temperature)
	}
	if captured.MaxTokens != maxOutputTokens {
		t.Fatalf("expected max tokens clamped to %d, got %d", maxOutputTokens, captured.MaxTokens)
	}
	format, ok := captured.ResponseFormat.(map[string]any)
	if !ok || format["type"] != jsonSchemaType {
		t.Fatalf("expected json_schema response format, got %#v", captured.ResponseFormat)
	}
	spec, _ := format["json_schema"].(map[string]any)
	if spec["name"] != "chapter" {
		t.Fatalf("expected schema name chapter, got %#v", spec)
	}
}

func TestClientGenerateToolCallArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"type": "function",
								"id":   "call_1",
								"function": map[string]any{
									"name":      "emit",
									"arguments": `{"answer":"yes"}`,
								},
							},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"}, WithRequestIDs(func() string { return "req-fixed" }))
	completion, err := client.Generate(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if completion.Text != `{"answer":"yes"}` {
		t.Fatalf("expected tool call arguments, got %q", completion.Text)
	}
	if completion.RequestID != "req-fixed" || completion.Model != "demo-model" {
		t.Fatalf("unexpected completion metadata %+v", completion)
	}
}

func TestClientGenerateStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusTooManyRequests, CodeUpstreamRateLimit},
		{http.StatusUnauthorized, CodeUpstreamUnauthorized},
		{http.StatusBadRequest, CodeBadRequest},
		{http.StatusServiceUnavailable, CodeUpstreamError},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "upstream says no"}})
		}))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
		_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
		server.Close()

		var llmErr *Error
		if !errors.As(err, &llmErr) {
			t.Fatalf("status %d: expected *Error, got %v", tc.status, err)
		}
		if llmErr.Code != tc.want || llmErr.Status != tc.status {
			t.Fatalf("status %d: got code %s status %d", tc.status, llmErr.Code, llmErr.Status)
		}
		if llmErr.Message != "upstream says no" {
			t.Fatalf("status %d: expected upstream message, got %q", tc.status, llmErr.Message)
		}
	}
}

func TestClientGenerateMissingKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if CodeOf(err) != CodeConfigMissing {
		t.Fatalf("expected CONFIG_MISSING, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream call, got %d", calls.Load())
	}
}

func TestClientGenerateRejectsEmptyRequest(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	_, err := client.Generate(context.Background(), Request{System: "only system"})
	if CodeOf(err) != CodeBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}

func TestClientGenerateEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, ""))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if CodeOf(err) != CodeInvalidResponse {
		t.Fatalf("expected INVALID_RESPONSE, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientGenerateUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if CodeOf(err) != CodeInvalidResponse {
		t.Fatalf("expected INVALID_RESPONSE, got %v", err)
	}
}

func TestClientGenerateTimeoutIsNotCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Request{Prompt: "hi", Timeout: 50 * time.Millisecond})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("timeout must not look like caller cancellation: %v", err)
	}
}

func TestClientGenerateCallerDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(ctx, Request{Prompt: "hi", Timeout: 10 * time.Second})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("caller deadline must not look like cancellation: %v", err)
	}
	if !Retriable(CodeOf(err)) {
		t.Fatalf("expected TIMEOUT to stay retriable")
	}

	_, err = client.Generate(ctx, Request{Prompt: "again"})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("expected TIMEOUT for an expired context, got %v", err)
	}
}

func TestClientGenerateCallerCancellation(t *testing.T) {
	arrived := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(ctx, Request{Prompt: "hi", Timeout: 10 * time.Second})
	if CodeOf(err) != CodeCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected error to wrap context.Canceled, got %v", err)
	}
}

func TestClientGenerateAlreadyCancelled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.Generate(ctx, Request{Prompt: "hi"}); CodeOf(err) != CodeCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream call, got %d", calls.Load())
	}
}
