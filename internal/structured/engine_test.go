package structured_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"repolearn/internal/llm"
	"repolearn/internal/structured"
	"repolearn/internal/testsupport"
)

type greeting struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

const greetingSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["message", "count"],
  "properties": {
    "message": {"type": "string", "minLength": 1},
    "count": {"type": "integer", "minimum": 1}
  }
}`

func newGreetingValidator(t *testing.T) *structured.SchemaValidator[greeting] {
	t.Helper()
	validator, err := structured.NewSchemaValidator[greeting]([]byte(greetingSchema))
	if err != nil {
		t.Fatalf("NewSchemaValidator: %v", err)
	}
	return validator
}

func greetingRequest(maxAttempts int) structured.Request {
	return structured.Request{
		Name:        "greeting",
		System:      "be terse",
		Prompt:      "say hi",
		Schema:      []byte(greetingSchema),
		MaxAttempts: maxAttempts,
	}
}

func TestGenerateRepairsNonJSONOutput(t *testing.T) {
	transport := testsupport.NewScriptedTransport(
		testsupport.Reply("sorry, here you go"),
		testsupport.Reply("```json\n{\"message\":\"hi\",\"count\":1}\n```"),
	)
	engine := structured.NewEngine(transport)

	result := structured.Generate(context.Background(), engine, greetingRequest(2), newGreetingValidator(t))
	value, ok := result.Value()
	if !ok {
		failure, _ := result.Failure()
		t.Fatalf("expected success, got %v", failure)
	}
	if value.Message != "hi" || value.Count != 1 {
		t.Fatalf("unexpected value: %+v", value)
	}
	if result.Attempts() != 2 {
		t.Fatalf("expected 2 attempts, got %d", result.Attempts())
	}

	calls := transport.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 transport calls, got %d", len(calls))
	}
	if calls[0].Prompt != "say hi" || calls[0].System != "be terse" || len(calls[0].Messages) != 0 {
		t.Fatalf("first call should carry system and prompt unchanged: %+v", calls[0])
	}
	repair := calls[1].Messages
	if len(repair) != 4 {
		t.Fatalf("expected 4 turns on the repair attempt, got %d", len(repair))
	}
	if repair[0].Role != llm.RoleSystem || repair[1].Role != llm.RoleUser {
		t.Fatalf("repair should start with the base turns: %+v", repair)
	}
	if repair[2].Role != llm.RoleAssistant || repair[2].Content != "sorry, here you go" {
		t.Fatalf("expected rejected output as assistant turn, got %+v", repair[2])
	}
	if repair[3].Role != llm.RoleUser || !strings.HasPrefix(repair[3].Content, "Your previous output was invalid. Fix it and output JSON only. Error: ") {
		t.Fatalf("unexpected corrective turn: %q", repair[3].Content)
	}
	if calls[1].ResponseFormat.MimeType != "application/json" || calls[1].ResponseFormat.Name != "greeting" {
		t.Fatalf("unexpected response format: %+v", calls[1].ResponseFormat)
	}
}

func TestGenerateValidationExhaustedKeepsLastRawOutput(t *testing.T) {
	transport := testsupport.NewScriptedTransport(
		testsupport.Reply(`{"message":"","count":1}`),
		testsupport.Reply(`{"message":"hi"}`),
		testsupport.Reply(`{"message":"hi","count":0}`),
	)
	engine := structured.NewEngine(transport)

	result := structured.Generate(context.Background(), engine, greetingRequest(0), newGreetingValidator(t))
	if result.OK() {
		t.Fatal("expected failure")
	}
	failure, _ := result.Failure()
	if failure.Code != structured.CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %s", failure.Code)
	}
	if failure.LastRawOutput != `{"message":"hi","count":0}` {
		t.Fatalf("unexpected last raw output: %q", failure.LastRawOutput)
	}
	if result.Attempts() != structured.DefaultMaxAttempts {
		t.Fatalf("expected default attempts, got %d", result.Attempts())
	}

	calls := transport.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	third := calls[2].Messages
	if len(third) != 6 {
		t.Fatalf("expected 6 turns on the third attempt, got %d", len(third))
	}
	if third[4].Content != `{"message":"hi"}` {
		t.Fatalf("expected second output replayed, got %q", third[4].Content)
	}
	if !strings.HasPrefix(third[5].Content, "Fix the JSON only. Error: ") {
		t.Fatalf("unexpected later corrective turn: %q", third[5].Content)
	}
	if len(calls[1].Messages) != 4 {
		t.Fatalf("earlier conversations must not grow after being sent, got %d", len(calls[1].Messages))
	}
}

func TestGenerateExtractionFailureOnSingleAttempt(t *testing.T) {
	transport := testsupport.NewScriptedTransport(testsupport.Reply("no json here"))
	engine := structured.NewEngine(transport)

	result := structured.Generate(context.Background(), engine, greetingRequest(1), newGreetingValidator(t))
	failure, ok := result.Failure()
	if !ok {
		t.Fatal("expected failure")
	}
	if failure.Code != structured.CodeExtractionFailed {
		t.Fatalf("expected EXTRACTION_FAILED, got %s", failure.Code)
	}
	if failure.LastRawOutput != "no json here" {
		t.Fatalf("unexpected raw output: %q", failure.LastRawOutput)
	}
	if len(transport.Calls()) != 1 {
		t.Fatalf("expected a single call, got %d", len(transport.Calls()))
	}
}

func TestGenerateStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transport := testsupport.NewScriptedTransport(
		testsupport.Cancel(cancel),
		testsupport.Reply(`{"message":"hi","count":1}`),
	)
	engine := structured.NewEngine(transport)

	result := structured.Generate(ctx, engine, greetingRequest(3), newGreetingValidator(t))
	if !result.Cancelled() {
		t.Fatalf("expected cancelled result, got %+v", result)
	}
	if len(transport.Calls()) != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d calls", len(transport.Calls()))
	}
	if result.Attempts() != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts())
	}
}

func TestGenerateRetriesRetriableTransportErrorsWithoutRepair(t *testing.T) {
	for _, code := range []llm.ErrorCode{
		llm.CodeTimeout,
		llm.CodeUpstreamRateLimit,
		llm.CodeUpstreamError,
		llm.CodeNetworkError,
		llm.CodeInvalidResponse,
		llm.CodeInternalError,
	} {
		t.Run(string(code), func(t *testing.T) {
			transport := testsupport.NewScriptedTransport(
				testsupport.Fail(code),
				testsupport.Reply(`{"message":"hi","count":2}`),
			)
			engine := structured.NewEngine(transport)

			result := structured.Generate(context.Background(), engine, greetingRequest(3), newGreetingValidator(t))
			if !result.OK() {
				t.Fatalf("expected success after retry, got %+v", result)
			}
			calls := transport.Calls()
			if len(calls) != 2 {
				t.Fatalf("expected 2 calls, got %d", len(calls))
			}
			if len(calls[1].Messages) != 0 || calls[1].Prompt != "say hi" {
				t.Fatalf("retry after transport error must resend the original request: %+v", calls[1])
			}
		})
	}
}

func TestGenerateTerminalTransportErrors(t *testing.T) {
	for _, code := range []llm.ErrorCode{
		llm.CodeUpstreamUnauthorized,
		llm.CodeBadRequest,
		llm.CodeConfigMissing,
		llm.CodeMethodNotAllowed,
	} {
		t.Run(string(code), func(t *testing.T) {
			transport := testsupport.NewScriptedTransport(
				testsupport.Fail(code),
				testsupport.Reply(`{"message":"hi","count":2}`),
			)
			engine := structured.NewEngine(transport)

			result := structured.Generate(context.Background(), engine, greetingRequest(3), newGreetingValidator(t))
			failure, ok := result.Failure()
			if !ok || failure.Code != code {
				t.Fatalf("expected terminal %s, got %+v", code, result)
			}
			if len(transport.Calls()) != 1 {
				t.Fatalf("expected a single call, got %d", len(transport.Calls()))
			}
		})
	}
}

func TestGenerateRetriableErrorOnLastAttemptFails(t *testing.T) {
	transport := testsupport.NewScriptedTransport(
		testsupport.Fail(llm.CodeTimeout),
		testsupport.Fail(llm.CodeTimeout),
	)
	engine := structured.NewEngine(transport)

	result := structured.Generate(context.Background(), engine, greetingRequest(2), newGreetingValidator(t))
	failure, ok := result.Failure()
	if !ok || failure.Code != llm.CodeTimeout {
		t.Fatalf("expected TIMEOUT failure, got %+v", result)
	}
	if result.Cancelled() {
		t.Fatal("timeout must not be reported as cancellation")
	}
}

func TestGenerateRejectsEmptyRequest(t *testing.T) {
	transport := testsupport.NewScriptedTransport()
	engine := structured.NewEngine(transport)

	result := structured.Generate(context.Background(), engine, structured.Request{Prompt: "  "}, newGreetingValidator(t))
	failure, ok := result.Failure()
	if !ok || failure.Code != llm.CodeBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %+v", result)
	}
	if result.Attempts() != 0 || len(transport.Calls()) != 0 {
		t.Fatal("expected no transport calls")
	}
}

func TestGenerateUsesCallerMessagesAndDefaults(t *testing.T) {
	temperature := 0.4
	transport := testsupport.NewScriptedTransport(testsupport.Reply(`[1,2,3]`))
	engine := structured.NewEngine(transport, structured.WithDefaults(structured.Defaults{
		MaxAttempts:     1,
		Temperature:     &temperature,
		MaxOutputTokens: 512,
		Model:           "default/model",
	}))

	validator := structured.ValidatorFunc[[]float64](func(value any) ([]float64, error) {
		items, ok := value.([]any)
		if !ok {
			return nil, errors.New("expected array")
		}
		out := make([]float64, 0, len(items))
		for _, item := range items {
			number, ok := item.(float64)
			if !ok {
				return nil, errors.New("expected numbers")
			}
			out = append(out, number)
		}
		return out, nil
	})

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "second"},
	}
	result := structured.Generate(context.Background(), engine, structured.Request{Messages: messages}, validator)
	value, ok := result.Value()
	if !ok || len(value) != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	call := transport.Calls()[0]
	if len(call.Messages) != 4 || call.Messages[3].Content != "second" {
		t.Fatalf("expected caller messages forwarded, got %+v", call.Messages)
	}
	if call.Model != "default/model" || call.MaxOutputTokens != 512 {
		t.Fatalf("expected engine defaults applied: %+v", call)
	}
	if call.Temperature == nil || *call.Temperature != 0.4 {
		t.Fatalf("expected default temperature, got %v", call.Temperature)
	}

	call.Messages[0].Content = "mutated"
	if messages[0].Content != "sys" {
		t.Fatal("caller messages must not alias transport request")
	}
}
