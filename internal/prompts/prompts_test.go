package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"repolearn/internal/learning"
)

func TestBuildersAttachSchemas(t *testing.T) {
	b := NewBuilder(Options{})
	repo := sampleContext()
	plan := learning.FallbackPlan("widget")[0]
	chapter := learning.FallbackChapter(plan)
	attempt := learning.NewQuizAttempt(chapter.ID, learning.FallbackQuiz(), time.Unix(0, 0))

	build := map[string]func() (Prompt, error){
		learning.SchemaChapterPlans:  func() (Prompt, error) { return b.Plan(repo) },
		learning.SchemaChapter:       func() (Prompt, error) { return b.Chapter(repo, plan) },
		learning.SchemaQuizQuestions: func() (Prompt, error) { return b.Quiz(repo, chapter) },
		learning.SchemaQuizGrading:   func() (Prompt, error) { return b.Grading(repo, chapter, attempt) },
		learning.SchemaQAAnswer: func() (Prompt, error) {
			return b.Question(repo, chapter, nil, "Where is main?")
		},
	}
	for name, fn := range build {
		t.Run(name, func(t *testing.T) {
			prompt, err := fn()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if prompt.Name != name {
				t.Fatalf("name = %q, want %q", prompt.Name, name)
			}
			if !json.Valid(prompt.Schema) {
				t.Fatal("schema is not valid JSON")
			}
			if !strings.Contains(prompt.System, "PromptVersion: 1") || !strings.Contains(prompt.System, "untrusted data") {
				t.Fatalf("unexpected system prompt:\n%s", prompt.System)
			}
			if !strings.Contains(prompt.Prompt, filesBanner) {
				t.Fatal("prompt is missing the repo context")
			}
			req := prompt.Request()
			if req.Name != name || req.System != prompt.System || req.Prompt != prompt.Prompt || req.ResponseFormat != "application/json" {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestQuestionKeepsRecentHistory(t *testing.T) {
	b := NewBuilder(Options{})
	var history []learning.Message
	for i := range 12 {
		history = append(history, learning.Message{Role: learning.RoleUser, Content: fmt.Sprintf("turn-%02d", i)})
	}
	prompt, err := b.Question(sampleContext(), learning.Chapter{ID: "c1"}, history, "  what next?  ")
	if err != nil {
		t.Fatalf("Question: %v", err)
	}
	if strings.Contains(prompt.Prompt, "turn-03") {
		t.Fatal("old history leaked into prompt")
	}
	for _, want := range []string{"turn-04", "turn-11", "User question:\nwhat next?\n"} {
		if !strings.Contains(prompt.Prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestQuestionWithoutHistoryEncodesEmptyList(t *testing.T) {
	prompt, err := NewBuilder(Options{}).Question(sampleContext(), learning.Chapter{}, nil, "q")
	if err != nil {
		t.Fatalf("Question: %v", err)
	}
	if !strings.Contains(prompt.Prompt, "Conversation history (most recent last):\n[]\n") {
		t.Fatalf("expected empty history list:\n%s", prompt.Prompt)
	}
}

func TestQuizContextIsSmallerThanPlanContext(t *testing.T) {
	repo := sampleContext()
	repo.Files[0].Content = strings.Repeat("x", 5000)
	repo.Files[1].Content = strings.Repeat("y", 5000)
	b := NewBuilder(Options{MaxContextChars: 100000, MaxFileChars: 50000})

	plan, err := b.Plan(repo)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if strings.Contains(plan.Prompt, "CONTEXT_CAPPED") {
		t.Fatal("plan context should fit")
	}
	repo.Files[0].Content = strings.Repeat("x", 40000)
	quiz, err := b.Quiz(repo, learning.Chapter{ID: "c1"})
	if err != nil {
		t.Fatalf("Quiz: %v", err)
	}
	if !strings.Contains(quiz.Prompt, "[CONTEXT_CAPPED: maxTotalChars=30000]") {
		t.Fatal("quiz context should be capped at 30000 characters")
	}
}
