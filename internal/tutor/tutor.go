package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"repolearn/internal/ingest"
	"repolearn/internal/learning"
	"repolearn/internal/llm"
	"repolearn/internal/logging"
	"repolearn/internal/prompts"
	"repolearn/internal/services"
	"repolearn/internal/structured"
)

// ErrCancelled is returned when the caller's context is cancelled. It
// matches both context.Canceled and services.ErrCancelled.
var ErrCancelled = services.Wrap(services.ErrCancelled, "tutor", "generate", "generation cancelled", context.Canceled)

// Outcome is the result of one orchestrated generation.
type Outcome[T any] struct {
	Value T
	// Fallback is true when Value is deterministic substitute content.
	Fallback bool
	// Code and Reason describe why the fallback was used.
	Code     llm.ErrorCode
	Reason   string
	Attempts int
}

// Tutor runs the learning orchestrations.
type Tutor struct {
	engine  *structured.Engine
	prompts *prompts.Builder
	policy  learning.GradingPolicy
	logger  *slog.Logger
}

// Option customizes a Tutor.
type Option func(*Tutor)

// WithLogger sets the tutor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tutor) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithPrompts replaces the default prompt builder.
func WithPrompts(builder *prompts.Builder) Option {
	return func(t *Tutor) {
		if builder != nil {
			t.prompts = builder
		}
	}
}

// WithGradingPolicy sets the heuristic used when grading falls back.
func WithGradingPolicy(policy learning.GradingPolicy) Option {
	return func(t *Tutor) {
		t.policy = policy
	}
}

// New constructs a tutor on top of engine.
func New(engine *structured.Engine, opts ...Option) *Tutor {
	t := &Tutor{
		engine:  engine,
		prompts: prompts.NewBuilder(prompts.Options{}),
		policy:  learning.DefaultGradingPolicy(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, "tutor")
	return t
}

// GeneratePlan produces the chapter plan for repo.
func (t *Tutor) GeneratePlan(ctx context.Context, repo *ingest.RepoContext) (Outcome[[]learning.ChapterPlan], error) {
	prompt, err := t.prompts.Plan(repo)
	return run(ctx, t, "plan", prompt, err, learning.PlanValidator, func() []learning.ChapterPlan {
		return learning.FallbackPlan(repoName(repo))
	})
}

// GenerateChapter produces chapter content for plan.
func (t *Tutor) GenerateChapter(ctx context.Context, repo *ingest.RepoContext, plan learning.ChapterPlan) (Outcome[learning.Chapter], error) {
	prompt, err := t.prompts.Chapter(repo, plan)
	return run(ctx, t, "chapter", prompt, err, learning.ChapterValidator, func() learning.Chapter {
		return learning.FallbackChapter(plan)
	})
}

// GenerateQuiz produces quiz questions for chapter.
func (t *Tutor) GenerateQuiz(ctx context.Context, repo *ingest.RepoContext, chapter learning.Chapter) (Outcome[[]learning.QuizQuestion], error) {
	prompt, err := t.prompts.Quiz(repo, chapter)
	outcome, err := run(ctx, t, "quiz", prompt, err, learning.QuizValidator, func() learning.QuizQuestionSet {
		return learning.QuizQuestionSet{SchemaVersion: learning.SchemaVersion, Questions: learning.FallbackQuiz()}
	})
	if err != nil {
		return Outcome[[]learning.QuizQuestion]{}, err
	}
	return Outcome[[]learning.QuizQuestion]{
		Value:    outcome.Value.Questions,
		Fallback: outcome.Fallback,
		Code:     outcome.Code,
		Reason:   outcome.Reason,
		Attempts: outcome.Attempts,
	}, nil
}

// GradeQuiz grades attempt. A grading that omits any attempt question is
// rejected and replaced by the heuristic grade.
func (t *Tutor) GradeQuiz(ctx context.Context, repo *ingest.RepoContext, chapter learning.Chapter, attempt learning.QuizAttempt) (Outcome[learning.QuizGrading], error) {
	fallback := func() learning.QuizGrading {
		return learning.FallbackGrade(attempt, t.policy)
	}
	prompt, err := t.prompts.Grading(repo, chapter, attempt)
	outcome, err := run(ctx, t, "grade", prompt, err, learning.GradingValidator, fallback)
	if err != nil || outcome.Fallback {
		return outcome, err
	}

	if missing := learning.MissingGradedResponses(attempt, outcome.Value); len(missing) > 0 {
		reason := "missing graded responses for: " + strings.Join(missing, ", ")
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "grading incomplete; using heuristic grade", "grading_incomplete",
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "quiz scored by answer length"),
			logging.String(logging.FieldErrorHint, "retry grading or try a stronger model"),
		)
		return Outcome[learning.QuizGrading]{
			Value:    fallback(),
			Fallback: true,
			Code:     structured.CodeValidationFailed,
			Reason:   reason,
			Attempts: outcome.Attempts,
		}, nil
	}
	return outcome, nil
}

// AnswerQuestion answers question about chapter, using the tail of history
// as conversational context.
func (t *Tutor) AnswerQuestion(ctx context.Context, repo *ingest.RepoContext, chapter learning.Chapter, history []learning.Message, question string) (Outcome[learning.QAAnswer], error) {
	if strings.TrimSpace(question) == "" {
		return Outcome[learning.QAAnswer]{}, services.Wrap(services.ErrValidation, "tutor", "ask", "question is empty", nil)
	}
	prompt, err := t.prompts.Question(repo, chapter, history, question)
	return run(ctx, t, "ask", prompt, err, learning.AnswerValidator, learning.FallbackAnswer)
}

func run[T any](
	ctx context.Context,
	t *Tutor,
	operation string,
	prompt prompts.Prompt,
	buildErr error,
	validator func() (*structured.SchemaValidator[T], error),
	fallback func() T,
) (Outcome[T], error) {
	ctx = services.WithOperation(ctx, operation)
	logger := logging.WithContext(ctx, t.logger)
	if errors.Is(ctx.Err(), context.Canceled) {
		return Outcome[T]{}, ErrCancelled
	}

	degrade := func(code llm.ErrorCode, reason string, attempts int) (Outcome[T], error) {
		logging.WarnWithContext(logger, "using fallback content", "generation_fallback",
			logging.String("code", string(code)),
			logging.String("reason", reason),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldImpact, "deterministic placeholder content returned"),
			logging.String(logging.FieldErrorHint, "check the llm settings and retry"),
		)
		return Outcome[T]{Value: fallback(), Fallback: true, Code: code, Reason: reason, Attempts: attempts}, nil
	}

	if buildErr != nil {
		return degrade(llm.CodeInternalError, fmt.Sprintf("build prompt: %v", buildErr), 0)
	}
	compiled, err := validator()
	if err != nil {
		return degrade(llm.CodeInternalError, fmt.Sprintf("compile schema %s: %v", prompt.Name, err), 0)
	}

	result := structured.Generate(ctx, t.engine, prompt.Request(), compiled)
	if value, ok := result.Value(); ok {
		logger.Debug("generation succeeded", logging.Int("attempts", result.Attempts()))
		return Outcome[T]{Value: value, Attempts: result.Attempts()}, nil
	}
	if result.Cancelled() || errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("generation cancelled", logging.Int("attempts", result.Attempts()))
		return Outcome[T]{Attempts: result.Attempts()}, ErrCancelled
	}
	failure, _ := result.Failure()
	return degrade(failure.Code, failure.Message, result.Attempts())
}

func repoName(repo *ingest.RepoContext) string {
	if repo == nil {
		return ""
	}
	return repo.Repo.Name
}
