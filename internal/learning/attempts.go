package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewQuizAttempt starts an in-progress attempt for chapterID.
func NewQuizAttempt(chapterID string, questions []QuizQuestion, now time.Time) QuizAttempt {
	now = now.UTC()
	return QuizAttempt{
		SchemaVersion: SchemaVersion,
		ID:            "quiz-" + uuid.NewString(),
		ChapterID:     chapterID,
		Status:        AttemptInProgress,
		Questions:     append([]QuizQuestion(nil), questions...),
		Responses:     []QuizResponse{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// BuildResponses merges new answers over existing ones in question order.
// Blank answers and earlier "(empty)" placeholders are omitted.
func BuildResponses(questions []QuizQuestion, answers map[string]string, existing []QuizResponse) []QuizResponse {
	previous := make(map[string]string, len(existing))
	for _, response := range existing {
		previous[response.QuestionID] = response.Answer
	}
	out := make([]QuizResponse, 0, len(questions))
	for _, question := range questions {
		raw, ok := answers[question.ID]
		if !ok && previous[question.ID] != emptyAnswer {
			raw = previous[question.ID]
		}
		answer := strings.TrimSpace(raw)
		if answer == "" {
			continue
		}
		out = append(out, QuizResponse{QuestionID: question.ID, Answer: answer})
	}
	return out
}

// AllAnswered reports whether every question has a non-blank answer.
func AllAnswered(questions []QuizQuestion, answers map[string]string) bool {
	for _, question := range questions {
		if strings.TrimSpace(answers[question.ID]) == "" {
			return false
		}
	}
	return true
}

// LatestAttempt returns the most recently updated attempt for chapterID.
func LatestAttempt(attempts []QuizAttempt, chapterID string) (QuizAttempt, bool) {
	var (
		latest QuizAttempt
		found  bool
	)
	for _, attempt := range attempts {
		if attempt.ChapterID != chapterID {
			continue
		}
		if !found || attempt.lastTouched().After(latest.lastTouched()) {
			latest = attempt
			found = true
		}
	}
	return latest, found
}

func (a QuizAttempt) lastTouched() time.Time {
	if a.UpdatedAt.IsZero() {
		return a.CreatedAt
	}
	return a.UpdatedAt
}

// ApplyGrading returns a completed copy of attempt carrying the grading's
// per-question scores and feedback. Responses follow question order; a
// question the grader scored without an answer gets an "(empty)" response so
// stored responses account for every score in the overall mean.
func ApplyGrading(attempt QuizAttempt, grading QuizGrading, now time.Time) QuizAttempt {
	graded := make(map[string]GradedResponse, len(grading.Responses))
	for _, response := range grading.Responses {
		graded[response.QuestionID] = response
	}
	answered := make(map[string]QuizResponse, len(attempt.Responses))
	for _, response := range attempt.Responses {
		answered[response.QuestionID] = response
	}

	out := attempt
	out.Questions = append([]QuizQuestion(nil), attempt.Questions...)
	out.Responses = make([]QuizResponse, 0, len(attempt.Questions))
	for _, question := range attempt.Questions {
		response, hasAnswer := answered[question.ID]
		verdict, hasVerdict := graded[question.ID]
		if !hasAnswer && !hasVerdict {
			continue
		}
		if !hasAnswer {
			response = QuizResponse{QuestionID: question.ID, Answer: emptyAnswer}
		}
		if hasVerdict {
			score := verdict.Score
			response.Score = &score
			response.Feedback = verdict.Feedback
		}
		out.Responses = append(out.Responses, response)
	}
	score := grading.Score
	out.Score = &score
	out.Feedback = grading.Feedback
	out.Status = AttemptCompleted
	out.UpdatedAt = now.UTC()
	return out
}

// Answered counts responses that carry a real answer.
func (a QuizAttempt) Answered() int {
	n := 0
	for _, response := range a.Responses {
		answer := strings.TrimSpace(response.Answer)
		if answer != "" && answer != emptyAnswer {
			n++
		}
	}
	return n
}
