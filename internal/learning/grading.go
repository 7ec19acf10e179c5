package learning

import (
	"strings"
	"unicode/utf8"
)

const (
	longAnswerFeedback   = "Fairly complete answer. Add concrete file or function names and key flow details."
	mediumAnswerFeedback = "Some useful information. Add key evidence (paths or modules) and spell out your reasoning."
	shortAnswerFeedback  = "The answer is short. Lead with the conclusion, back it with files or modules, then walk through steps or an example."
	fallbackGradeSummary = "The scoring service is unavailable, so this is a heuristic score based on answer length " +
		"and not a real assessment. Try grading again later."
	emptyAnswer = "(empty)"
)

// GradingPolicy maps answer length to a heuristic score.
type GradingPolicy struct {
	// LongAnswerChars and MediumAnswerChars are rune counts of the trimmed answer.
	LongAnswerChars   int
	MediumAnswerChars int
	LongScore         float64
	MediumScore       float64
	ShortScore        float64
}

// DefaultGradingPolicy returns the standard thresholds (200 and 80 characters).
func DefaultGradingPolicy() GradingPolicy {
	return GradingPolicy{
		LongAnswerChars:   200,
		MediumAnswerChars: 80,
		LongScore:         0.7,
		MediumScore:       0.5,
		ShortScore:        0.3,
	}
}

// Score grades one trimmed answer.
func (p GradingPolicy) Score(answer string) (float64, string) {
	length := utf8.RuneCountInString(strings.TrimSpace(answer))
	switch {
	case length >= p.LongAnswerChars:
		return p.LongScore, longAnswerFeedback
	case length >= p.MediumAnswerChars:
		return p.MediumScore, mediumAnswerFeedback
	default:
		return p.ShortScore, shortAnswerFeedback
	}
}

// FallbackGrade scores every attempt question by answer length. The overall
// score is the mean clamped to [0, 1].
func FallbackGrade(attempt QuizAttempt, policy GradingPolicy) QuizGrading {
	answers := make(map[string]string, len(attempt.Responses))
	for _, response := range attempt.Responses {
		answers[response.QuestionID] = response.Answer
	}

	responses := make([]GradedResponse, 0, len(attempt.Questions))
	var total float64
	for _, question := range attempt.Questions {
		answer := strings.TrimSpace(answers[question.ID])
		score, feedback := policy.Score(answer)
		if answer == "" {
			answer = emptyAnswer
		}
		responses = append(responses, GradedResponse{
			QuestionID: question.ID,
			Answer:     answer,
			Score:      score,
			Feedback:   feedback,
		})
		total += score
	}

	return QuizGrading{
		SchemaVersion: SchemaVersion,
		Responses:     responses,
		Score:         clamp01(total / float64(max(1, len(responses)))),
		Feedback:      fallbackGradeSummary,
	}
}

// MissingGradedResponses lists attempt question ids the grading does not
// cover, in question order.
func MissingGradedResponses(attempt QuizAttempt, grading QuizGrading) []string {
	graded := make(map[string]struct{}, len(grading.Responses))
	for _, response := range grading.Responses {
		graded[response.QuestionID] = struct{}{}
	}
	var missing []string
	for _, question := range attempt.Questions {
		if _, ok := graded[question.ID]; !ok {
			missing = append(missing, question.ID)
		}
	}
	return missing
}

func clamp01(value float64) float64 {
	return min(1, max(0, value))
}
