package learning

import (
	"fmt"
	"strings"
	"sync"

	"repolearn/internal/structured"
)

var (
	planValidator = sync.OnceValues(func() (*structured.SchemaValidator[[]ChapterPlan], error) {
		return structured.NewSchemaValidator[[]ChapterPlan](mustSchema(SchemaChapterPlans), checkPlans)
	})
	chapterValidator = sync.OnceValues(func() (*structured.SchemaValidator[Chapter], error) {
		return structured.NewSchemaValidator[Chapter](mustSchema(SchemaChapter), checkChapter)
	})
	quizValidator = sync.OnceValues(func() (*structured.SchemaValidator[QuizQuestionSet], error) {
		return structured.NewSchemaValidator[QuizQuestionSet](mustSchema(SchemaQuizQuestions), checkQuestions)
	})
	gradingValidator = sync.OnceValues(func() (*structured.SchemaValidator[QuizGrading], error) {
		return structured.NewSchemaValidator[QuizGrading](mustSchema(SchemaQuizGrading))
	})
	answerValidator = sync.OnceValues(func() (*structured.SchemaValidator[QAAnswer], error) {
		return structured.NewSchemaValidator[QAAnswer](mustSchema(SchemaQAAnswer))
	})
)

// PlanValidator validates a chapter plan collection.
func PlanValidator() (*structured.SchemaValidator[[]ChapterPlan], error) { return planValidator() }

// ChapterValidator validates a single chapter.
func ChapterValidator() (*structured.SchemaValidator[Chapter], error) { return chapterValidator() }

// QuizValidator validates a quiz question set.
func QuizValidator() (*structured.SchemaValidator[QuizQuestionSet], error) { return quizValidator() }

// GradingValidator validates a quiz grading.
func GradingValidator() (*structured.SchemaValidator[QuizGrading], error) { return gradingValidator() }

// AnswerValidator validates a Q&A answer.
func AnswerValidator() (*structured.SchemaValidator[QAAnswer], error) { return answerValidator() }

func checkPlans(plans []ChapterPlan) error {
	seen := make(map[string]struct{}, len(plans))
	for i, plan := range plans {
		if _, dup := seen[plan.ID]; dup {
			return fmt.Errorf("%d.id: duplicate chapter id %q", i, plan.ID)
		}
		seen[plan.ID] = struct{}{}
		if err := checkReadingItems(fmt.Sprintf("%d.readingItems", i), plan.ReadingItems); err != nil {
			return err
		}
	}
	return nil
}

func checkChapter(chapter Chapter) error {
	return checkReadingItems("readingItems", chapter.ReadingItems)
}

func checkReadingItems(prefix string, items []ReadingItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.URL) == "" && strings.TrimSpace(item.Path) == "" {
			return fmt.Errorf("%s.%d: reading item requires url or path", prefix, i)
		}
	}
	return nil
}

func checkQuestions(set QuizQuestionSet) error {
	seen := make(map[string]struct{}, len(set.Questions))
	for i, question := range set.Questions {
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("questions.%d.id: duplicate question id %q", i, question.ID)
		}
		seen[question.ID] = struct{}{}
	}
	return nil
}
