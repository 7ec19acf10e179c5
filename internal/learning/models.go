package learning

import (
	"encoding/json"
	"time"
)

// SchemaVersion tags every versioned document.
const SchemaVersion = 1

// TaskStatus tracks progress on a chapter task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// ReadingItem points at a file or URL worth reading. At least one of URL or
// Path is set on validated items.
type ReadingItem struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Task is a hands-on exercise.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status      TaskStatus `json:"status" yaml:"status"`
}

// UnmarshalJSON defaults a missing status to todo.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Status == "" {
		decoded.Status = TaskTodo
	}
	*t = Task(decoded)
	return nil
}

// ChapterPlan is one unit of the curriculum before its content is generated.
type ChapterPlan struct {
	SchemaVersion    int           `json:"schemaVersion" yaml:"schemaVersion"`
	ID               string        `json:"id" yaml:"id"`
	Title            string        `json:"title" yaml:"title"`
	Summary          string        `json:"summary" yaml:"summary"`
	Objectives       []string      `json:"objectives" yaml:"objectives"`
	EstimatedMinutes int           `json:"estimatedMinutes,omitempty" yaml:"estimatedMinutes,omitempty"`
	ReadingItems     []ReadingItem `json:"readingItems" yaml:"readingItems"`
	Tasks            []Task        `json:"tasks" yaml:"tasks"`
}

// Chapter is a fully generated chapter.
type Chapter struct {
	SchemaVersion int           `json:"schemaVersion" yaml:"schemaVersion"`
	ID            string        `json:"id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	Summary       string        `json:"summary" yaml:"summary"`
	Content       string        `json:"content" yaml:"content"`
	Objectives    []string      `json:"objectives" yaml:"objectives"`
	ReadingItems  []ReadingItem `json:"readingItems" yaml:"readingItems"`
	Tasks         []Task        `json:"tasks" yaml:"tasks"`
}

// QuizQuestion is one open question with an optional grading rubric.
type QuizQuestion struct {
	ID     string `json:"id" yaml:"id"`
	Prompt string `json:"prompt" yaml:"prompt"`
	Rubric string `json:"rubric,omitempty" yaml:"rubric,omitempty"`
}

// QuizQuestionSet is the generated question document.
type QuizQuestionSet struct {
	SchemaVersion int            `json:"schemaVersion" yaml:"schemaVersion"`
	Questions     []QuizQuestion `json:"questions" yaml:"questions"`
}

// QuizResponse is a learner's answer, scored once graded.
type QuizResponse struct {
	QuestionID string   `json:"questionId" yaml:"questionId"`
	Answer     string   `json:"answer" yaml:"answer"`
	Score      *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Feedback   string   `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// AttemptStatus tracks a quiz attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// QuizAttempt is one sitting of a chapter quiz.
type QuizAttempt struct {
	SchemaVersion int            `json:"schemaVersion" yaml:"schemaVersion"`
	ID            string         `json:"id" yaml:"id"`
	ChapterID     string         `json:"chapterId" yaml:"chapterId"`
	Status        AttemptStatus  `json:"status" yaml:"status"`
	Questions     []QuizQuestion `json:"questions" yaml:"questions"`
	Responses     []QuizResponse `json:"responses" yaml:"responses"`
	Score         *float64       `json:"score,omitempty" yaml:"score,omitempty"`
	Feedback      string         `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// GradedResponse is the grader's verdict on one answer.
type GradedResponse struct {
	QuestionID string  `json:"questionId" yaml:"questionId"`
	Answer     string  `json:"answer" yaml:"answer"`
	Score      float64 `json:"score" yaml:"score"`
	Feedback   string  `json:"feedback" yaml:"feedback"`
}

// QuizGrading is the grader's verdict on a whole attempt.
type QuizGrading struct {
	SchemaVersion int              `json:"schemaVersion" yaml:"schemaVersion"`
	Responses     []GradedResponse `json:"responses" yaml:"responses"`
	Score         float64          `json:"score" yaml:"score"`
	Feedback      string           `json:"feedback" yaml:"feedback"`
}

// QAAnswer answers a free-form question about the repository.
type QAAnswer struct {
	Answer    string   `json:"answer" yaml:"answer"`
	Citations []string `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// MessageRole identifies the author of a Q&A exchange turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of a chapter Q&A conversation.
type Message struct {
	Role      MessageRole `json:"role" yaml:"role"`
	Content   string      `json:"content" yaml:"content"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
}

// FindPlan returns the chapter plan with id.
func FindPlan(plans []ChapterPlan, id string) (ChapterPlan, bool) {
	for _, plan := range plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return ChapterPlan{}, false
}
