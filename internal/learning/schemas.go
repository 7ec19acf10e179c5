package learning

import (
	"embed"
	"fmt"
	"slices"
	"strings"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names double as provider response-format names.
const (
	SchemaChapterPlans  = "chapter_plans"
	SchemaChapter       = "chapter"
	SchemaQuizQuestions = "quiz_questions"
	SchemaQuizGrading   = "quiz_grading"
	SchemaQAAnswer      = "qa_answer"
)

// SchemaNames lists the embedded schema documents.
func SchemaNames() []string {
	return []string{SchemaChapterPlans, SchemaChapter, SchemaQuizQuestions, SchemaQuizGrading, SchemaQAAnswer}
}

// Schema returns the raw JSON Schema document for name.
func Schema(name string) ([]byte, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if !slices.Contains(SchemaNames(), name) {
		return nil, fmt.Errorf("unknown schema %q (known: %s)", name, strings.Join(SchemaNames(), ", "))
	}
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	return data, nil
}

func mustSchema(name string) []byte {
	data, err := Schema(name)
	if err != nil {
		panic(err)
	}
	return data
}
