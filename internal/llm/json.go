package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"repolearn/internal/textutil"
)

var (
	// ErrEmptyOutput is returned when the model produced only whitespace.
	ErrEmptyOutput = errors.New("empty output")
	// ErrNoJSON is returned when no extraction strategy yields valid JSON.
	ErrNoJSON = errors.New("no JSON value found in output")
)

var fencedBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ParseLoosely recovers a JSON value from model output. It tries, in order:
// the whole trimmed text, the interior of the first fenced code block, the
// span from the first '{' to the last '}', and the span from the first '['
// to the last ']'. The first candidate that parses wins.
func ParseLoosely(text string) (any, error) {
	candidate, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, fmt.Errorf("decode extracted json: %w", err)
	}
	return value, nil
}

// DecodeLoosely applies the ParseLoosely strategy and decodes the winning
// candidate into target.
func DecodeLoosely(text string, target any) error {
	candidate, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, textutil.Snippet(candidate, textutil.DefaultSnippetRunes))
	}
	return nil
}

func extractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyOutput
	}
	for _, candidate := range jsonCandidates(trimmed) {
		if candidate != "" && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", ErrNoJSON
}

func jsonCandidates(trimmed string) []string {
	out := make([]string, 0, 4)
	out = append(out, trimmed)
	if match := fencedBlockPattern.FindStringSubmatch(trimmed); match != nil {
		out = append(out, strings.TrimSpace(match[1]))
	}
	out = append(out, balancedSpan(trimmed, "{", "}"))
	out = append(out, balancedSpan(trimmed, "[", "]"))
	return out
}

func balancedSpan(text, open, close string) string {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
