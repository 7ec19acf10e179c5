package textutil

import "strings"

// DefaultSnippetRunes bounds payload excerpts embedded in error messages.
const DefaultSnippetRunes = 160

var whitespaceReplacer = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// Snippet collapses whitespace and truncates content to limit runes so it can
// be embedded in a single log line or error string. Empty input yields "<empty>".
func Snippet(content string, limit int) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(whitespaceReplacer.Replace(trimmed)), " ")
	if limit <= 0 {
		limit = DefaultSnippetRunes
	}
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

// Truncate cuts value to at most limit runes without adding a marker.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
