package textutil

import (
	"strings"
	"unicode"
)

// SanitizeToken lowercases value and replaces every rune outside
// [a-z0-9_-] with an underscore. Leading and trailing separators are
// trimmed; the result is "unknown" when nothing remains.
func SanitizeToken(value string) string {
	mapped := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	if token := strings.Trim(mapped, "_-"); token != "" {
		return token
	}
	return "unknown"
}

// FileStem joins the sanitized parts with "-" for use as a file name.
func FileStem(parts ...string) string {
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		tokens = append(tokens, SanitizeToken(part))
	}
	return strings.Join(tokens, "-")
}
