// Package normalize canonicalises raw extracted text for keyword
// matching. All functions are pure and deterministic.
package normalize

import (
	"strings"
	"unicode"
)

// Text lowercases the input, strips control characters, and collapses
// whitespace runs to single spaces. Numeric tokens and punctuation stay
// intact so multi-word keyword phrases still match. Empty or
// all-whitespace input yields the empty string; Text never errors.
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// Control characters that are not whitespace are dropped
			// without acting as separators.
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
