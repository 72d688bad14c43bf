package transform

import (
	"strings"
	"unicode"
)

// TitleCase upper-cases the first letter of every whitespace-delimited word
// and lower-cases the rest. Whitespace is preserved as received.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	wordStart := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			wordStart = true
			b.WriteRune(r)
		case wordStart:
			wordStart = false
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
