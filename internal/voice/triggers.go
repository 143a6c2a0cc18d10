package voice

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultTriggers are the wake phrases.
var DefaultTriggers = []string{"uncle x", "hey x", "question", "explain"}

// Matches reports whether transcript contains one of the triggers,
// ignoring case.
func Matches(transcript string, triggers []string) bool {
	fold := cases.Fold()
	t := fold.String(strings.TrimSpace(transcript))
	for _, kw := range triggers {
		if kw = fold.String(strings.TrimSpace(kw)); kw != "" && strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
