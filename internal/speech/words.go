package speech

import "strings"

// WordIndexAt converts a boundary offset into the zero-based index of the
// word starting there: the spoken prefix is trimmed and its
// whitespace-separated tokens are counted.
func WordIndexAt(text string, charIndex int) int {
	if charIndex <= 0 {
		return 0
	}
	if charIndex > len(text) {
		charIndex = len(text)
	}
	return len(strings.Fields(text[:charIndex]))
}

// Words splits text the same way WordIndexAt counts it.
func Words(text string) []string {
	return strings.Fields(text)
}
