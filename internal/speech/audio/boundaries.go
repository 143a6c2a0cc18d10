package audio

import (
	"time"
	"unicode"
)

// Mark is the estimated moment a word starts.
type Mark struct {
	At        time.Duration
	CharIndex int
}

// Marks spreads the words of text over d, weighting each word by its
// length plus one for the following pause.
func Marks(text string, d time.Duration) []Mark {
	type word struct{ start, weight int }

	var (
		words []word
		total int
		in    bool
	)
	for i, r := range text {
		if unicode.IsSpace(r) {
			in = false
			continue
		}
		if !in {
			words = append(words, word{start: i, weight: 1})
			total++
			in = true
		}
		words[len(words)-1].weight++
		total++
	}
	if total == 0 {
		return nil
	}

	marks := make([]Mark, len(words))
	elapsed := 0
	for i, w := range words {
		marks[i] = Mark{
			At:        time.Duration(int64(d) * int64(elapsed) / int64(total)),
			CharIndex: w.start,
		}
		elapsed += w.weight
	}
	return marks
}
