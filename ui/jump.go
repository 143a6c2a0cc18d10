package ui

import (
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ailearninghub/hub/internal/pages"
)

// pageSource adapts pages to fuzzy.Source.
type pageSource []pages.Page

func (p pageSource) String(i int) string { return p[i].Text }
func (p pageSource) Len() int            { return len(p) }

// resolveJump turns a jump query into a chunk index. A number selects a
// chunk (1-based); anything else is fuzzy-matched against page text and
// selects the chunk holding the best match.
func resolveJump(query string, all []pages.Page) (int, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(query); err == nil {
		return n - 1, true
	}

	matches := fuzzy.FindFrom(query, pageSource(all))
	if len(matches) == 0 {
		return 0, false
	}
	return pages.ChunkIndexOf(matches[0].Index), true
}
