// Package pages holds the page model of an uploaded document and the
// fixed-size chunking that turns pages into lecture segments.
package pages

import (
	"fmt"
	"strings"
)

// PagesPerChunk is the number of consecutive pages summarized together.
const PagesPerChunk = 3

// PromptSeparator separates pages inside a summarize prompt.
const PromptSeparator = "\n\n---\n\n"

// Page is the extracted text of one page or slide. Page numbers are
// 1-based.
type Page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Chunk is a run of up to PagesPerChunk consecutive pages.
type Chunk struct {
	Index int
	Pages []Page
}

// TotalChunks returns the number of chunks for n pages. It is never less
// than one, so an empty document still has a single (empty) chunk.
func TotalChunks(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PagesPerChunk - 1) / PagesPerChunk
}

// ChunkIndexOf returns the chunk holding the page at the given zero-based
// ordinal position.
func ChunkIndexOf(ordinal int) int {
	if ordinal < 0 {
		return 0
	}
	return ordinal / PagesPerChunk
}

// GetChunk returns chunk i of all. An out-of-range index or an empty page
// list yields a chunk without pages.
func GetChunk(all []Page, i int) Chunk {
	start := i * PagesPerChunk
	if i < 0 || start >= len(all) {
		return Chunk{Index: i}
	}
	end := min(start+PagesPerChunk, len(all))
	return Chunk{Index: i, Pages: all[start:end]}
}

// Split partitions all into consecutive chunks. Concatenating the pages
// of the result reproduces all.
func Split(all []Page) []Chunk {
	n := TotalChunks(len(all))
	chunks := make([]Chunk, 0, n)
	for i := range n {
		chunks = append(chunks, GetChunk(all, i))
	}
	return chunks
}

// Empty reports whether the chunk has no pages.
func (c Chunk) Empty() bool {
	return len(c.Pages) == 0
}

// Label is the human-readable page range, e.g. "Pages 4-6".
func (c Chunk) Label() string {
	switch len(c.Pages) {
	case 0:
		return "No Pages"
	case 1:
		return fmt.Sprintf("Page %d", c.Pages[0].Page)
	default:
		return fmt.Sprintf("Pages %d-%d", c.Pages[0].Page, c.Pages[len(c.Pages)-1].Page)
	}
}

// Text concatenates the page text, used as context for doubts and video
// recommendations.
func (c Chunk) Text() string {
	parts := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Prompt renders the chunk for the summarizer: every page is introduced
// by a "[Page n]" header and pages are separated by PromptSeparator.
func (c Chunk) Prompt() string {
	parts := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", p.Page, p.Text))
	}
	return strings.Join(parts, PromptSeparator)
}

// LastPage returns the number of the last page in the chunk, or 0.
func (c Chunk) LastPage() int {
	if len(c.Pages) == 0 {
		return 0
	}
	return c.Pages[len(c.Pages)-1].Page
}
