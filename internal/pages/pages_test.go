package pages

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ailearninghub/hub/internal/kv"
)

func makePages(n int) []Page {
	out := make([]Page, n)
	for i := range out {
		out[i] = Page{Page: i + 1, Text: fmt.Sprintf("text of page %d", i+1)}
	}
	return out
}

func TestTotalChunks(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{3, 1},
		{4, 2},
		{6, 2},
		{7, 3},
		{100, 34},
	}
	for _, tt := range tests {
		if got := TotalChunks(tt.n); got != tt.want {
			t.Errorf("TotalChunks(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestSplitIsPartition(t *testing.T) {
	for n := 0; n <= 10; n++ {
		all := makePages(n)
		chunks := Split(all)

		if len(chunks) != TotalChunks(n) {
			t.Fatalf("n=%d: %d chunks, want %d", n, len(chunks), TotalChunks(n))
		}

		var joined []Page
		for i, c := range chunks {
			if c.Index != i {
				t.Errorf("n=%d: chunk %d has index %d", n, i, c.Index)
			}
			if len(c.Pages) > PagesPerChunk {
				t.Errorf("n=%d: chunk %d has %d pages", n, i, len(c.Pages))
			}
			joined = append(joined, c.Pages...)
		}
		if n > 0 && !reflect.DeepEqual(joined, all) {
			t.Errorf("n=%d: concatenated chunks differ from input", n)
		}
		if n == 0 && len(joined) != 0 {
			t.Errorf("empty input produced pages")
		}
	}
}

func TestSevenPages(t *testing.T) {
	all := makePages(7)

	if got := TotalChunks(len(all)); got != 3 {
		t.Fatalf("TotalChunks = %d, want 3", got)
	}

	last := GetChunk(all, 2)
	if len(last.Pages) != 1 || last.Pages[0].Page != 7 {
		t.Fatalf("chunk 2 = %+v, want only page 7", last.Pages)
	}
	if last.Label() != "Page 7" {
		t.Errorf("Label = %q", last.Label())
	}
	if got := GetChunk(all, 1).Label(); got != "Pages 4-6" {
		t.Errorf("chunk 1 label = %q", got)
	}
	if got := ChunkIndexOf(6); got != 2 {
		t.Errorf("ChunkIndexOf(6) = %d", got)
	}
	if !GetChunk(all, 3).Empty() || !GetChunk(all, -1).Empty() {
		t.Error("out of range chunks should be empty")
	}
	if GetChunk(nil, 0).Label() != "No Pages" {
		t.Error("empty chunk label")
	}
}

func TestFivePages(t *testing.T) {
	all := makePages(5)

	if got := TotalChunks(len(all)); got != 2 {
		t.Fatalf("TotalChunks = %d, want 2", got)
	}

	pageNumbers := func(c Chunk) []int {
		var out []int
		for _, p := range c.Pages {
			out = append(out, p.Page)
		}
		return out
	}
	tests := []struct {
		index int
		pages []int
		label string
	}{
		{0, []int{1, 2, 3}, "Pages 1-3"},
		{1, []int{4, 5}, "Pages 4-5"},
	}
	for _, tt := range tests {
		c := GetChunk(all, tt.index)
		if got := pageNumbers(c); !reflect.DeepEqual(got, tt.pages) {
			t.Errorf("chunk %d pages = %v, want %v", tt.index, got, tt.pages)
		}
		if got := c.Label(); got != tt.label {
			t.Errorf("chunk %d label = %q, want %q", tt.index, got, tt.label)
		}
	}
	if !GetChunk(all, 2).Empty() {
		t.Error("chunk 2 should be empty")
	}
	if chunks := Split(all); len(chunks) != 2 {
		t.Errorf("Split returned %d chunks", len(chunks))
	}
}

func TestPrompt(t *testing.T) {
	c := GetChunk(makePages(2), 0)
	want := "[Page 1]\ntext of page 1" + PromptSeparator + "[Page 2]\ntext of page 2"
	if got := c.Prompt(); got != want {
		t.Errorf("Prompt = %q, want %q", got, want)
	}
	if got := c.Text(); got != "text of page 1\n\ntext of page 2" {
		t.Errorf("Text = %q", got)
	}
	if c.LastPage() != 2 {
		t.Errorf("LastPage = %d", c.LastPage())
	}
}

func TestSplitText(t *testing.T) {
	pages := SplitText("first  page\n\n line\fsecond\f")
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].Text != "first page\nline" {
		t.Errorf("page 1 = %q", pages[0].Text)
	}
	if pages[1].Page != 2 || pages[1].Text != "second" {
		t.Errorf("page 2 = %+v", pages[1])
	}
}

func TestXMLTextPageBreaks(t *testing.T) {
	doc := `<w:document xmlns:w="urn:w"><w:body>
<w:p><w:r><w:t>Intro</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/><w:t>Second</w:t><w:tab/><w:t>page</w:t></w:r></w:p>
</w:body></w:document>`

	parts, err := xmlText(strings.NewReader(doc), isPageBreak)
	if err != nil {
		t.Fatalf("xmlText failed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2: %q", len(parts), parts)
	}
	if normalize(parts[0]) != "Intro" || normalize(parts[1]) != "Second page" {
		t.Errorf("parts = %q", parts)
	}
}

func TestExtractPPTXSortsSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, n := range []int{10, 2, 1} {
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", n))
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(w, `<p:sld xmlns:p="urn:p" xmlns:a="urn:a"><a:p><a:r><a:t>slide %d</a:t></a:r></a:p></p:sld>`, n)
	}
	w, _ := zw.Create("ppt/slides/_rels/slide1.xml.rels")
	_, _ = w.Write([]byte("<Relationships/>"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	doc, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if doc.FileName != "deck.pptx" {
		t.Errorf("FileName = %q", doc.FileName)
	}
	want := []Page{{1, "slide 1"}, {2, "slide 2"}, {3, "slide 10"}}
	if !reflect.DeepEqual(doc.Pages, want) {
		t.Errorf("pages = %+v, want %+v", doc.Pages, want)
	}
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract("notes.xlsx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("want ErrUnsupportedFormat, got %v", err)
	}
}

func TestDocumentStore(t *testing.T) {
	s := NewDocumentStore(kv.NewMemory(0))

	if _, err := s.Load(); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("want ErrNoDocument, got %v", err)
	}

	doc := Document{FileName: "a.pdf", Pages: makePages(4)}
	if err := s.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Load = %+v", got)
	}
	if got.TotalChunks() != 2 {
		t.Errorf("TotalChunks = %d", got.TotalChunks())
	}

	other := Document{FileName: "b.pdf", Pages: makePages(4)}
	if doc.Fingerprint() == other.Fingerprint() {
		t.Error("different documents share a fingerprint")
	}
	if doc.Fingerprint() != got.Fingerprint() {
		t.Error("fingerprint is not stable")
	}
}
