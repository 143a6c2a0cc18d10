package pages

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ErrUnsupportedFormat is returned for files Extract can't read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extract reads the file at path and returns its pages.
func Extract(path string) (Document, error) {
	var (
		pages []Page
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		pages, err = extractPDF(path)
	case ".pptx":
		pages, err = extractPPTX(path)
	case ".docx":
		pages, err = extractDOCX(path)
	case ".txt", ".md":
		pages, err = extractText(path)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	return Document{FileName: filepath.Base(path), Pages: pages}, nil
}

func extractPDF(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Page: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, Page{Page: i, Text: normalize(text)})
	}
	return pages, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(path string) ([]Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close() //nolint:errcheck

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]Page, 0, len(slides))
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.n, err)
		}
		parts, err := xmlText(rc, nil)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.n, err)
		}
		pages = append(pages, Page{Page: i + 1, Text: normalize(strings.Join(parts, " "))})
	}
	return pages, nil
}

func extractDOCX(path string) ([]Page, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	parts, err := xmlText(strings.NewReader(r.Editable().GetContent()), isPageBreak)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Page: i + 1, Text: normalize(p)})
	}
	return pages, nil
}

func extractText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitText(string(data)), nil
}

// SplitText turns plain text into pages, breaking at form feeds.
func SplitText(s string) []Page {
	raw := strings.Split(s, "\f")
	pages := make([]Page, 0, len(raw))
	for i, p := range raw {
		pages = append(pages, Page{Page: i + 1, Text: normalize(p)})
	}
	// a trailing form feed does not open a new page
	if n := len(pages); n > 1 && pages[n-1].Text == "" {
		pages = pages[:n-1]
	}
	return pages
}

func isPageBreak(el xml.StartElement) bool {
	if el.Name.Local != "br" {
		return false
	}
	for _, a := range el.Attr {
		if a.Name.Local == "type" && a.Value == "page" {
			return true
		}
	}
	return false
}

// xmlText collects the character data of Office text runs (<a:t>, <w:t>).
// Paragraph ends become newlines. When pageBreak reports true the text
// collected so far is closed off as one part.
func xmlText(r io.Reader, pageBreak func(xml.StartElement) bool) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		parts  []string
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "t":
				inText = true
			case t.Name.Local == "tab":
				b.WriteByte(' ')
			case pageBreak != nil && pageBreak(t):
				parts = append(parts, b.String())
				b.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	parts = append(parts, b.String())
	return parts, nil
}

var blankRun = regexp.MustCompile(`[ \t\r]+`)

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(blankRun.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
