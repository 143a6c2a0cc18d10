package speech

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText renders markdown as speakable text. Headings, paragraphs and
// list items become sentences, link targets and code blocks are dropped.
func PlainText(markdown string) string {
	reader := text.NewReader([]byte(markdown))
	doc := goldmark.New().Parser().Parse(reader)

	var buf strings.Builder
	walk(doc, reader.Source(), &buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.Image:
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c, source, buf)
		}
		endSentence(buf)
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, buf)
	}
}

func endSentence(buf *strings.Builder) {
	s := strings.TrimRight(buf.String(), " ")
	if s == "" {
		return
	}
	buf.Reset()
	buf.WriteString(s)
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		buf.WriteByte(' ')
	default:
		buf.WriteString(". ")
	}
}
