package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings keep their
// level as a synthetic font size; strong emphasis becomes bold spans.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var b pageBuilder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(node.Level, extractText(node, src))
		case *ast.Paragraph, *ast.TextBlock:
			b.paragraph(inlineLines(node, src)...)
		case *ast.ThematicBreak, *ast.HTMLBlock:
			// No text worth keeping.
		default:
			b.text(extractText(n, src))
		}
	}

	return b.document(titleFromFilename(filename)), nil
}

// inlineLines walks a block's inline children, splitting lines on hard or
// soft breaks and marking strong emphasis as bold.
func inlineLines(n ast.Node, src []byte) [][]doctree.Span {
	var (
		lines   [][]doctree.Span
		current []doctree.Span
	)
	var walk func(ast.Node, bool)
	walk = func(n ast.Node, bold bool) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Text:
				s := bodySpan(string(node.Value(src)))
				if bold {
					s = boldSpan(s.Text)
				}
				current = append(current, s)
				if node.HardLineBreak() || node.SoftLineBreak() {
					lines = append(lines, current)
					current = nil
				}
			case *ast.Emphasis:
				walk(node, bold || node.Level >= 2)
			default:
				walk(node, bold)
			}
		}
	}
	walk(n, false)
	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}

// extractText gets the text content of a goldmark AST node. Raw block lines
// are only used for leaf blocks such as code, whose text has no inline nodes.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
