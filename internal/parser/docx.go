package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraph heading styles map to synthetic
// heading sizes; bold runs become bold spans.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "flashgest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var b pageBuilder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		spans := docxParagraphSpans(para)
		if level := docxHeadingLevel(para); level > 0 {
			var parts []string
			for _, s := range spans {
				parts = append(parts, s.Text)
			}
			b.heading(level, strings.Join(parts, ""))
			continue
		}
		b.paragraph(spans)
	}

	return b.document(titleFromFilename(filename)), nil
}

// docxHeadingLevel reads "Heading1" / "heading 1" / "Title" paragraph styles.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if strings.HasPrefix(style, "heading") && len(style) == len("heading")+1 {
		if d := style[len(style)-1]; d >= '1' && d <= '9' {
			return int(d - '0')
		}
	}
	return 0
}

func docxParagraphSpans(para *docx.Paragraph) []doctree.Span {
	var spans []doctree.Span
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		bold := run.RunProperties != nil && run.RunProperties.Bold != nil
		for _, rc := range run.Children {
			t, ok := rc.(*docx.Text)
			if !ok {
				continue
			}
			if bold {
				spans = append(spans, boldSpan(t.Text))
			} else {
				spans = append(spans, bodySpan(t.Text))
			}
		}
	}
	return spans
}
