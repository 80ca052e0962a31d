// Package parser turns uploaded files into per-page layout primitives.
//
// PDFs carry real font sizes and names. Other formats have no typography, so
// their structure (heading levels, bold runs) is mapped onto synthetic sizes
// and font names that the same structure reconstruction understands.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
)

// ErrUnsupportedFormat is returned for file extensions no parser handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".xlsx":     true,
}

// Options tune parser behaviour.
type Options struct {
	// FallbackPDFCPU retries PDFs that ledongthuc/pdf cannot read with a
	// pdfcpu content-stream scan.
	FallbackPDFCPU bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPDFCPU: opts.FallbackPDFCPU}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".xlsx":
		return &XLSXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse picks a parser by filename and runs it.
func Parse(r io.Reader, filename string, opts Options) (*doctree.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	return p.Parse(r, filename)
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Synthetic typography for formats without font metrics.
const (
	BodyFontSize    = 11.0
	RegularFontName = "Synthetic-Regular"
	BoldFontName    = "Synthetic-Bold"
)

// headingSizes maps heading levels 1..6 to synthetic font sizes.
var headingSizes = [...]float64{1: 20, 2: 17, 3: 15, 4: 14, 5: 13, 6: 13}

// HeadingFontSize returns the synthetic size for a heading level.
func HeadingFontSize(level int) float64 {
	if level < 1 {
		return BodyFontSize
	}
	if level >= len(headingSizes) {
		level = len(headingSizes) - 1
	}
	return headingSizes[level]
}

func bodySpan(text string) doctree.Span {
	return doctree.Span{Text: text, FontSize: BodyFontSize, FontName: RegularFontName}
}

func boldSpan(text string) doctree.Span {
	return doctree.Span{Text: text, FontSize: BodyFontSize, FontName: BoldFontName}
}

// pageBuilder accumulates one synthetic page, one block per source block.
type pageBuilder struct {
	page doctree.Page
}

func (b *pageBuilder) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	span := doctree.Span{Text: text, FontSize: HeadingFontSize(level), FontName: BoldFontName}
	b.page.Blocks = append(b.page.Blocks, doctree.Block{Lines: []doctree.Line{{Spans: []doctree.Span{span}}}})
}

// paragraph adds a block of spans, one line per source line break.
func (b *pageBuilder) paragraph(lines ...[]doctree.Span) {
	var block doctree.Block
	for _, spans := range lines {
		spans = mergeSpans(spans)
		if len(spans) > 0 {
			block.Lines = append(block.Lines, doctree.Line{Spans: spans})
		}
	}
	if len(block.Lines) > 0 {
		b.page.Blocks = append(b.page.Blocks, block)
	}
}

func (b *pageBuilder) text(text string) {
	var lines [][]doctree.Span
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, []doctree.Span{bodySpan(l)})
		}
	}
	b.paragraph(lines...)
}

func (b *pageBuilder) document(title string) *doctree.Document {
	return &doctree.Document{Title: title, Pages: []doctree.Page{b.page}}
}

// mergeSpans joins neighbouring spans of the same style and drops empty ones.
func mergeSpans(spans []doctree.Span) []doctree.Span {
	var out []doctree.Span
	for _, s := range spans {
		if strings.TrimSpace(s.Text) == "" {
			if n := len(out); n > 0 && !strings.HasSuffix(out[n-1].Text, " ") {
				out[n-1].Text += " "
			}
			continue
		}
		if n := len(out); n > 0 && out[n-1].FontName == s.FontName && out[n-1].FontSize == s.FontSize {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	for i := range out {
		out[i].Text = strings.Join(strings.Fields(out[i].Text), " ")
	}
	return out
}
