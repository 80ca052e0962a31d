// Package structure recovers heading and paragraph blocks from styled runs.
package structure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/layout"
)

var (
	// ErrInvalidPageRange is returned when a requested page range does not
	// fit the document.
	ErrInvalidPageRange = errors.New("structure: invalid page range")

	// ErrNoDocument is returned when no source document was supplied.
	ErrNoDocument = errors.New("structure: no source document")
)

// PageRangeError describes a rejected page range.
type PageRangeError struct {
	Start, End int
	Pages      int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("invalid page range %d-%d for document with %d pages", e.Start, e.End, e.Pages)
}

func (e *PageRangeError) Unwrap() error { return ErrInvalidPageRange }

// Reconstructor turns document pages into logical blocks.
type Reconstructor struct {
	Extractor  *layout.Extractor
	Classifier Classifier
}

// New returns a Reconstructor with the default extractor and a
// FontClassifier using margin (DefaultHeadingMargin if margin <= 0).
func New(margin float64) *Reconstructor {
	if margin <= 0 {
		margin = DefaultHeadingMargin
	}
	return &Reconstructor{
		Extractor:  layout.New(),
		Classifier: FontClassifier{Margin: margin},
	}
}

// ValidateRange checks a 1-based inclusive page range against doc.
func ValidateRange(doc *doctree.Document, start, end int) error {
	if doc == nil {
		return ErrNoDocument
	}
	n := doc.PageCount()
	if start < 1 || end < start || end > n {
		return &PageRangeError{Start: start, End: end, Pages: n}
	}
	return nil
}

// Range validates the page range before doing any work, then extracts runs,
// computes statistics over the range and reconstructs blocks.
func (r *Reconstructor) Range(doc *doctree.Document, start, end int) ([]doctree.LogicalBlock, error) {
	if err := ValidateRange(doc, start, end); err != nil {
		return nil, err
	}
	runs := r.Extractor.ExtractDocument(doc, start, end)
	return Reconstruct(runs, r.Classifier), nil
}

// Reconstruct groups runs into blocks. Consecutive heading runs form a
// pending heading; the first body run after it is fused onto it so a heading
// never stands alone. Remaining body runs accumulate into one paragraph until
// the next heading run. Page boundaries are ignored.
func Reconstruct(runs []doctree.TextRun, c Classifier) []doctree.LogicalBlock {
	if c == nil {
		c = FontClassifier{Margin: DefaultHeadingMargin}
	}
	stats := ComputeStats(runs)

	var (
		blocks  []doctree.LogicalBlock
		heading []string
		para    []string
	)
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, doctree.LogicalBlock{Kind: doctree.Paragraph, Text: strings.Join(para, " ")})
			para = nil
		}
	}
	flushHeading := func() {
		if len(heading) > 0 {
			blocks = append(blocks, doctree.LogicalBlock{Kind: doctree.Heading, Text: strings.Join(heading, " ")})
			heading = nil
		}
	}

	for _, run := range runs {
		if c.Classify(run, stats) == RoleHeading {
			flushPara()
			heading = append(heading, run.Text)
			continue
		}
		if len(heading) > 0 {
			heading = append(heading, run.Text)
			flushHeading()
			continue
		}
		para = append(para, run.Text)
	}
	flushHeading()
	flushPara()

	return blocks
}

// Flatten renders blocks as document text with blank-line separators.
func Flatten(blocks []doctree.LogicalBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}
