// Package layout flattens a page's layout primitives into styled text runs.
package layout

import (
	"math"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	"golang.org/x/text/unicode/norm"
)

// DefaultBoldMarkers are font-name substrings that indicate a bold face.
// Matching is case-insensitive.
var DefaultBoldMarkers = []string{"bold", "black", "heavy", "semibold", "demi"}

// Extractor turns page primitives into TextRuns.
type Extractor struct {
	BoldMarkers []string
}

// New returns an Extractor using DefaultBoldMarkers.
func New() *Extractor {
	return &Extractor{BoldMarkers: DefaultBoldMarkers}
}

// ExtractRuns emits one run per non-empty span, in block/line/span order.
// Malformed spans never abort extraction: a missing font name means
// non-bold and an unusable size means 0.
func (e *Extractor) ExtractRuns(page doctree.Page, pageIndex int) []doctree.TextRun {
	var runs []doctree.TextRun
	for _, block := range page.Blocks {
		for _, line := range block.Lines {
			for _, span := range line.Spans {
				text := norm.NFC.String(strings.TrimSpace(span.Text))
				if text == "" {
					continue
				}
				runs = append(runs, doctree.TextRun{
					Text:      text,
					FontSize:  sanitizeSize(span.FontSize),
					Bold:      e.IsBold(span.FontName),
					PageIndex: pageIndex,
				})
			}
		}
	}
	return runs
}

// ExtractDocument extracts runs for pages start..end (1-based, inclusive).
// Out-of-range bounds are clamped; callers that need strict validation
// check the range first.
func (e *Extractor) ExtractDocument(doc *doctree.Document, start, end int) []doctree.TextRun {
	if doc == nil {
		return nil
	}
	if start < 1 {
		start = 1
	}
	if end > len(doc.Pages) {
		end = len(doc.Pages)
	}
	var runs []doctree.TextRun
	for i := start; i <= end; i++ {
		runs = append(runs, e.ExtractRuns(doc.Pages[i-1], i-1)...)
	}
	return runs
}

// IsBold reports whether fontName contains one of the bold markers.
func (e *Extractor) IsBold(fontName string) bool {
	if fontName == "" {
		return false
	}
	lower := strings.ToLower(fontName)
	for _, m := range e.markers() {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func (e *Extractor) markers() []string {
	if e == nil || e.BoldMarkers == nil {
		return DefaultBoldMarkers
	}
	return e.BoldMarkers
}

func sanitizeSize(size float64) float64 {
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return 0
	}
	return size
}
