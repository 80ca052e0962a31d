package parser

import (
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
)

// blockTexts renders each block of the first page as its lines' span texts
// joined by spaces.
func blockTexts(doc *doctree.Document) []string {
	if len(doc.Pages) == 0 {
		return nil
	}
	var out []string
	for _, b := range doc.Pages[0].Blocks {
		var parts []string
		for _, l := range b.Lines {
			for _, s := range l.Spans {
				parts = append(parts, s.Text)
			}
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

func firstSpan(b doctree.Block) doctree.Span {
	return b.Lines[0].Spans[0]
}
