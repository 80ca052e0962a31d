package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/flashgest/internal/doctree"
)

// XLSXParser handles Excel workbooks. Every non-empty sheet becomes one page
// headed by the sheet name, with one body block per data row.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		var b pageBuilder
		b.heading(1, sheet)
		b.rows(rows)
		doc.Pages = append(doc.Pages, b.page)
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []doctree.Page{{}}
	}
	return doc, nil
}
