package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
)

// CSVParser handles CSV files. Each data row becomes one body block of
// "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var b pageBuilder
	b.rows(records)
	return b.document(titleFromFilename(filename)), nil
}

// rows adds one body block per data row; the first row holds the headers.
func (b *pageBuilder) rows(records [][]string) {
	if len(records) == 0 {
		return
	}
	headers := records[0]
	for _, row := range records[1:] {
		var fields []string
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
				cell = strings.TrimSpace(headers[j]) + ": " + cell
			}
			fields = append(fields, cell)
		}
		if len(fields) > 0 {
			b.paragraph([]doctree.Span{bodySpan(strings.Join(fields, ", "))})
		}
	}
}
