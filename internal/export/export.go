// Package export renders flashcard records in the formats offered for
// download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/flashgest/internal/qna"
	"github.com/xuri/excelize/v2"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognised names.
var ErrUnknownFormat = errors.New("export: unknown format")

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatTSV  Format = "tsv"
	FormatText Format = "txt"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "tsv", "anki":
		return FormatTSV, nil
	case "txt", "text":
		return FormatText, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == "" {
		return ".json"
	}
	return "." + string(f)
}

// Write renders records in format f.
func Write(w io.Writer, f Format, records []qna.Record) error {
	switch f {
	case FormatJSON, "":
		return WriteJSON(w, records)
	case FormatTSV:
		return WriteTSV(w, records)
	case FormatText:
		_, err := WriteText(w, records, 1)
		return err
	case FormatXLSX:
		return WriteXLSX(w, records)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Header is the column header row shared by the tabular formats.
var Header = []string{"Frage", "Antwort"}

// WriteTSV writes an Anki-importable tab separated file with a header row.
// Tabs and line breaks inside fields are flattened to spaces so every record
// stays on one line.
func WriteTSV(w io.Writer, records []qna.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing tsv header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write([]string{flatten(r.Question), flatten(r.Answer)}); err != nil {
			return fmt.Errorf("writing tsv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var flattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func flatten(s string) string {
	return strings.TrimSpace(flattener.Replace(s))
}

// WriteJSON writes records as an indented JSON array. An empty list is
// written as [] rather than null.
func WriteJSON(w io.Writer, records []qna.Record) error {
	if records == nil {
		records = []qna.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

const separator = "----------------------------------------"

// WriteText writes numbered "Frage N:" / "Antwort N:" blocks separated by a
// dashed rule, starting at first. It returns the next free number so
// successive calls can continue the numbering.
func WriteText(w io.Writer, records []qna.Record, first int) (int, error) {
	n := first
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "Frage %d: %s\nAntwort %d: %s\n\n%s\n\n", n, r.Question, n, r.Answer, separator); err != nil {
			return n, fmt.Errorf("writing record %d: %w", n, err)
		}
		n++
	}
	return n, nil
}

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "Karteikarten"

// WriteXLSX writes a single-sheet workbook with a header row and one row per
// record.
func WriteXLSX(w io.Writer, records []qna.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []string{r.Question, r.Answer}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "B", 60); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
