package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It reads positioned glyphs with
// ledongthuc/pdf and, if enabled, falls back to a pdfcpu content-stream scan.
type PDFParser struct {
	FallbackPDFCPU bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReaderAt+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "flashgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := readPDFPages(tmpPath)
	if err != nil && p.FallbackPDFCPU {
		pages, err = readPDFCPUPages(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf: %w", err)
	}

	return &doctree.Document{
		Title: titleFromFilename(filename),
		Pages: pages,
	}, nil
}

var errNoPages = errors.New("pdf has no pages")

func readPDFPages(path string) (pages []doctree.Page, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", rec)
		}
	}()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, errNoPages
	}
	pages = make([]doctree.Page, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages[i-1] = layoutGlyphs(page.Content().Text)
	}
	return pages, nil
}

const (
	rowTolerance     = 3.0 // pt; glyphs this close vertically share a line
	wordSpaceFactor  = 0.3 // gap > factor*font size starts a new word
	blockGapFactor   = 1.6 // line gap > factor*font size starts a new block
	sizeTolerance    = 0.5 // pt; sizes closer than this are one style
	fallbackFontSize = 10.0
)

type glyphRow struct {
	y      float64
	glyphs []pdflib.Text
}

// layoutGlyphs groups positioned glyphs into lines by baseline, orders lines
// top to bottom and glyphs left to right, splits spans on font or size
// changes, and starts a new block on a large vertical gap.
func layoutGlyphs(texts []pdflib.Text) doctree.Page {
	rows := groupRows(texts)

	var (
		page  doctree.Page
		block doctree.Block
		prevY float64
		prevH float64
	)
	for i, row := range rows {
		line := rowLine(row.glyphs)
		if len(line.Spans) == 0 {
			continue
		}
		if i > 0 && len(block.Lines) > 0 && prevY-row.y > blockGapFactor*prevH {
			page.Blocks = append(page.Blocks, block)
			block = doctree.Block{}
		}
		block.Lines = append(block.Lines, line)
		prevY = row.y
		prevH = lineHeight(line)
	}
	if len(block.Lines) > 0 {
		page.Blocks = append(page.Blocks, block)
	}
	return page
}

func groupRows(texts []pdflib.Text) []glyphRow {
	var rows []glyphRow
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		placed := false
		for i := range rows {
			if math.Abs(rows[i].y-t.Y) <= rowTolerance {
				rows[i].glyphs = append(rows[i].glyphs, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, glyphRow{y: t.Y, glyphs: []pdflib.Text{t}})
		}
	}
	// PDF y grows upwards: higher y is nearer the top of the page.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for _, r := range rows {
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })
	}
	return rows
}

func rowLine(glyphs []pdflib.Text) doctree.Line {
	var (
		line doctree.Line
		cur  *doctree.Span
		sb   strings.Builder
		end  float64
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(sb.String())
			if cur.Text != "" {
				line.Spans = append(line.Spans, *cur)
			}
		}
		cur = nil
		sb.Reset()
	}

	for _, g := range glyphs {
		if cur == nil || g.Font != cur.FontName || math.Abs(g.FontSize-cur.FontSize) > sizeTolerance {
			flush()
			cur = &doctree.Span{FontName: g.Font, FontSize: g.FontSize}
		} else {
			size := cur.FontSize
			if size <= 0 {
				size = fallbackFontSize
			}
			if g.X-end > wordSpaceFactor*size {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		end = g.X + g.W
	}
	flush()
	return line
}

func lineHeight(line doctree.Line) float64 {
	h := 0.0
	for _, s := range line.Spans {
		if s.FontSize > h {
			h = s.FontSize
		}
	}
	if h <= 0 {
		return fallbackFontSize
	}
	return h
}
