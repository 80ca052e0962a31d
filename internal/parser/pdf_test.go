package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/flashgest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// glyphs lays out s as one glyph per rune starting at x, each half the font
// size wide; spaces advance x without emitting a glyph.
func glyphs(font string, size, x, y float64, s string) []pdflib.Text {
	var out []pdflib.Text
	w := size / 2
	for _, r := range s {
		if r != ' ' {
			out = append(out, pdflib.Text{Font: font, FontSize: size, X: x, Y: y, W: w, S: string(r)})
		}
		x += w
	}
	return out
}

func pageTexts(p doctree.Page) [][]string {
	var out [][]string
	for _, b := range p.Blocks {
		var lines []string
		for _, l := range b.Lines {
			var parts []string
			for _, s := range l.Spans {
				parts = append(parts, s.Text)
			}
			lines = append(lines, strings.Join(parts, "|"))
		}
		out = append(out, lines)
	}
	return out
}

func TestLayoutGlyphs_LinesBlocksAndSpans(t *testing.T) {
	var texts []pdflib.Text
	texts = append(texts, glyphs("Helvetica", 10, 72, 620, "Neuer Absatz")...)
	texts = append(texts, glyphs("Helvetica", 10, 72, 658, "Zweite Zeile")...)
	texts = append(texts, glyphs("Helvetica-Bold", 18, 72, 700, "Kapitel")...)
	texts = append(texts, glyphs("Helvetica", 10, 72, 670.5, "Ein ")...)
	texts = append(texts, glyphs("Helvetica-Bold", 10, 92, 670, "fetter")...)
	texts = append(texts, glyphs("Helvetica", 10, 125, 670, "Satz")...)
	// Whitespace-only glyphs carry no text.
	texts = append(texts, pdflib.Text{Font: "Helvetica", FontSize: 10, X: 300, Y: 670, W: 5, S: " "})

	page := layoutGlyphs(texts)
	want := [][]string{
		{"Kapitel"},
		{"Ein|fetter|Satz", "Zweite Zeile"},
		{"Neuer Absatz"},
	}
	if got := pageTexts(page); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}

	title := page.Blocks[0].Lines[0].Spans[0]
	if title.FontName != "Helvetica-Bold" || title.FontSize != 18 {
		t.Errorf("unexpected title span %+v", title)
	}
	if s := page.Blocks[1].Lines[0].Spans[1]; s.FontName != "Helvetica-Bold" || s.FontSize != 10 {
		t.Errorf("expected bold span on mixed line, got %+v", s)
	}
}

func TestLayoutGlyphs_Empty(t *testing.T) {
	if page := layoutGlyphs(nil); len(page.Blocks) != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestParseContentStream(t *testing.T) {
	stream := "BT /F1 18 Tf 72 700 Td (Kapitel) Tj ET\n" +
		"BT\n/F2 10 Tf\n72 670 Td\n[(Erste) -250 (Zeile) 12 (n)] TJ\nT*\n(Zweite \\(Klammer\\)) Tj\n" +
		"T* <48616c6c6f> Tj\n% comment (ignored) Tj\nET\n"

	page := parseContentStream([]byte(stream))
	want := [][]string{
		{"Kapitel"},
		{"Erste Zeilen", "Zweite (Klammer)", "Hallo"},
	}
	if got := pageTexts(page); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if s := page.Blocks[0].Lines[0].Spans[0]; s.FontName != "F1" || s.FontSize != 18 {
		t.Errorf("unexpected first span %+v", s)
	}
	if s := page.Blocks[1].Lines[0].Spans[0]; s.FontName != "F2" || s.FontSize != 10 {
		t.Errorf("unexpected body span %+v", s)
	}
}

func TestParseContentStream_SkipsInlineImages(t *testing.T) {
	stream := "BT /F1 10 Tf\nBI /W 2 /H 1 ID \x00\xff(EIx) EI\n(nachher) Tj ET"
	page := parseContentStream([]byte(stream))
	want := [][]string{{"nachher"}}
	if got := pageTexts(page); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`Hallo\040Welt`, "Hallo Welt"},
		{`a\\b`, `a\b`},
		{`\(x\)`, "(x)"},
		{`tab\there`, "tab\there"},
		{`\101\102C`, "ABC"},
		{`\q`, "q"},
		{`trailing\`, `trailing\`},
	}
	for _, tc := range tests {
		if got := decodePDFString([]byte(tc.raw)); got != tc.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestPDFParser_RejectsGarbage(t *testing.T) {
	_, err := (&PDFParser{FallbackPDFCPU: true}).Parse(strings.NewReader("not a pdf"), "x.pdf")
	if err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}
