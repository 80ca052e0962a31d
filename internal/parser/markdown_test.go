package parser

import (
	"reflect"
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingsAndParagraphs(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content
continues here.

### Subsection A1

Subsection A1 content.
`
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}

	want := []string{
		"Title",
		"Intro text.",
		"Section A",
		"Section A content continues here.",
		"Subsection A1",
		"Subsection A1 content.",
	}
	if got := blockTexts(doc); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected blocks %q, got %q", want, got)
	}

	blocks := doc.Pages[0].Blocks
	if s := firstSpan(blocks[0]); s.FontSize != HeadingFontSize(1) || s.FontName != BoldFontName {
		t.Errorf("unexpected h1 span: %+v", s)
	}
	if s := firstSpan(blocks[2]); s.FontSize != HeadingFontSize(2) {
		t.Errorf("unexpected h2 span: %+v", s)
	}
	if s := firstSpan(blocks[1]); s.FontSize != BodyFontSize || s.FontName != RegularFontName {
		t.Errorf("unexpected body span: %+v", s)
	}
	if len(blocks[3].Lines) != 2 {
		t.Errorf("expected soft line break to split lines, got %d lines", len(blocks[3].Lines))
	}
}

func TestMarkdownParser_StrongBecomesBold(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("Das ist **wichtig** und *kursiv*.\n"), "x.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spans := doc.Pages[0].Blocks[0].Lines[0].Spans
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d: %+v", len(spans), spans)
	}
	if spans[0].Text != "Das ist" || spans[0].FontName != RegularFontName {
		t.Errorf("unexpected first span: %+v", spans[0])
	}
	if spans[1].Text != "wichtig" || spans[1].FontName != BoldFontName {
		t.Errorf("expected bold span, got %+v", spans[1])
	}
	if spans[2].Text != "und kursiv." || spans[2].FontName != RegularFontName {
		t.Errorf("expected emphasis to stay regular, got %+v", spans[2])
	}
}

func TestMarkdownParser_ListsAndCode(t *testing.T) {
	input := "- eins\n- zwei\n\n---\n\n```\ncode line\n```\n"
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "x.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"eins zwei", "code line"}
	if got := blockTexts(doc); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMarkdownParser_NoDuplicateText(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("## Once\n\nOnly once.\n"), "x.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, text := range blockTexts(doc) {
		if strings.Count(text, "nce") != 1 {
			t.Errorf("text duplicated: %q", text)
		}
	}
}
