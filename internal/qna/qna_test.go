package qna

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract_GermanPairs(t *testing.T) {
	text := "Frage: Was ist Informatik?\nAntwort: Die Wissenschaft der Information.\n\nFrage: Was ist ein Algorithmus?\nAntwort: Eine Abfolge von Anweisungen."

	res := Extract(text)
	want := []Record{
		{Question: "Was ist Informatik?", Answer: "Die Wissenschaft der Information."},
		{Question: "Was ist ein Algorithmus?", Answer: "Eine Abfolge von Anweisungen."},
	}
	if len(res.Records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(res.Records), res.Records)
	}
	for i := range want {
		if res.Records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], res.Records[i])
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", res.Warnings)
	}
	if res.Err() != nil {
		t.Errorf("expected nil Err, got %v", res.Err())
	}
}

func TestExtract_IndentedNumberedMarkers(t *testing.T) {
	text := `Frage 1: Was ist Informatik?
                      Antwort: Die Wissenschaft der Information.

                      Frage 2: Was ist ein Algorithmus?
                      Antwort: Eine Abfolge von Anweisungen.`

	res := Extract(text)
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[1].Question != "Was ist ein Algorithmus?" {
		t.Errorf("unexpected question: %q", res.Records[1].Question)
	}
}

func TestExtract_SinglePair(t *testing.T) {
	res := Extract("Frage: Was ist eine Schleife?\n    Antwort: Eine wiederholte Anweisung.")
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Records[0].Answer != "Eine wiederholte Anweisung." {
		t.Errorf("unexpected answer: %q", res.Records[0].Answer)
	}
}

const burnDown = `
    **Frage 1:**

    *   **Frage:** Was ist das charakteristische Merkmal eines Burn Down Charts?
    *   **Antwort:** Der angestrebte Kurvenverlauf von links oben nach rechts unten. Alle offenen Aufgaben wurden "verbrannt".

    ---

    **Frage 2:**

    *   **Frage:** Was wird auf der X- und Y-Achse dargestellt?
    *   **Antwort:** Die X-Achse stellt den zeitlichen Verlauf dar (z.B. Tage, Wochen, Sprints).

    ---

    **Frage 3:**

    *   **Frage:** Was stellt die Ideallinie dar?
    *   **Antwort:** Den Idealverlauf der Messpunkte im Burn Down Chart.

    ---

    **Frage 4:**

    *   **Frage:** Wo werden Burn Down Charts eingesetzt?
    *   **Antwort:** Bei Softwareprojekten, die mit Scrum arbeiten.
    `

func TestExtract_MarkdownDecoratedDoubledMarkers(t *testing.T) {
	res := Extract(burnDown)

	if got, want := len(res.Records), strings.Count(burnDown, "**Frage "); got != want {
		t.Fatalf("expected %d records (one per numbered marker), got %d: %+v", want, got, res.Records)
	}
	for i, r := range res.Records {
		for _, field := range []string{r.Question, r.Answer} {
			if strings.Contains(field, "*") || strings.Contains(field, "---") {
				t.Errorf("record %d: markup left in %q", i, field)
			}
			if strings.HasPrefix(field, "Frage") || strings.HasPrefix(field, "Antwort") {
				t.Errorf("record %d: residual marker in %q", i, field)
			}
		}
	}
	if res.Records[0].Question != "Was ist das charakteristische Merkmal eines Burn Down Charts?" {
		t.Errorf("unexpected first question: %q", res.Records[0].Question)
	}
	if res.Records[0].Answer != `Der angestrebte Kurvenverlauf von links oben nach rechts unten. Alle offenen Aufgaben wurden "verbrannt".` {
		t.Errorf("unexpected first answer: %q", res.Records[0].Answer)
	}
	if res.Records[3].Answer != "Bei Softwareprojekten, die mit Scrum arbeiten." {
		t.Errorf("unexpected last answer: %q", res.Records[3].Answer)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", res.Warnings)
	}
}

func TestExtract_NumberedListBullets(t *testing.T) {
	want := []Record{
		{Question: "Was ist A?", Answer: "A ist eins."},
		{Question: "Was ist B?", Answer: "B ist zwei."},
	}
	tests := []struct {
		name string
		text string
	}{
		{"dot", "1. Frage: Was ist A?\nAntwort: A ist eins.\n2. Frage: Was ist B?\nAntwort: B ist zwei."},
		{"paren", "1) Frage: Was ist A?\n1) Antwort: A ist eins.\n2) Frage: Was ist B?\n2) Antwort: B ist zwei."},
		{"nested bullets", "- 1. **Frage:** Was ist A?\n  **Antwort:** A ist eins.\n- 2. **Frage:** Was ist B?\n  **Antwort:** B ist zwei."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.text)
			if len(res.Records) != len(want) {
				t.Fatalf("expected %d records, got %d: %+v", len(want), len(res.Records), res.Records)
			}
			for i := range want {
				if res.Records[i] != want[i] {
					t.Errorf("record %d: expected %+v, got %+v", i, want[i], res.Records[i])
				}
			}
		})
	}
}

func TestExtract_NoMarkers(t *testing.T) {
	for _, text := range []string{"", "   \n\n", "Just some prose without any labels.", "***\n---\n"} {
		res := Extract(text)
		if len(res.Records) != 0 {
			t.Errorf("Extract(%q): expected no records, got %+v", text, res.Records)
		}
		if !res.HasWarning(WarnNoPairs) {
			t.Errorf("Extract(%q): expected no_pairs warning", text)
		}
		if !errors.Is(res.Err(), ErrNoPairs) {
			t.Errorf("Extract(%q): expected ErrNoPairs, got %v", text, res.Err())
		}
	}
}

func TestExtract_CaseInsensitiveAndEnglish(t *testing.T) {
	res := Extract("QUESTION 1: What is Go?\nanswer: A language.\nfrage: Wer?\nANTWORT 2: Niemand.")
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if res.Records[0] != (Record{Question: "What is Go?", Answer: "A language."}) {
		t.Errorf("unexpected record: %+v", res.Records[0])
	}
}

func TestExtract_Warnings(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantRecords int
		wantWarning WarningKind
	}{
		{
			name:        "orphan answer before any question",
			text:        "Antwort: zu früh\nFrage: A?\nAntwort: B.",
			wantRecords: 1,
			wantWarning: WarnOrphanAnswer,
		},
		{
			name:        "question without answer",
			text:        "Frage: Erste?\nFrage 2: Zweite?\nAntwort: Nur eine.",
			wantRecords: 1,
			wantWarning: WarnUnpairedQuestion,
		},
		{
			name:        "trailing question without answer",
			text:        "Frage: A?\nAntwort: B.\nFrage: Offen?",
			wantRecords: 1,
			wantWarning: WarnUnpairedQuestion,
		},
		{
			name:        "empty answer",
			text:        "Frage: A?\nAntwort:\nFrage: C?\nAntwort: D.",
			wantRecords: 1,
			wantWarning: WarnEmptyField,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Extract(tc.text)
			if len(res.Records) != tc.wantRecords {
				t.Errorf("expected %d records, got %d: %+v", tc.wantRecords, len(res.Records), res.Records)
			}
			if !res.HasWarning(tc.wantWarning) {
				t.Errorf("expected warning %s, got %+v", tc.wantWarning, res.Warnings)
			}
		})
	}
}

func TestExtract_DoubledAnswerMarker(t *testing.T) {
	res := Extract("Frage: A?\nAntwort:\nAntwort: B.")
	if len(res.Records) != 1 || res.Records[0].Answer != "B." {
		t.Errorf("expected empty doubled answer marker to collapse, got %+v", res.Records)
	}

	res = Extract("Frage: A?\nAntwort: B.\nAntwort: C.")
	if len(res.Records) != 1 || res.Records[0].Answer != "B.\nAntwort: C." {
		t.Errorf("expected later answer marker kept as text, got %+v", res.Records)
	}
}

func TestExtract_MultilineAnswer(t *testing.T) {
	res := Extract("Frage: Liste?\nAntwort: erstens\n- zweitens\n\n- drittens\nFrage: Ende?\nAntwort: ja")
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].Answer != "erstens\nzweitens\ndrittens" {
		t.Errorf("unexpected answer %q", res.Records[0].Answer)
	}
}

func TestExtract_MarkerNeedsWordStart(t *testing.T) {
	res := Extract("Frage: Was ist eine Zwischenfrage: eine Unterbrechung?\nAntwort: Ja.")
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Records[0].Question != "Was ist eine Zwischenfrage: eine Unterbrechung?" {
		t.Errorf("unexpected question %q", res.Records[0].Question)
	}
}

func TestExtract_JSONFallback(t *testing.T) {
	text := "```json\n[\n  {\"question\": \"Frage 1?\", \"answer\": \"Antwort 1\"},\n  {\"question\": \"\", \"answer\": \"x\"},\n  {\"question\": \"Frage 2?\", \"answer\": \"Antwort 2\"}\n]\n```"

	res := Extract(text)
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(res.Records), res.Records)
	}
	if res.Records[1].Question != "Frage 2?" {
		t.Errorf("unexpected record: %+v", res.Records[1])
	}
	if !res.HasWarning(WarnEmptyField) {
		t.Errorf("expected empty_field warning, got %+v", res.Warnings)
	}
}

func TestExtract_InvalidJSONFallsBackToMarkers(t *testing.T) {
	res := Extract("[not json] Frage: A?\nAntwort: B.")
	if len(res.Records) != 1 {
		t.Errorf("expected marker parsing after failed JSON decode, got %+v", res.Records)
	}
}

func TestNew_CustomMarkers(t *testing.T) {
	e := New(Markers{Question: []string{"Q"}, Answer: []string{"A"}})
	res := e.Extract("Q1: one?\nA1: yes\nFrage: ignored?\nQ2: two?\nA: no")
	want := []Record{
		{Question: "one?", Answer: "yes\nFrage: ignored?"},
		{Question: "two?", Answer: "no"},
	}
	if len(res.Records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(res.Records), res.Records)
	}
	for i := range want {
		if res.Records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], res.Records[i])
		}
	}
}

func TestNew_EmptyMarkersUseDefaults(t *testing.T) {
	res := New(Markers{Question: []string{" "}}).Extract("Frage: A?\nAntwort: B.")
	if len(res.Records) != 1 {
		t.Errorf("expected default markers, got %+v", res.Records)
	}
}

func TestNormalize(t *testing.T) {
	in := "  **Frage 1:**  \n\n---\n___\n*   **Antwort:** text\n> quoted\n### Heading\n-5 Grad\n2) zwei\n3.5 Liter\n1939 begann\n"
	want := "Frage 1:\nAntwort: text\nquoted\nHeading\n-5 Grad\nzwei\n3.5 Liter\n1939 begann"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}
