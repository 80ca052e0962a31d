package generate

import (
	"fmt"
	"strings"
)

const markerInstructions = `Erstelle %d Frage-Antwort-Paare zum folgenden Text. Die Fragen sollen sich als Karteikarten zum Lernen eignen.

Regeln:
- Jede Frage muss ohne den Text verständlich sein
- Antworten kurz und präzise, höchstens drei Sätze
- Nur Inhalte aus dem Text verwenden, nichts erfinden
- Keine Einleitung und keine Zusammenfassung ausgeben

Antworte ausschließlich in diesem Format:
Frage 1: ...
Antwort 1: ...
Frage 2: ...
Antwort 2: ...`

const jsonInstructions = `Erstelle %d Frage-Antwort-Paare zum folgenden Text. Die Fragen sollen sich als Karteikarten zum Lernen eignen.

Gib die Antwort im JSON-Format zurück, in folgender Struktur:
[
  {"question": "Frage 1", "answer": "Antwort 1"},
  {"question": "Frage 2", "answer": "Antwort 2"}
]
Stelle sicher, dass die Ausgabe ein valides JSON-Array ist, ohne weiteren Text.`

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req Request) string {
	n := req.NumQuestions
	if n < 1 {
		n = 1
	}
	instructions := markerInstructions
	if req.Format == FormatJSON {
		instructions = jsonInstructions
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(instructions, n))
	sb.WriteString("\n\n---\n")
	if req.Title != "" {
		sb.WriteString(fmt.Sprintf("Dokument: %q\n", req.Title))
		sb.WriteString("---\n")
	}
	sb.WriteString(req.ChunkText)
	return sb.String()
}
