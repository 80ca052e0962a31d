package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/qna"
)

const notes = `# Zellen

Die Zelle ist die kleinste Einheit des Lebens.

# Gewebe

Gewebe sind Verbände gleichartiger Zellen.
`

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FLASHGEST_CONFIG", "")
	t.Setenv("GENERATOR", "manual")
	t.Setenv("LOG_LEVEL", "error")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	isolateEnv(t)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"bake"}, exitUsage},
		{"help", []string{"help"}, exitOK},
		{"chunk without file", []string{"chunk"}, exitUsage},
		{"bad flag", []string{"chunk", "-nope"}, exitUsage},
		{"stray argument", []string{"extract", "extra"}, exitUsage},
		{"bad format", []string{"extract", "-format", "pdf"}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, "", tt.args...)
			if code != tt.want {
				t.Errorf("expected exit %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRun_ChunkText(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "bio.md", notes)

	code, out, stderr := runCLI(t, "", "chunk", "-file", path, "-min", "1", "-max", "2")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if !strings.Contains(out, "=== Chunk 0 (") || !strings.Contains(out, "=== Chunk 1 (") {
		t.Errorf("expected two chunk headers, got:\n%s", out)
	}
	if !strings.Contains(out, "Gewebe sind Verbände") {
		t.Errorf("expected chunk text in output, got:\n%s", out)
	}
}

func TestRun_ChunkJSON(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "bio.md", notes)

	code, out, stderr := runCLI(t, "", "chunk", "-file", path, "-json")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	var chunks []doctree.Chunk
	if err := json.Unmarshal([]byte(out), &chunks); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	// default thresholds merge the whole note into one chunk
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "Zellen") {
		t.Errorf("unexpected chunk text %q", chunks[0].Text)
	}
}

func TestRun_ChunkStdinText(t *testing.T) {
	isolateEnv(t)
	in := "Die Zelle ist die kleinste Einheit.\n\nGewebe sind Verbände von Zellen."

	code, out, stderr := runCLI(t, in, "chunk", "-file", "-", "-min", "1", "-max", "2", "-json")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	var chunks []doctree.Chunk
	if err := json.Unmarshal([]byte(out), &chunks); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(chunks) != 2 || chunks[0].Text != "Die Zelle ist die kleinste Einheit." {
		t.Errorf("expected one chunk per paragraph, got %+v", chunks)
	}
}

func TestRun_ChunkInvalidRange(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "bio.md", notes)

	code, _, _ := runCLI(t, "", "chunk", "-file", path, "-start", "3", "-end", "1")
	if code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
}

func TestRun_ExtractStdin(t *testing.T) {
	isolateEnv(t)
	in := "Frage 1: Was ist Osmose?\nAntwort 1: Diffusion durch eine Membran.\nFrage 2: Ohne Antwort"

	code, out, stderr := runCLI(t, in, "extract", "-format", "tsv")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	want := "Frage\tAntwort\nWas ist Osmose?\tDiffusion durch eine Membran.\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestRun_ExtractFileToFile(t *testing.T) {
	isolateEnv(t)
	in := writeFile(t, "response.txt", "Question: What is ATP?\nAnswer: The energy currency of the cell.")
	outPath := filepath.Join(t.TempDir(), "cards.json")

	code, out, stderr := runCLI(t, "", "extract", "-in", in, "-o", outPath)
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var records []qna.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].Question != "What is ATP?" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestRun_CardsManualResponses(t *testing.T) {
	isolateEnv(t)
	doc := writeFile(t, "bio.md", notes)
	responses := writeFile(t, "responses.json", `{
		"0": "Frage 1: Was ist die Zelle?\nAntwort 1: Die kleinste Einheit des Lebens.",
		"1": "Frage 1: Was sind Gewebe?\nAntwort 1: Verbände gleichartiger Zellen."
	}`)

	code, out, stderr := runCLI(t, "", "cards", "-file", doc, "-min", "1", "-max", "2", "-responses", responses, "-format", "txt")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	for _, want := range []string{
		"Frage 1: Was ist die Zelle?",
		"Antwort 2: Verbände gleichartiger Zellen.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRun_CardsEditedChunkText(t *testing.T) {
	isolateEnv(t)
	doc := writeFile(t, "bio.md", notes)
	edits := writeFile(t, "edits.json", `{"0": "Zellen teilen sich durch Mitose."}`)
	responses := writeFile(t, "responses.json", `{"0": "Frage: Wie teilen sich Zellen?\nAntwort: Durch Mitose."}`)

	code, out, stderr := runCLI(t, "", "cards", "-file", doc, "-chunk-texts", edits, "-responses", responses, "-format", "json")
	if code != exitOK {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	var records []qna.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].Answer != "Durch Mitose." {
		t.Errorf("unexpected records %+v", records)
	}

	bad := writeFile(t, "bad.json", `{"5": "x"}`)
	if code, _, _ := runCLI(t, "", "cards", "-file", doc, "-chunk-texts", bad, "-responses", responses); code != exitFailure {
		t.Errorf("expected exit %d for an out of range edit, got %d", exitFailure, code)
	}
}

func TestRun_CardsWithoutGenerator(t *testing.T) {
	isolateEnv(t)
	doc := writeFile(t, "bio.md", notes)

	code, _, stderr := runCLI(t, "", "cards", "-file", doc)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(stderr, "generator") {
		t.Errorf("expected generator error in log, got %s", stderr)
	}
}

func TestParseIndices(t *testing.T) {
	got, err := parseIndices(" 2, 0 ,1")
	if err != nil {
		t.Fatalf("parseIndices: %v", err)
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 0 || got[2] != 1 {
		t.Errorf("unexpected indices %v", got)
	}
	if got, _ := parseIndices(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if _, err := parseIndices("1,x"); err == nil {
		t.Error("expected error for non-numeric index")
	}
}
