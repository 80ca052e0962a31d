package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FLASHGEST_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinChunkTokens != 200 || cfg.MaxChunkTokens != 1000 {
		t.Errorf("unexpected chunk defaults %d/%d", cfg.MinChunkTokens, cfg.MaxChunkTokens)
	}
	if cfg.Generator != "manual" || cfg.PromptFormat != "markers" {
		t.Errorf("unexpected generation defaults %q/%q", cfg.Generator, cfg.PromptFormat)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.JobTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLASHGEST_CONFIG", "")
	t.Setenv("PORT", "9999")
	t.Setenv("MIN_CHUNK_TOKENS", "50")
	t.Setenv("MAX_CHUNK_TOKENS", "400")
	t.Setenv("HEADING_MARGIN", "2.5")
	t.Setenv("JOB_TTL", "15m")
	t.Setenv("PDF_FALLBACK_PDFCPU", "false")
	t.Setenv("QUESTION_MARKERS", "Q, Frage ,")
	t.Setenv("WORKER_COUNT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" || cfg.MinChunkTokens != 50 || cfg.MaxChunkTokens != 400 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.HeadingMargin != 2.5 || cfg.JobTTL != 15*time.Minute || cfg.PDFFallbackPDFCPU {
		t.Errorf("typed env not applied: margin %v ttl %v pdfcpu %v", cfg.HeadingMargin, cfg.JobTTL, cfg.PDFFallbackPDFCPU)
	}
	if strings.Join(cfg.QuestionMarkers, "|") != "Q|Frage" {
		t.Errorf("unexpected markers %q", cfg.QuestionMarkers)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected unparsable value to keep default, got %d", cfg.WorkerCount)
	}
}

func TestLoad_YAMLOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashgest.yaml")
	yml := `
port: "7000"
generator: openai
openai_api_key: sk-file
max_chunk_tokens: 800
job_ttl: 30m
answer_markers: [Antwort, Loesung]
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLASHGEST_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7001" {
		t.Errorf("expected env to win over file, got port %q", cfg.Port)
	}
	if cfg.Generator != "openai" || cfg.OpenAIAPIKey != "sk-file" || cfg.MaxChunkTokens != 800 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL from file, got %v", cfg.JobTTL)
	}
	if len(cfg.AnswerMarkers) != 2 || cfg.AnswerMarkers[1] != "Loesung" {
		t.Errorf("unexpected answer markers %v", cfg.AnswerMarkers)
	}
	if cfg.MinChunkTokens != 200 {
		t.Errorf("expected unset file keys to keep defaults, got %d", cfg.MinChunkTokens)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"min not below max", func(c *Config) { c.MinChunkTokens = 1000 }, "MIN_CHUNK_TOKENS"},
		{"zero min", func(c *Config) { c.MinChunkTokens = 0 }, "MIN_CHUNK_TOKENS"},
		{"question bounds", func(c *Config) { c.MaxQuestions = 0 }, "question bounds"},
		{"claude without key", func(c *Config) { c.Generator = "claude" }, "ANTHROPIC_API_KEY"},
		{"claude with key", func(c *Config) { c.Generator = "claude"; c.AnthropicAPIKey = "k" }, ""},
		{"openai without key", func(c *Config) { c.Generator = "openai" }, "OPENAI_API_KEY"},
		{"unknown generator", func(c *Config) { c.Generator = "llama" }, "GENERATOR"},
		{"unknown format", func(c *Config) { c.PromptFormat = "yaml" }, "PROMPT_FORMAT"},
		{"unknown tokenizer", func(c *Config) { c.Tokenizer = "bytes" }, "TOKENIZER"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg := Defaults()
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "FLASHGEST_API_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}
	cfg.APIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
