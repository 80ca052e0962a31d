package pipeline

import (
	"testing"

	"github.com/dgallion1/flashgest/internal/config"
	"github.com/dgallion1/flashgest/internal/generate"
)

func TestDefaultsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.MinChunkTokens = 10
	cfg.MaxChunkTokens = 90
	cfg.PromptFormat = "JSON"
	cfg.QuestionMarkers = []string{"Q"}

	d, err := DefaultsFromConfig(cfg)
	if err != nil {
		t.Fatalf("DefaultsFromConfig: %v", err)
	}
	if d.Chunking.MinTokens != 10 || d.Chunking.MaxTokens != 90 {
		t.Errorf("unexpected chunking %+v", d.Chunking)
	}
	if d.Format != generate.FormatJSON {
		t.Errorf("expected json format, got %q", d.Format)
	}
	if d.Counter == nil || d.Counter("one two three") == 0 {
		t.Error("expected a working token counter")
	}
	if len(d.Markers.Question) != 1 || d.Markers.Question[0] != "Q" {
		t.Errorf("unexpected markers %+v", d.Markers)
	}
	if !d.Parser.FallbackPDFCPU {
		t.Error("expected pdfcpu fallback from defaults")
	}

	cfg.Tokenizer = "bytes"
	if _, err := DefaultsFromConfig(cfg); err == nil {
		t.Error("expected unknown tokenizer to fail")
	}
}

func TestGeneratorFromConfig(t *testing.T) {
	cfg := config.Defaults()
	gen, err := GeneratorFromConfig(cfg, nil)
	if err != nil || gen != nil {
		t.Errorf("expected no generator for manual mode, got %v, %v", gen, err)
	}

	cfg.Generator = "claude"
	cfg.AnthropicAPIKey = "k"
	gen, err = GeneratorFromConfig(cfg, generate.NewLLMStats(0))
	if err != nil {
		t.Fatalf("GeneratorFromConfig: %v", err)
	}
	if gen.Model() != cfg.AnthropicModel {
		t.Errorf("expected model %q, got %q", cfg.AnthropicModel, gen.Model())
	}

	cfg.Generator = "openai"
	cfg.OpenAIAPIKey = ""
	if _, err := GeneratorFromConfig(cfg, nil); err == nil {
		t.Error("expected missing OpenAI key to fail")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	s := SettingsFromConfig(cfg)
	if s.WorkerCount != cfg.WorkerCount || s.JobTTL != cfg.JobTTL || s.MaxConcurrentGenerate != cfg.MaxConcurrentGenerate {
		t.Errorf("unexpected settings %+v", s)
	}
}
