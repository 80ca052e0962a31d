package pipeline

import (
	"fmt"
	"strings"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/config"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/parser"
	"github.com/dgallion1/flashgest/internal/qna"
)

// SettingsFromConfig sizes the orchestrator from service configuration.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		WorkerCount:           cfg.WorkerCount,
		MaxQueueSize:          cfg.MaxQueueSize,
		MaxConcurrentGenerate: cfg.MaxConcurrentGenerate,
		JobTTL:                cfg.JobTTL,
	}
}

// DefaultsFromConfig resolves job defaults, loading the tokenizer if one
// is configured.
func DefaultsFromConfig(cfg config.Config) (Defaults, error) {
	counter, err := chunker.CounterFor(cfg.Tokenizer)
	if err != nil {
		return Defaults{}, fmt.Errorf("tokenizer: %w", err)
	}
	return Defaults{
		Chunking:          chunker.Config{MinTokens: cfg.MinChunkTokens, MaxTokens: cfg.MaxChunkTokens},
		HeadingMargin:     cfg.HeadingMargin,
		Counter:           counter,
		Parser:            parser.Options{FallbackPDFCPU: cfg.PDFFallbackPDFCPU},
		TokensPerQuestion: cfg.TokensPerQuestion,
		MinQuestions:      cfg.MinQuestions,
		MaxQuestions:      cfg.MaxQuestions,
		Format:            generate.Format(strings.ToLower(cfg.PromptFormat)),
		Markers:           qna.Markers{Question: cfg.QuestionMarkers, Answer: cfg.AnswerMarkers},
	}, nil
}

// GeneratorFromConfig builds the model-backed generator named by the
// configuration. It returns nil for the manual generator, whose responses
// arrive per job.
func GeneratorFromConfig(cfg config.Config, stats *generate.LLMStats) (generate.Generator, error) {
	switch strings.ToLower(cfg.Generator) {
	case "", "manual":
		return nil, nil
	}
	return generate.New(generate.Options{
		Provider:       cfg.Generator,
		AnthropicKey:   cfg.AnthropicAPIKey,
		AnthropicModel: cfg.AnthropicModel,
		OpenAIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:    cfg.OpenAIModel,
		Stats:          stats,
	})
}
