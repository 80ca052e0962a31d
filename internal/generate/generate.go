// Package generate produces free-form question/answer text for a chunk.
// Providers return raw text; turning it into records is the job of package qna.
package generate

import (
	"context"
	"fmt"
	"strings"
)

// Format selects the answer layout requested from a provider.
type Format string

const (
	FormatMarkers Format = "markers" // "Frage N:" / "Antwort N:" lines
	FormatJSON    Format = "json"    // [{"question": ..., "answer": ...}]
)

// Request describes one generation call.
type Request struct {
	ChunkText    string
	ChunkIndex   int
	NumQuestions int
	Title        string
	Format       Format
}

// Generator turns a chunk into free-form question/answer text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Options select and configure a Generator.
type Options struct {
	Provider       string // claude, openai or manual
	AnthropicKey   string
	AnthropicModel string
	OpenAIKey      string
	OpenAIModel    string
	Stats          *LLMStats
}

// New builds the Generator named by opts.Provider.
func New(opts Options) (Generator, error) {
	switch strings.ToLower(opts.Provider) {
	case "claude", "anthropic":
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("claude generator requires an Anthropic API key")
		}
		c := NewClaudeClient(opts.AnthropicKey, opts.AnthropicModel)
		c.Stats = opts.Stats
		return c, nil
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai generator requires an OpenAI API key")
		}
		c := NewOpenAIClient(opts.OpenAIKey, opts.OpenAIModel)
		c.Stats = opts.Stats
		return c, nil
	case "", "manual":
		return &ManualGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", opts.Provider)
	}
}

// QuestionsFor asks for one question per perQuestion tokens, clamped to
// [minQ, maxQ].
func QuestionsFor(tokens, perQuestion, minQ, maxQ int) int {
	if perQuestion <= 0 {
		perQuestion = 200
	}
	if minQ < 1 {
		minQ = 1
	}
	if maxQ < minQ {
		maxQ = minQ
	}
	n := tokens / perQuestion
	if n < minQ {
		return minQ
	}
	if n > maxQ {
		return maxQ
	}
	return n
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func isRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
