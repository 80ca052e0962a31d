package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter returns a non-negative token count for text.
type TokenCounter func(text string) int

// DefaultEncoding is the BPE encoding used by NewTiktokenCounter when none is named.
const DefaultEncoding = "cl100k_base"

// EstimateTokens gives a rough token count from the word count.
// Exact tokenization is not required for chunking; use NewTiktokenCounter
// when counts must match a model's tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && words > 0 {
		tokens = 1
	}
	return tokens
}

// NewTiktokenCounter loads a BPE encoding once and returns a counter backed
// by it. The encoding tables may be downloaded on first use.
func NewTiktokenCounter(encoding string) (TokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tok, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return func(text string) int {
		if text == "" {
			return 0
		}
		return len(tok.Encode(text, nil, nil))
	}, nil
}

// CounterFor resolves a tokenizer name ("estimate" or "tiktoken").
func CounterFor(name string) (TokenCounter, error) {
	switch strings.ToLower(name) {
	case "", "estimate":
		return EstimateTokens, nil
	case "tiktoken":
		return NewTiktokenCounter(DefaultEncoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}
