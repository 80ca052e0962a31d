package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
)

// ErrInvalidThresholds is returned for token thresholds outside 0 < min < max.
var ErrInvalidThresholds = errors.New("chunker: invalid token thresholds")

// Config controls chunking behavior.
type Config struct {
	MinTokens int // Chunks below this are merged into a neighbour.
	MaxTokens int // A candidate is closed once it exceeds this.
}

// DefaultConfig returns the thresholds used by the flashcard workflow.
func DefaultConfig() Config {
	return Config{
		MinTokens: 200,
		MaxTokens: 1000,
	}
}

// Validate checks 0 < MinTokens < MaxTokens.
func (c Config) Validate() error {
	if c.MinTokens <= 0 || c.MaxTokens <= 0 || c.MinTokens >= c.MaxTokens {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidThresholds, c.MinTokens, c.MaxTokens)
	}
	return nil
}

// ChunkBlocks groups consecutive blocks into token-bounded chunks. Blocks are
// never split: a block that alone exceeds MaxTokens becomes an oversized chunk.
// A nil count uses EstimateTokens.
func ChunkBlocks(blocks []doctree.LogicalBlock, count TokenCounter, cfg Config) ([]doctree.Chunk, error) {
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return chunkTexts(texts, count, cfg)
}

// ChunkText splits text on blank lines and chunks the paragraphs as blocks.
func ChunkText(text string, count TokenCounter, cfg Config) ([]doctree.Chunk, error) {
	return chunkTexts(splitByParagraphs(text), count, cfg)
}

func chunkTexts(texts []string, count TokenCounter, cfg Config) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if count == nil {
		count = EstimateTokens
	}

	raw := accumulate(texts, count, cfg.MaxTokens)
	merged := mergeSmall(raw, count, cfg.MinTokens)

	chunks := make([]doctree.Chunk, len(merged))
	for i, text := range merged {
		chunks[i] = doctree.Chunk{
			Text:   text,
			Index:  i,
			Tokens: count(text),
		}
	}
	return chunks, nil
}

// accumulate adds blocks to a candidate until its count exceeds maxTokens. The
// block that crossed the threshold stays in the closed candidate.
func accumulate(texts []string, count TokenCounter, maxTokens int) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, t := range texts {
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(t)
		if count(current.String()) > maxTokens {
			out = append(out, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// mergeSmall folds chunks below minTokens into the next chunk. A short final chunk
// is appended to the previously emitted chunk instead, or kept alone when
// there is none.
func mergeSmall(chunks []string, count TokenCounter, minTokens int) []string {
	var (
		out   []string
		carry string
	)
	for i, c := range chunks {
		if carry != "" {
			c = carry + " " + c
			carry = ""
		}
		if count(c) >= minTokens {
			out = append(out, c)
			continue
		}
		if i < len(chunks)-1 {
			carry = c
			continue
		}
		if len(out) > 0 {
			out[len(out)-1] += " " + c
		} else {
			out = append(out, c)
		}
	}
	return out
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
