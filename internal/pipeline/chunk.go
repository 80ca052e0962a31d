package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/parser"
	"github.com/dgallion1/flashgest/internal/structure"
)

// ChunkOptions configure the parse, structure and chunk path.
type ChunkOptions struct {
	StartPage, EndPage int // 1-based inclusive, 0 = document bounds
	HeadingMargin      float64
	Chunking           chunker.Config
	Counter            chunker.TokenCounter
}

// ChunkResult is the output of ChunkDocument.
type ChunkResult struct {
	Document *doctree.Document
	Blocks   []doctree.LogicalBlock
	Chunks   []doctree.Chunk
}

// ParseFile parses an uploaded file into a document.
func ParseFile(data []byte, filename string, opts parser.Options) (*doctree.Document, error) {
	doc, err := parser.Parse(bytes.NewReader(data), filename, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return doc, nil
}

// ChunkDocument reconstructs the structure of doc over the requested page
// range and packs it into chunks. Thresholds and page range are validated
// before any work is done.
func ChunkDocument(doc *doctree.Document, opts ChunkOptions) (*ChunkResult, error) {
	if err := opts.Chunking.Validate(); err != nil {
		return nil, err
	}
	blocks, err := opts.structure(doc)
	if err != nil {
		return nil, err
	}
	chunks, err := opts.chunk(blocks)
	if err != nil {
		return nil, err
	}
	return &ChunkResult{Document: doc, Blocks: blocks, Chunks: chunks}, nil
}

// ChunkPlainText chunks pasted text without a document, one block per
// paragraph. Page bounds do not apply.
func ChunkPlainText(text string, opts ChunkOptions) ([]doctree.Chunk, error) {
	return chunker.ChunkText(text, opts.counter(), opts.Chunking)
}

// EditChunks returns a copy of chunks with the text of the indices in edits
// replaced and their tokens recounted. A blank edit keeps the original text.
func EditChunks(chunks []doctree.Chunk, edits map[int]string, count chunker.TokenCounter) ([]doctree.Chunk, error) {
	out := make([]doctree.Chunk, len(chunks))
	copy(out, chunks)
	if count == nil {
		count = chunker.EstimateTokens
	}
	for i, text := range edits {
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("edited chunk %d out of range (0-%d)", i, len(out)-1)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out[i].Text = text
		out[i].Tokens = count(text)
	}
	return out, nil
}

func (o ChunkOptions) structure(doc *doctree.Document) ([]doctree.LogicalBlock, error) {
	start, end := ResolveRange(doc, o.StartPage, o.EndPage)
	return structure.New(o.HeadingMargin).Range(doc, start, end)
}

func (o ChunkOptions) chunk(blocks []doctree.LogicalBlock) ([]doctree.Chunk, error) {
	return chunker.ChunkBlocks(blocks, o.counter(), o.Chunking)
}

func (o ChunkOptions) counter() chunker.TokenCounter {
	if o.Counter == nil {
		return chunker.EstimateTokens
	}
	return o.Counter
}

// ResolveRange fills zero bounds with the document's first and last page.
func ResolveRange(doc *doctree.Document, start, end int) (int, int) {
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = doc.PageCount()
	}
	return start, end
}
