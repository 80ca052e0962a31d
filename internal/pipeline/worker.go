package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/parser"
	"github.com/dgallion1/flashgest/internal/qna"
	"github.com/dgallion1/flashgest/internal/structure"
	"golang.org/x/sync/errgroup"
)

// ErrNoGenerator is recorded when a job needs generation but neither a
// configured generator nor manual responses are available.
var ErrNoGenerator = errors.New("no generator configured")

// Defaults are the service-wide settings a job's options fall back to.
type Defaults struct {
	Chunking      chunker.Config
	HeadingMargin float64
	Counter       chunker.TokenCounter
	Parser        parser.Options

	TokensPerQuestion int
	MinQuestions      int
	MaxQuestions      int
	Format            generate.Format
	Markers           qna.Markers
}

// Worker processes a single document job.
type Worker struct {
	gen       generate.Generator
	extractor *qna.Extractor
	log       *slog.Logger
	defaults  Defaults

	maxConcurrentGenerate int

	// backoff is swapped out in tests.
	backoff func(attempt int) time.Duration
}

func NewWorker(gen generate.Generator, log *slog.Logger, defaults Defaults, maxGenerate int) *Worker {
	if maxGenerate <= 0 {
		maxGenerate = 1
	}
	return &Worker{
		gen:                   gen,
		extractor:             qna.New(defaults.Markers),
		log:                   log,
		defaults:              defaults,
		maxConcurrentGenerate: maxGenerate,
		backoff:               Backoff,
	}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	opts := job.Options
	chunkOpts := w.chunkOptions(opts)

	if err := chunkOpts.Chunking.Validate(); err != nil {
		w.fail(log, job, "validating", err)
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := ParseFile(job.FileData(), job.Filename, w.defaults.Parser)
	if err != nil {
		w.fail(log, job, "parsing", err)
		return
	}
	job.releaseFileData()
	if job.Title != "" {
		doc.Title = job.Title
	} else {
		job.setTitle(doc.Title)
	}
	job.SetTotalPages(doc.PageCount())
	log.Info("parsed document", "pages", doc.PageCount(), "title", doc.Title)

	// Phase 2: Structure
	job.SetStatus(StatusStructuring, "structuring")
	blocks, err := chunkOpts.structure(doc)
	if err != nil {
		w.fail(log, job, "structuring", err)
		return
	}
	job.SetContentHash(ContentHashHex([]byte(structure.Flatten(blocks))))

	// Phase 3: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := chunkOpts.chunk(blocks)
	if err != nil {
		w.fail(log, job, "chunking", err)
		return
	}
	job.SetChunks(chunks)
	log.Info("chunked document", "blocks", len(blocks), "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	if opts.ChunkOnly {
		job.SetStatus(StatusCompleted, "chunked")
		return
	}

	// Phase 4: Generate
	edited, err := EditChunks(chunks, opts.ChunkTexts, chunkOpts.Counter)
	if err != nil {
		w.fail(log, job, "generating", err)
		return
	}
	if len(opts.ChunkTexts) > 0 {
		log.Info("using edited chunk text", "edited", len(opts.ChunkTexts))
	}
	selected, err := selectChunks(edited, opts.Chunks)
	if err != nil {
		w.fail(log, job, "generating", err)
		return
	}
	gen := w.generatorFor(opts)
	if gen == nil {
		w.fail(log, job, "generating", ErrNoGenerator)
		return
	}
	job.SetChunksSelected(len(selected))
	job.SetStatus(StatusGenerating, "generating")
	w.generateAll(ctx, job, gen, doc.Title, selected, log)

	records := job.Records()
	hadErrors := job.HasErrors()
	log.Info("generation complete", "model", gen.Model(), "records", len(records), "errors", hadErrors)

	switch {
	case hadErrors && len(records) > 0:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "generating")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error(phase+" failed", "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}

// generateAll fans generation out over chunks. A failing chunk is recorded
// on the job and does not stop the others.
func (w *Worker) generateAll(ctx context.Context, job *Job, gen generate.Generator, title string, chunks []doctree.Chunk, log *slog.Logger) {
	format := job.Options.Format
	if format == "" {
		format = w.defaults.Format
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentGenerate)

	for _, chunk := range chunks {
		g.Go(func() error {
			defer job.IncrChunksProcessed()
			if err := gctx.Err(); err != nil {
				job.AddError(fmt.Sprintf("chunk %d: %s", chunk.Index, err))
				return nil
			}
			req := generate.Request{
				ChunkText:    chunk.Text,
				ChunkIndex:   chunk.Index,
				NumQuestions: w.questionsFor(job.Options, chunk.Tokens),
				Title:        title,
				Format:       format,
			}
			onRetry := func(attempt int, err error) {
				log.Warn("retryable generation error", "chunk", chunk.Index, "attempt", attempt, "error", err)
			}
			text, err := withRetry(gctx, w.backoff, onRetry, func() (string, error) {
				return gen.Generate(gctx, req)
			})
			if err != nil {
				log.Error("generation failed", "chunk", chunk.Index, "error", err)
				job.AddError(fmt.Sprintf("chunk %d: %s", chunk.Index, err))
				return nil
			}

			res := w.extractor.Extract(text)
			kept, dropped := generate.FilterRecords(res.Records)
			job.SetChunkResult(chunk.Index, kept, res.Warnings, dropped)
			if dropped > 0 {
				log.Warn("dropped invalid records", "chunk", chunk.Index, "dropped", dropped)
			}
			log.Debug("chunk generated", "chunk", chunk.Index, "records", len(kept), "warnings", len(res.Warnings))
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) generatorFor(opts JobOptions) generate.Generator {
	if len(opts.Responses) > 0 {
		return &generate.ManualGenerator{Responses: opts.Responses}
	}
	return w.gen
}

func (w *Worker) chunkOptions(opts JobOptions) ChunkOptions {
	cfg := w.defaults.Chunking
	if opts.Chunking.MinTokens > 0 {
		cfg.MinTokens = opts.Chunking.MinTokens
	}
	if opts.Chunking.MaxTokens > 0 {
		cfg.MaxTokens = opts.Chunking.MaxTokens
	}
	return ChunkOptions{
		StartPage:     opts.StartPage,
		EndPage:       opts.EndPage,
		HeadingMargin: w.defaults.HeadingMargin,
		Chunking:      cfg,
		Counter:       w.defaults.Counter,
	}
}

func (w *Worker) questionsFor(opts JobOptions, tokens int) int {
	per, minQ, maxQ := w.defaults.TokensPerQuestion, w.defaults.MinQuestions, w.defaults.MaxQuestions
	if opts.TokensPerQuestion > 0 {
		per = opts.TokensPerQuestion
	}
	if opts.MinQuestions > 0 {
		minQ = opts.MinQuestions
	}
	if opts.MaxQuestions > 0 {
		maxQ = opts.MaxQuestions
	}
	return generate.QuestionsFor(tokens, per, minQ, maxQ)
}

// selectChunks returns the chunks named by indices, ascending and without
// duplicates. No indices selects every chunk.
func selectChunks(chunks []doctree.Chunk, indices []int) ([]doctree.Chunk, error) {
	if len(indices) == 0 {
		return chunks, nil
	}
	seen := make(map[int]bool, len(indices))
	sorted := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(chunks) {
			return nil, fmt.Errorf("chunk index %d out of range (0-%d)", i, len(chunks)-1)
		}
		if !seen[i] {
			seen[i] = true
			sorted = append(sorted, i)
		}
	}
	sort.Ints(sorted)
	out := make([]doctree.Chunk, len(sorted))
	for n, i := range sorted {
		out[n] = chunks[i]
	}
	return out, nil
}
