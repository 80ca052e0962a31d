// Command flashgest chunks documents, parses model output and builds
// flashcard decks from the command line.
//
//	flashgest chunk -file notes.pdf -start 1 -end 3
//	flashgest extract -format tsv < response.txt
//	flashgest cards -file notes.pdf -format tsv -o deck.tsv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/flashgest/internal/config"
	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/export"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/pipeline"
	"github.com/dgallion1/flashgest/internal/qna"
)

const usage = `usage: flashgest <command> [flags]

commands:
  chunk     split a document into prompt-sized chunks
  extract   parse question/answer text from stdin or -in
  cards     chunk a document, generate and export flashcards
`

// exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	log := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	var cmd func(context.Context, *cli) error
	switch args[0] {
	case "chunk":
		cmd = runChunk
	case "extract":
		cmd = runExtract
	case "cards":
		cmd = runCards
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	c := &cli{
		name:   args[0],
		args:   args[1:],
		cfg:    cfg,
		log:    log,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	if err := cmd(ctx, c); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "flashgest %s: %s\n", c.name, ue)
			return exitUsage
		}
		log.Error(c.name+" failed", "error", err)
		return exitFailure
	}
	return exitOK
}

type usageError string

func (e usageError) Error() string { return string(e) }

type cli struct {
	name   string
	args   []string
	cfg    config.Config
	log    *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) flags() *flag.FlagSet {
	fs := flag.NewFlagSet("flashgest "+c.name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// parse parses flags and wraps bad input as a usage error.
func (c *cli) parse(fs *flag.FlagSet) error {
	if err := fs.Parse(c.args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError(err.Error())
	}
	if fs.NArg() > 0 {
		return usageError(fmt.Sprintf("unexpected arguments %v", fs.Args()))
	}
	return nil
}

// chunkFlags are shared by chunk and cards.
type chunkFlags struct {
	file       string
	start, end int
	min, max   int
	tokenizer  string
}

func (f *chunkFlags) register(fs *flag.FlagSet, cfg config.Config) {
	fs.StringVar(&f.file, "file", "", "document to read (pdf, md, docx, html, txt, csv, xlsx); chunk reads plain text from stdin with -")
	fs.IntVar(&f.start, "start", 0, "first page, 1-based (default first page)")
	fs.IntVar(&f.end, "end", 0, "last page, inclusive (default last page)")
	fs.IntVar(&f.min, "min", cfg.MinChunkTokens, "merge chunks below this many tokens")
	fs.IntVar(&f.max, "max", cfg.MaxChunkTokens, "close a chunk once it exceeds this many tokens")
	fs.StringVar(&f.tokenizer, "tokenizer", cfg.Tokenizer, "token counter: estimate or tiktoken")
}

func (f *chunkFlags) apply(cfg *config.Config) error {
	if f.file == "" {
		return usageError("-file is required")
	}
	cfg.MinChunkTokens = f.min
	cfg.MaxChunkTokens = f.max
	cfg.Tokenizer = f.tokenizer
	return nil
}

func runChunk(ctx context.Context, c *cli) error {
	var (
		cf     chunkFlags
		asJSON bool
	)
	fs := c.flags()
	cf.register(fs, c.cfg)
	fs.BoolVar(&asJSON, "json", false, "print chunks as JSON")
	if err := c.parse(fs); err != nil {
		return err
	}
	if err := cf.apply(&c.cfg); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return usageError(err.Error())
	}

	defaults, err := pipeline.DefaultsFromConfig(c.cfg)
	if err != nil {
		return err
	}
	opts := pipeline.ChunkOptions{
		StartPage:     cf.start,
		EndPage:       cf.end,
		HeadingMargin: defaults.HeadingMargin,
		Chunking:      defaults.Chunking,
		Counter:       defaults.Counter,
	}

	var chunks []doctree.Chunk
	if cf.file == "-" {
		text, err := io.ReadAll(c.stdin)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if chunks, err = pipeline.ChunkPlainText(string(text), opts); err != nil {
			return err
		}
		c.log.Info("chunked text", "chunks", len(chunks))
	} else {
		data, err := os.ReadFile(cf.file)
		if err != nil {
			return err
		}
		doc, err := pipeline.ParseFile(data, cf.file, defaults.Parser)
		if err != nil {
			return err
		}
		res, err := pipeline.ChunkDocument(doc, opts)
		if err != nil {
			return err
		}
		chunks = res.Chunks
		c.log.Info("chunked document", "file", cf.file, "pages", doc.PageCount(), "blocks", len(res.Blocks), "chunks", len(chunks))
	}

	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if chunks == nil {
			chunks = []doctree.Chunk{}
		}
		return enc.Encode(chunks)
	}
	for _, ch := range chunks {
		if _, err := fmt.Fprintf(c.stdout, "=== Chunk %d (%d tokens) ===\n%s\n\n", ch.Index, ch.Tokens, ch.Text); err != nil {
			return err
		}
	}
	return nil
}

func runExtract(ctx context.Context, c *cli) error {
	var (
		in, out, format string
		validate        bool
	)
	fs := c.flags()
	fs.StringVar(&in, "in", "", "file with model output (default stdin)")
	fs.StringVar(&out, "o", "", "output file (default stdout)")
	fs.StringVar(&format, "format", "json", "output format: json, tsv, txt, xlsx")
	fs.BoolVar(&validate, "validate", false, "drop records that fail length and injection checks")
	if err := c.parse(fs); err != nil {
		return err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return usageError(err.Error())
	}

	src := c.stdin
	if in != "" {
		file, err := os.Open(in)
		if err != nil {
			return err
		}
		defer file.Close()
		src = file
	}
	text, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	ex := qna.New(qna.Markers{Question: c.cfg.QuestionMarkers, Answer: c.cfg.AnswerMarkers})
	res := ex.Extract(string(text))
	for _, w := range res.Warnings {
		c.log.Warn("extraction warning", "kind", w.Kind, "text", w.Text)
	}
	records := res.Records
	if validate {
		var dropped int
		records, dropped = generate.FilterRecords(records)
		if dropped > 0 {
			c.log.Warn("dropped invalid records", "dropped", dropped)
		}
	}
	return c.writeRecords(out, f, records)
}

func runCards(ctx context.Context, c *cli) error {
	var (
		cf                  chunkFlags
		out, format, gen    string
		responses, chunks   string
		promptFormat, title string
		edits               string
	)
	fs := c.flags()
	cf.register(fs, c.cfg)
	fs.StringVar(&out, "o", "", "output file (default stdout)")
	fs.StringVar(&format, "format", "tsv", "output format: json, tsv, txt, xlsx")
	fs.StringVar(&gen, "generator", c.cfg.Generator, "claude, openai or manual")
	fs.StringVar(&promptFormat, "prompt-format", c.cfg.PromptFormat, "ask the model for markers or json")
	fs.StringVar(&responses, "responses", "", "JSON file mapping chunk index to hand-written model output (manual generator)")
	fs.StringVar(&chunks, "chunks", "", "comma separated chunk indices to generate for (default all)")
	fs.StringVar(&edits, "chunk-texts", "", "JSON file mapping chunk index to edited chunk text")
	fs.StringVar(&title, "title", "", "document title used in prompts (default file name)")
	if err := c.parse(fs); err != nil {
		return err
	}
	if err := cf.apply(&c.cfg); err != nil {
		return err
	}
	c.cfg.Generator = gen
	c.cfg.PromptFormat = promptFormat
	if err := c.cfg.Validate(); err != nil {
		return usageError(err.Error())
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return usageError(err.Error())
	}

	opts := pipeline.JobOptions{StartPage: cf.start, EndPage: cf.end}
	if opts.Chunks, err = parseIndices(chunks); err != nil {
		return usageError(err.Error())
	}
	if responses != "" {
		if opts.Responses, err = readIndexMap(responses); err != nil {
			return err
		}
	}
	if edits != "" {
		if opts.ChunkTexts, err = readIndexMap(edits); err != nil {
			return err
		}
	}

	defaults, err := pipeline.DefaultsFromConfig(c.cfg)
	if err != nil {
		return err
	}
	stats := generate.NewLLMStats(time.Hour)
	generator, err := pipeline.GeneratorFromConfig(c.cfg, stats)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(cf.file)
	if err != nil {
		return err
	}

	job := pipeline.NewJob(cf.file, title, data, opts)
	w := pipeline.NewWorker(generator, c.log, defaults, c.cfg.MaxConcurrentGenerate)
	w.Process(ctx, job)

	snap := job.Snapshot()
	for _, warn := range snap.Warnings {
		c.log.Warn("extraction warning", "chunk", warn.Chunk, "kind", warn.Kind, "text", warn.Text)
	}
	if generator != nil {
		s := stats.Snapshot()
		c.log.Info("generation stats", "model", generator.Model(), "calls", s.Calls, "failures", s.Failures, "p50_ms", s.P50Ms, "p95_ms", s.P95Ms)
	}
	if snap.Status == pipeline.StatusFailed {
		return fmt.Errorf("job failed in %s: %s", snap.Phase, strings.Join(snap.Progress.Errors, "; "))
	}
	if snap.Status == pipeline.StatusPartial {
		c.log.Warn("some chunks failed", "errors", snap.Progress.Errors)
	}
	return c.writeRecords(out, f, job.Records())
}

func (c *cli) writeRecords(path string, f export.Format, records []qna.Record) error {
	if path == "" {
		return export.Write(c.stdout, f, records)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(file, f, records); err != nil {
		file.Close()
		return err
	}
	c.log.Info("wrote records", "path", path, "format", f, "records", len(records))
	return file.Close()
}

func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("-chunks: %q is not a chunk index", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// readIndexMap reads a JSON object keyed by chunk index.
func readIndexMap(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[int]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}
