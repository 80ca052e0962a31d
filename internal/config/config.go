package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	LogLevel string `yaml:"log_level"`

	// Generation
	Generator       string `yaml:"generator"` // claude | openai | manual
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`
	PromptFormat    string `yaml:"prompt_format"` // markers | json

	// Worker pool
	WorkerCount           int `yaml:"worker_count"`
	MaxQueueSize          int `yaml:"max_queue_size"`
	MaxConcurrentGenerate int `yaml:"max_concurrent_generate"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Chunking defaults
	MinChunkTokens int     `yaml:"min_chunk_tokens"`
	MaxChunkTokens int     `yaml:"max_chunk_tokens"`
	Tokenizer      string  `yaml:"tokenizer"` // estimate | tiktoken
	HeadingMargin  float64 `yaml:"heading_margin"`

	// Question policy
	TokensPerQuestion int `yaml:"tokens_per_question"`
	MinQuestions      int `yaml:"min_questions"`
	MaxQuestions      int `yaml:"max_questions"`

	// Marker labels recognised in generated text
	QuestionMarkers []string `yaml:"question_markers"`
	AnswerMarkers   []string `yaml:"answer_markers"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPDFCPU bool `yaml:"pdf_fallback_pdfcpu"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:     "8090",
		LogLevel: "info",

		Generator:      "manual",
		AnthropicModel: "claude-sonnet-4-5",
		OpenAIModel:    "gpt-5-mini",
		PromptFormat:   "markers",

		WorkerCount:           4,
		MaxQueueSize:          100,
		MaxConcurrentGenerate: 5,

		MaxUploadBytes: 52428800, // 50MB

		MinChunkTokens: 200,
		MaxChunkTokens: 1000,
		Tokenizer:      "estimate",
		HeadingMargin:  1.0,

		TokensPerQuestion: 200,
		MinQuestions:      1,
		MaxQuestions:      5,

		QuestionMarkers: []string{"Frage", "Question"},
		AnswerMarkers:   []string{"Antwort", "Answer"},

		JobTTL: 1 * time.Hour,

		PDFFallbackPDFCPU: true,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// FLASHGEST_CONFIG (if any) and then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("FLASHGEST_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.overlayEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads a YAML configuration file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if err := cfg.overlayFile(path); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("FLASHGEST_API_KEY", c.APIKey)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	c.Generator = envOr("GENERATOR", c.Generator)
	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.PromptFormat = envOr("PROMPT_FORMAT", c.PromptFormat)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxConcurrentGenerate = envInt("MAX_CONCURRENT_GENERATE", c.MaxConcurrentGenerate)

	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)

	c.MinChunkTokens = envInt("MIN_CHUNK_TOKENS", c.MinChunkTokens)
	c.MaxChunkTokens = envInt("MAX_CHUNK_TOKENS", c.MaxChunkTokens)
	c.Tokenizer = envOr("TOKENIZER", c.Tokenizer)
	c.HeadingMargin = envFloat("HEADING_MARGIN", c.HeadingMargin)

	c.TokensPerQuestion = envInt("TOKENS_PER_QUESTION", c.TokensPerQuestion)
	c.MinQuestions = envInt("MIN_QUESTIONS", c.MinQuestions)
	c.MaxQuestions = envInt("MAX_QUESTIONS", c.MaxQuestions)

	c.QuestionMarkers = envList("QUESTION_MARKERS", c.QuestionMarkers)
	c.AnswerMarkers = envList("ANSWER_MARKERS", c.AnswerMarkers)

	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)

	c.PDFFallbackPDFCPU = envBool("PDF_FALLBACK_PDFCPU", c.PDFFallbackPDFCPU)
}

func (c *Config) applyDefaults() {
	d := Defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxConcurrentGenerate <= 0 {
		c.MaxConcurrentGenerate = d.MaxConcurrentGenerate
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.HeadingMargin <= 0 {
		c.HeadingMargin = d.HeadingMargin
	}
	if c.TokensPerQuestion <= 0 {
		c.TokensPerQuestion = d.TokensPerQuestion
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
}

// Validate checks settings every entry point depends on.
func (c Config) Validate() error {
	if c.MinChunkTokens <= 0 || c.MinChunkTokens >= c.MaxChunkTokens {
		return fmt.Errorf("MIN_CHUNK_TOKENS (%d) must be positive and below MAX_CHUNK_TOKENS (%d)", c.MinChunkTokens, c.MaxChunkTokens)
	}
	if c.MinQuestions < 1 || c.MaxQuestions < c.MinQuestions {
		return fmt.Errorf("question bounds [%d, %d] are invalid", c.MinQuestions, c.MaxQuestions)
	}
	switch strings.ToLower(c.Generator) {
	case "claude", "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for GENERATOR=%s", c.Generator)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for GENERATOR=openai")
		}
	case "manual", "":
	default:
		return fmt.Errorf("unknown GENERATOR %q", c.Generator)
	}
	switch strings.ToLower(c.PromptFormat) {
	case "markers", "json", "":
	default:
		return fmt.Errorf("unknown PROMPT_FORMAT %q", c.PromptFormat)
	}
	switch strings.ToLower(c.Tokenizer) {
	case "estimate", "tiktoken", "":
	default:
		return fmt.Errorf("unknown TOKENIZER %q", c.Tokenizer)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateServer adds the checks only the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("FLASHGEST_API_KEY is required")
	}
	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma separated variable, dropping blank entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
