package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Embedding providers
const (
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderOpenAI = "openai"
)

// Index backends
const (
	IndexBackendFile     = "file"
	IndexBackendPostgres = "postgres"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	SourceDir  string `envconfig:"SOURCE_DIR" default:"articles"`
	PersistDir string `envconfig:"PERSIST_DIR" default:"storage"`
	ArchiveURL string `envconfig:"ARCHIVE_URL" default:"https://github.com/entbappy/Branching-tutorial/raw/master/articles.zip"`

	// Language model (OpenRouter exposes an OpenAI-compatible API)
	OpenRouterAPIKey string        `envconfig:"OPENROUTER_API_KEY"`
	LLMBaseURL       string        `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	LLMModel         string        `envconfig:"LLM_MODEL" default:"mistralai/mixtral-8x7b-instruct"`
	MaxTokens        int           `envconfig:"MAX_TOKENS" default:"2048"`
	ContextWindow    int           `envconfig:"CONTEXT_WINDOW" default:"32768"`
	LLMTimeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`

	EmbeddingProvider   string        `envconfig:"EMBEDDING_PROVIDER" default:"ollama"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingBaseURL    string        `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`

	ChunkMaxChars  int `envconfig:"CHUNK_MAX_CHARS" default:"1024"`
	ChunkMinChars  int `envconfig:"CHUNK_MIN_CHARS" default:"256"`
	ChunkOverlap   int `envconfig:"CHUNK_OVERLAP" default:"128"`
	ChunkMaxChunks int `envconfig:"CHUNK_MAX_CHUNKS" default:"0"`
	TopK           int `envconfig:"TOP_K" default:"3"`

	IndexBackend string `envconfig:"INDEX_BACKEND" default:"file"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	APIToken      string `envconfig:"API_TOKEN"`
	TemplatesFile string `envconfig:"TEMPLATES_FILE"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// envPrefix namespaces every variable; the unprefixed name is read as a fallback.
const envPrefix = "NEWSRAG"

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// EnvVars lists the prefixed variables Load reads, in declaration order.
func EnvVars() []string {
	var buf bytes.Buffer
	if err := envconfig.Usagef(envPrefix, &Config{}, &buf, "{{range .}}{{usage_key .}}\n{{end}}"); err != nil {
		return nil
	}
	return strings.Fields(buf.String())
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks that every credential and option needed to build or query an
// index is present. It runs before any index operation.
func (c *Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return domain.ErrMissingCredential.WithCause(fmt.Errorf("OPENROUTER_API_KEY is not set"))
	}

	switch c.EmbeddingProvider {
	case EmbeddingProviderOllama:
	case EmbeddingProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return domain.ErrMissingCredential.WithCause(fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider"))
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbeddingProvider)
	}

	switch c.IndexBackend {
	case IndexBackendFile:
	case IndexBackendPostgres:
		if c.DatabaseURL == "" {
			return domain.ErrMissingCredential.WithCause(fmt.Errorf("DATABASE_URL is required for the postgres index backend"))
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}

	if c.MaxTokens <= 0 || c.ContextWindow <= 0 {
		return fmt.Errorf("max tokens and context window must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top k must be positive")
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) UsesPostgres() bool {
	return c.IndexBackend == IndexBackendPostgres
}
