package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/newsrag/internal/config"
	"github.com/cloo-solutions/newsrag/internal/database"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/loader"
	"github.com/cloo-solutions/newsrag/internal/ollama"
	"github.com/cloo-solutions/newsrag/internal/openai"
	"github.com/cloo-solutions/newsrag/internal/repository"
	"github.com/cloo-solutions/newsrag/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// providerEmbedder is an embedding client that can name itself in index manifests.
type providerEmbedder interface {
	service.EmbeddingClient
	Provider() string
}

// pipeline bundles the components every index command needs.
type pipeline struct {
	cfg       *config.Config
	embedder  providerEmbedder
	persister service.IndexPersister
	builder   *service.IndexBuilder
	// location is the persist directory, or the index name in Postgres
	location string
	pool     *pgxpool.Pool
}

func openPipeline(ctx context.Context, cfg *config.Config, migrate bool) (*pipeline, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:      cfg,
		embedder: embedder,
		location: cfg.PersistDir,
	}

	if cfg.UsesPostgres() {
		if migrate {
			if err := database.Migrate(cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")

		p.pool = pool
		p.persister = repository.NewIndexRepository(pool)
	} else {
		p.persister = index.NewFileBackend()
	}

	p.builder = service.NewIndexBuilder(loader.New(), embedder, p.persister, service.BuilderConfig{
		Chunk: service.ChunkConfig{
			MaxChars:  cfg.ChunkMaxChars,
			MinChars:  cfg.ChunkMinChars,
			Overlap:   cfg.ChunkOverlap,
			MaxChunks: cfg.ChunkMaxChunks,
		},
		Provider: embedder.Provider(),
	})

	return p, nil
}

func (p *pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *pipeline) queryEngine() *service.QueryEngine {
	return service.NewQueryEngine(p.embedder, newLanguageModel(p.cfg), service.QueryConfig{
		TopK:          p.cfg.TopK,
		MaxTokens:     p.cfg.MaxTokens,
		ContextWindow: p.cfg.ContextWindow,
	})
}

func newEmbedder(cfg *config.Config) (providerEmbedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOllama:
		return ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.EmbeddingTimeout,
		}), nil
	case config.EmbeddingProviderOpenAI:
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.EmbeddingBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			Timeout:             cfg.EmbeddingTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func newLanguageModel(cfg *config.Config) *openai.ChatClient {
	return openai.NewChatClient(openai.ChatConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
}

// loadConfig loads and validates the configuration. Nothing touches an index
// or a provider before this succeeds.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
