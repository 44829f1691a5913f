package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentLoader reads source documents from a directory
type DocumentLoader interface {
	Load(dir string) ([]domain.Document, error)
}

// IndexPersister stores and reloads whole indexes at a location
type IndexPersister interface {
	Exists(ctx context.Context, location string) (bool, error)
	Persist(ctx context.Context, store *index.Store, location string) error
	Load(ctx context.Context, location string) (*index.Store, error)
}

// BuilderConfig configures an IndexBuilder
type BuilderConfig struct {
	Chunk ChunkConfig
	// Provider identifies the embedding provider and model in the index manifest
	Provider string
}

// IndexBuilder turns a source directory into a persisted index.
// Builds are serialized, so two callers never race on the same persist location.
type IndexBuilder struct {
	loader    DocumentLoader
	client    EmbeddingClient
	persister IndexPersister
	cfg       BuilderConfig
	mu        sync.Mutex
}

// NewIndexBuilder creates a new IndexBuilder instance
func NewIndexBuilder(loader DocumentLoader, client EmbeddingClient, persister IndexPersister, cfg BuilderConfig) *IndexBuilder {
	if cfg.Chunk.MaxChars <= 0 {
		cfg.Chunk = DefaultChunkConfig()
	}
	return &IndexBuilder{
		loader:    loader,
		client:    client,
		persister: persister,
		cfg:       cfg,
	}
}

// BuildIfMissing builds and persists an index from sourceDir unless one already
// exists at persistDir. It returns a nil store, and makes no embedding calls,
// when an index is already present.
func (b *IndexBuilder) BuildIfMissing(ctx context.Context, sourceDir, persistDir string) (*index.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exists, err := b.persister.Exists(ctx, persistDir)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing index: %w", err)
	}
	if exists {
		log.Printf("index: found existing index at %s, skipping build", persistDir)
		return nil, nil
	}

	return b.build(ctx, sourceDir, persistDir)
}

// Rebuild builds an index from sourceDir and replaces whatever is persisted at persistDir.
func (b *IndexBuilder) Rebuild(ctx context.Context, sourceDir, persistDir string) (*index.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.build(ctx, sourceDir, persistDir)
}

// Open returns the index at persistDir, building it first if it is missing.
// built reports whether this call performed the build. A persisted index whose
// provider differs from the configured one is rejected, since its vectors
// cannot be compared with new query embeddings.
func (b *IndexBuilder) Open(ctx context.Context, sourceDir, persistDir string) (store *index.Store, built bool, err error) {
	store, err = b.BuildIfMissing(ctx, sourceDir, persistDir)
	if err != nil {
		return nil, false, err
	}
	if store != nil {
		return store, true, nil
	}

	store, err = b.persister.Load(ctx, persistDir)
	if err != nil {
		return nil, false, err
	}
	if b.cfg.Provider != "" && store.Provider() != "" && store.Provider() != b.cfg.Provider {
		return nil, false, domain.ErrProviderMismatch.WithCause(fmt.Errorf(
			"%s holds %s embeddings but %s is configured; rebuild with --force", persistDir, store.Provider(), b.cfg.Provider))
	}
	return store, false, nil
}

func (b *IndexBuilder) build(ctx context.Context, sourceDir, persistDir string) (*index.Store, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexBuilder.Build", telemetry.SpanAttributes{
		SourceDir:  sourceDir,
		PersistDir: persistDir,
		Operation:  "build",
	})
	defer span.End()

	start := time.Now()

	docs, err := b.loader.Load(sourceDir)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ChunkDocument(doc, b.cfg.Chunk)...)
	}
	if len(chunks) == 0 {
		err := domain.ErrNoDocumentsFound.WithCause(
			fmt.Errorf("%d files in %s hold no text", len(docs), sourceDir))
		span.SetError(err)
		return nil, err
	}

	vectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := b.client.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			err = domain.ErrEmbeddingProvider.WithCause(
				fmt.Errorf("chunk %d of %s (%d/%d): %w", chunk.Index, chunk.Source, i+1, len(chunks), err))
			span.SetError(err)
			return nil, err
		}
		vectors = append(vectors, vector)
	}

	store := index.NewStore(0, b.cfg.Provider)
	if _, err := store.Insert(chunks, vectors); err != nil {
		err = domain.ErrEmbeddingProvider.WithCause(err)
		span.SetError(err)
		return nil, err
	}

	if err := b.persister.Persist(ctx, store, persistDir); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	span.SetData("documents", len(docs))
	span.SetData("chunks", len(chunks))
	log.Printf("index: built %d chunks from %d documents in %v (persisted to %s)",
		len(chunks), len(docs), time.Since(start).Round(time.Millisecond), persistDir)

	return store, nil
}
