package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/watcher"
)

const (
	// MaxRetries is the number of consecutive failed rebuilds after which a change is dropped
	MaxRetries = 3
)

// IndexRebuilder rebuilds and persists the index from the source directory
type IndexRebuilder interface {
	Rebuild(ctx context.Context, sourceDir, persistDir string) (*index.Store, error)
}

// IndexSwapper replaces the index being served
type IndexSwapper interface {
	Swap(store *index.Store)
}

// ReindexProcessor rebuilds the index once the source directory has changed.
// Changes arriving during a rebuild leave the processor dirty for the next tick.
type ReindexProcessor struct {
	rebuilder  IndexRebuilder
	swapper    IndexSwapper
	sourceDir  string
	persistDir string

	mu         sync.Mutex
	generation uint64
	built      uint64
	retries    int
}

// NewReindexProcessor creates a new ReindexProcessor instance
func NewReindexProcessor(rebuilder IndexRebuilder, swapper IndexSwapper, sourceDir, persistDir string) *ReindexProcessor {
	return &ReindexProcessor{
		rebuilder:  rebuilder,
		swapper:    swapper,
		sourceDir:  sourceDir,
		persistDir: persistDir,
	}
}

// MarkDirty records a change to the source directory.
func (p *ReindexProcessor) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.retries = 0
}

// Dirty reports whether a change is waiting to be indexed.
func (p *ReindexProcessor) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation != p.built
}

// Follow marks the processor dirty for every event until events is closed.
func (p *ReindexProcessor) Follow(events <-chan watcher.Event) {
	for event := range events {
		log.Printf("reindex: %s %s", event.Path, event.Operation)
		p.MarkDirty()
	}
}

// ProcessJobs implements the JobProcessor interface
func (p *ReindexProcessor) ProcessJobs(ctx context.Context) error {
	p.mu.Lock()
	target := p.generation
	dirty := target != p.built
	p.mu.Unlock()

	if !dirty {
		return nil
	}

	log.Printf("reindex: source %s changed, rebuilding", p.sourceDir)
	store, err := p.rebuilder.Rebuild(ctx, p.sourceDir, p.persistDir)
	if err != nil {
		return p.handleFailure(target, err)
	}

	p.swapper.Swap(store)

	p.mu.Lock()
	if p.built < target {
		p.built = target
	}
	p.retries = 0
	p.mu.Unlock()

	log.Printf("reindex: now serving %d entries", store.Len())
	return nil
}

func (p *ReindexProcessor) handleFailure(target uint64, rebuildErr error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation != target {
		return fmt.Errorf("rebuild failed, newer changes pending: %w", rebuildErr)
	}

	p.retries++
	if p.retries >= MaxRetries {
		p.built = target
		p.retries = 0
		return fmt.Errorf("rebuild failed %d times, keeping the current index: %w", MaxRetries, rebuildErr)
	}

	return fmt.Errorf("rebuild failed (attempt %d/%d): %w", p.retries, MaxRetries, rebuildErr)
}
