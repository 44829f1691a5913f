// Package index holds embedded chunks in memory and retrieves them by cosine similarity.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/google/uuid"
)

// Store holds index entries of a single dimensionality.
// It is built once and is safe for concurrent Retrieve calls afterwards.
type Store struct {
	dimensions int
	provider   string
	entries    []domain.IndexEntry
	ids        map[string]struct{}
}

// NewStore creates an empty store. A dimensionality of 0 is fixed by the first insert.
func NewStore(dimensions int, provider string) *Store {
	return &Store{
		dimensions: dimensions,
		provider:   provider,
		ids:        make(map[string]struct{}),
	}
}

// Insert appends chunks and their vectors, assigning each entry a unique ID.
func (s *Store) Insert(chunks []domain.Chunk, vectors [][]float32) ([]domain.IndexEntry, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("insert: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	dims := s.dimensions
	for i, vec := range vectors {
		if dims == 0 {
			dims = len(vec)
		}
		if len(vec) == 0 || len(vec) != dims {
			return nil, domain.ErrDimensionMismatch.WithCause(
				fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(vec), dims))
		}
	}
	s.dimensions = dims

	inserted := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		id := uuid.NewString()
		for s.has(id) {
			id = uuid.NewString()
		}
		entry := domain.IndexEntry{ID: id, Chunk: chunks[i], Vector: vectors[i]}
		s.entries = append(s.entries, entry)
		s.ids[id] = struct{}{}
		inserted[i] = entry
	}

	return inserted, nil
}

// restore appends entries that already carry IDs, as read from a persisted index.
func (s *Store) restore(entries []domain.IndexEntry) error {
	for i, entry := range entries {
		if len(entry.Vector) != s.dimensions {
			return domain.ErrCorruptIndex.WithCause(
				fmt.Errorf("entry %d has %d dimensions, manifest declares %d", i, len(entry.Vector), s.dimensions))
		}
		if entry.ID == "" || s.has(entry.ID) {
			return domain.ErrCorruptIndex.WithCause(fmt.Errorf("entry %d has a missing or duplicate id", i))
		}
		s.entries = append(s.entries, entry)
		s.ids[entry.ID] = struct{}{}
	}
	return nil
}

func (s *Store) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Retrieve returns the topK entries most similar to query, ranked by descending
// cosine similarity. Ties keep insertion order. topK is clamped to the store size.
func (s *Store) Retrieve(query []float32, topK int) (domain.RetrievalResult, error) {
	if topK <= 0 || len(s.entries) == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(query) != s.dimensions {
		return nil, domain.ErrDimensionMismatch.WithCause(
			fmt.Errorf("query has %d dimensions, index has %d", len(query), s.dimensions))
	}

	scored := make(domain.RetrievalResult, len(s.entries))
	for i, entry := range s.entries {
		scored[i] = domain.ScoredEntry{Entry: entry, Score: CosineSimilarity(query, entry.Vector)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Dimensions returns the vector dimensionality, or 0 for an empty store without one.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Provider identifies the embedding provider the vectors came from.
func (s *Store) Provider() string {
	return s.provider
}

// Entries returns the entries in insertion order. The slice must not be modified.
func (s *Store) Entries() []domain.IndexEntry {
	return s.entries
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Holder is an atomically swappable reference to the store being served.
type Holder struct {
	current atomic.Pointer[Store]
}

// NewHolder creates a Holder serving store.
func NewHolder(store *Store) *Holder {
	h := &Holder{}
	h.current.Store(store)
	return h
}

// Get returns the current store, which may be nil.
func (h *Holder) Get() *Store {
	return h.current.Load()
}

// Swap replaces the current store.
func (h *Holder) Swap(store *Store) {
	h.current.Store(store)
}
