package domain

import "time"

// IndexEntry is the unit of storage of an index: a chunk and its embedding.
type IndexEntry struct {
	ID     string    `json:"id"`
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// ScoredEntry is an IndexEntry paired with its similarity to a query.
type ScoredEntry struct {
	Entry IndexEntry
	Score float32
}

// RetrievalResult is ranked by descending score.
type RetrievalResult []ScoredEntry

// Chunks returns the chunks of the result in rank order.
func (r RetrievalResult) Chunks() []Chunk {
	chunks := make([]Chunk, len(r))
	for i, scored := range r {
		chunks[i] = scored.Entry.Chunk
	}
	return chunks
}

// IndexManifest describes a persisted index.
type IndexManifest struct {
	Version    int       `json:"version"`
	Dimensions int       `json:"dimensions"`
	Provider   string    `json:"provider"`
	EntryCount int       `json:"entry_count"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// Answer is a generated response together with the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []Chunk
}
