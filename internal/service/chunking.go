package service

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/newsrag/internal/domain"
)

// ChunkConfig controls how documents are split before embedding.
// Windows are measured in runes and cut at the last whitespace before MaxChars,
// but never before MinChars. Consecutive windows share Overlap runes.
// MaxChunks caps chunks per document; 0 means no cap.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig sizes chunks well under the input limit of small
// sentence-embedding models.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1024,
		MinChars:  256,
		Overlap:   128,
		MaxChunks: 0,
	}
}

type textSpan struct {
	offset int
	text   string
}

// ChunkDocument splits a document into chunks that reference their source.
func ChunkDocument(doc domain.Document, cfg ChunkConfig) []domain.Chunk {
	spans := chunkText(doc.Text, cfg)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, domain.Chunk{
			Source:   doc.Source,
			Index:    i,
			Offset:   span.offset,
			Text:     span.text,
			Metadata: doc.Metadata,
		})
	}
	return chunks
}

func chunkText(text string, cfg ChunkConfig) []textSpan {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(text)

	spans := make([]textSpan, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(spans) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if span, ok := trimSpan(runes, start, end); ok {
			spans = append(spans, span)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return spans
}

// trimSpan strips surrounding whitespace from runes[start:end] and reports the
// rune offset of the first kept rune.
func trimSpan(runes []rune, start, end int) (textSpan, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return textSpan{}, false
	}
	return textSpan{offset: start, text: string(runes[start:end])}, true
}
