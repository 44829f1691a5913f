package service

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextIsSingleChunk(t *testing.T) {
	spans := chunkText("  Apple beat earnings estimates.  ", DefaultChunkConfig())

	require.Len(t, spans, 1)
	assert.Equal(t, "Apple beat earnings estimates.", spans[0].text)
	assert.Equal(t, 2, spans[0].offset)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, chunkText("", DefaultChunkConfig()))
	assert.Nil(t, chunkText(" \n\t ", DefaultChunkConfig()))
}

func TestChunkText_RespectsMaxCharsAndCutsAtWhitespace(t *testing.T) {
	text := strings.Repeat("word ", 100)
	cfg := ChunkConfig{MaxChars: 52, MinChars: 10, Overlap: 0}

	spans := chunkText(text, cfg)
	require.Greater(t, len(spans), 1)
	for _, span := range spans {
		assert.LessOrEqual(t, len([]rune(span.text)), cfg.MaxChars)
		assert.False(t, strings.HasPrefix(span.text, "ord"), "chunks start on word boundaries")
		assert.True(t, strings.HasSuffix(span.text, "word"))
	}
}

func TestChunkText_OffsetsPointIntoSource(t *testing.T) {
	text := "Revenue rose sharply. Margins held steady. Guidance was raised for the year ahead."
	cfg := ChunkConfig{MaxChars: 30, MinChars: 5, Overlap: 8}

	runes := []rune(text)
	spans := chunkText(text, cfg)
	require.NotEmpty(t, spans)
	for _, span := range spans {
		n := len([]rune(span.text))
		assert.Equal(t, span.text, string(runes[span.offset:span.offset+n]))
	}
}

func TestChunkText_OverlapSharesText(t *testing.T) {
	text := strings.Repeat("a", 100)
	cfg := ChunkConfig{MaxChars: 40, MinChars: 10, Overlap: 10}

	spans := chunkText(text, cfg)
	require.Len(t, spans, 3)
	assert.Equal(t, 0, spans[0].offset)
	assert.Equal(t, 30, spans[1].offset)
	assert.Equal(t, 60, spans[2].offset)
}

func TestChunkText_MaxChunks(t *testing.T) {
	text := strings.Repeat("token ", 200)
	cfg := ChunkConfig{MaxChars: 30, MinChars: 5, Overlap: 0, MaxChunks: 2}

	assert.Len(t, chunkText(text, cfg), 2)
}

func TestChunkText_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("日本株 ", 50)
	cfg := ChunkConfig{MaxChars: 20, MinChars: 5, Overlap: 4}

	for _, span := range chunkText(text, cfg) {
		assert.LessOrEqual(t, len([]rune(span.text)), 20)
	}
}

func TestChunkDocument_KeepsSourceReference(t *testing.T) {
	doc := domain.Document{
		Source:   "apple_q1.txt",
		Text:     strings.Repeat("Apple supply chain news. ", 10),
		Metadata: map[string]string{domain.MetaFileName: "apple_q1.txt"},
	}

	chunks := ChunkDocument(doc, ChunkConfig{MaxChars: 60, MinChars: 20, Overlap: 10})
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, "apple_q1.txt", c.Source)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "apple_q1.txt", c.Metadata[domain.MetaFileName])
	}
}
