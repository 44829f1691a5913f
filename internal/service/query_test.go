package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func buildArticleIndex(t *testing.T) *index.Store {
	t.Helper()
	store, err := newTestBuilder(&keywordEmbedder{}).BuildIfMissing(
		context.Background(), writeArticles(t), filepath.Join(t.TempDir(), "storage"))
	require.NoError(t, err)
	require.NotNil(t, store)
	return store
}

func TestQueryEngine_AnswerTopK_RetrievesRelevantArticles(t *testing.T) {
	ctx := context.Background()
	store := buildArticleIndex(t)

	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string"), 2048, 32768).
		Return("Apple faces slowing iPhone demand in China.", nil)

	engine := NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{MaxTokens: 2048, ContextWindow: 32768})
	answer, err := engine.AnswerTopK(ctx, store, "What trends affect AAPL?", 2)

	require.NoError(t, err)
	assert.Equal(t, "Apple faces slowing iPhone demand in China.", answer.Text)
	require.Len(t, answer.Sources, 2)
	for _, source := range answer.Sources {
		assert.True(t, strings.HasPrefix(source.Source, "apple_"), "unexpected source %s", source.Source)
	}
	mockLLM.AssertExpectations(t)
}

func TestQueryEngine_AnswerTopK_PromptHoldsContextInRankOrder(t *testing.T) {
	ctx := context.Background()
	store := index.NewStore(0, "test")
	_, err := store.Insert([]domain.Chunk{
		{Source: "msft.txt", Text: "Microsoft context"},
		{Source: "aapl.txt", Text: "Apple context"},
	}, [][]float32{{0, 1}, {1, 0}})
	require.NoError(t, err)

	mockEmbedder := new(MockEmbeddingClient)
	mockEmbedder.On("GenerateEmbedding", mock.Anything, "Which company?").Return([]float32{1, 0.1}, nil)

	var prompt string
	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		prompt = p
		return true
	}), 0, 0).Return("Apple.", nil)

	engine := NewQueryEngine(mockEmbedder, mockLLM, QueryConfig{})
	answer, err := engine.AnswerTopK(ctx, store, "  Which company?  ", 2)
	require.NoError(t, err)

	apple := strings.Index(prompt, "Apple context")
	microsoft := strings.Index(prompt, "Microsoft context")
	question := strings.Index(prompt, "Question: Which company?")
	assert.True(t, apple >= 0 && microsoft > apple && question > microsoft, "prompt: %s", prompt)
	assert.Equal(t, "aapl.txt", answer.Sources[0].Source)
	assert.Equal(t, "msft.txt", answer.Sources[1].Source)
}

func TestQueryEngine_Answer_UsesConfiguredTopK(t *testing.T) {
	ctx := context.Background()
	store := buildArticleIndex(t)

	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	engine := NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{TopK: 1})
	answer, err := engine.Answer(ctx, store, "What trends affect AAPL?")

	require.NoError(t, err)
	assert.Len(t, answer.Sources, 1)
}

func TestQueryEngine_AnswerTopK_ClampsToIndexSize(t *testing.T) {
	ctx := context.Background()
	store := buildArticleIndex(t)

	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	engine := NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{})
	answer, err := engine.AnswerTopK(ctx, store, "What trends affect AAPL?", 50)

	require.NoError(t, err)
	assert.Len(t, answer.Sources, store.Len())
}

func TestQueryEngine_AnswerTopK_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	mockEmbedder := new(MockEmbeddingClient)
	mockLLM := new(MockLanguageModel)
	engine := NewQueryEngine(mockEmbedder, mockLLM, QueryConfig{})

	_, err := engine.AnswerTopK(ctx, nil, "What trends affect AAPL?", 3)
	assert.True(t, errors.Is(err, domain.ErrEmptyIndex))

	_, err = engine.AnswerTopK(ctx, index.NewStore(0, "test"), "What trends affect AAPL?", 3)
	assert.True(t, errors.Is(err, domain.ErrEmptyIndex))

	mockEmbedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQueryEngine_AnswerTopK_EmptyQuestion(t *testing.T) {
	mockEmbedder := new(MockEmbeddingClient)
	engine := NewQueryEngine(mockEmbedder, new(MockLanguageModel), QueryConfig{})

	_, err := engine.AnswerTopK(context.Background(), buildArticleIndex(t), "   ", 3)

	assert.True(t, errors.Is(err, domain.ErrMissingRequiredField))
	mockEmbedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestQueryEngine_AnswerTopK_EmbeddingError(t *testing.T) {
	ctx := context.Background()
	apiErr := errors.New("connection refused")

	mockEmbedder := new(MockEmbeddingClient)
	mockEmbedder.On("GenerateEmbedding", mock.Anything, "What trends affect AAPL?").Return(nil, apiErr)
	mockLLM := new(MockLanguageModel)

	engine := NewQueryEngine(mockEmbedder, mockLLM, QueryConfig{})
	_, err := engine.AnswerTopK(ctx, buildArticleIndex(t), "What trends affect AAPL?", 3)

	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))
	assert.True(t, errors.Is(err, apiErr))
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQueryEngine_AnswerTopK_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	mockEmbedder := new(MockEmbeddingClient)
	mockEmbedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	engine := NewQueryEngine(mockEmbedder, new(MockLanguageModel), QueryConfig{})
	_, err := engine.AnswerTopK(ctx, buildArticleIndex(t), "What trends affect AAPL?", 3)

	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestQueryEngine_AnswerTopK_LanguageModelError(t *testing.T) {
	ctx := context.Background()
	apiErr := errors.New("503 service unavailable")

	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", apiErr).Once()

	engine := NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{})
	answer, err := engine.AnswerTopK(ctx, buildArticleIndex(t), "What trends affect AAPL?", 3)

	assert.Nil(t, answer)
	assert.True(t, errors.Is(err, domain.ErrLanguageModel))
	assert.True(t, errors.Is(err, apiErr))
	mockLLM.AssertNumberOfCalls(t, "Generate", 1)
}

func TestQueryEngine_AnswerTopK_EmptyCompletion(t *testing.T) {
	ctx := context.Background()
	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("  \n", nil)

	engine := NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{})
	_, err := engine.AnswerTopK(ctx, buildArticleIndex(t), "What trends affect AAPL?", 3)

	assert.True(t, errors.Is(err, domain.ErrLanguageModel))
}

func TestBuildPrompt(t *testing.T) {
	results := domain.RetrievalResult{
		{Entry: domain.IndexEntry{Chunk: domain.Chunk{Source: "a.txt", Text: "first"}}, Score: 0.9},
		{Entry: domain.IndexEntry{Chunk: domain.Chunk{Source: "b.txt", Text: "second"}}, Score: 0.5},
	}

	prompt := BuildPrompt("What happened?", results)

	assert.Contains(t, prompt, "[1] source: a.txt\nfirst")
	assert.Contains(t, prompt, "[2] source: b.txt\nsecond")
	assert.True(t, strings.HasSuffix(prompt, "Question: What happened?\n\nAnswer:"))
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt := BuildPrompt("What happened?", nil)

	assert.Contains(t, prompt, "Context:\nQuestion: What happened?")
}
