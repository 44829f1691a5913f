package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReportService_Outlook(t *testing.T) {
	ctx := context.Background()
	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Question: Write a report on the outlook for AAPL stock")
	}), mock.Anything, mock.Anything).Return("AAPL outlook report", nil)

	svc := NewReportService(
		NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{}),
		index.NewHolder(buildArticleIndex(t)),
		DefaultReportTemplates(),
	)

	answer, err := svc.Outlook(ctx, "aapl")

	require.NoError(t, err)
	assert.Equal(t, "AAPL outlook report", answer.Text)
	assert.Len(t, answer.Sources, DefaultTopK)
	mockLLM.AssertExpectations(t)
}

func TestReportService_Competitor(t *testing.T) {
	ctx := context.Background()
	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "competition between MSFT stock and AAPL stock")
	}), mock.Anything, mock.Anything).Return("competitor report", nil)

	svc := NewReportService(
		NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{}),
		index.NewHolder(buildArticleIndex(t)),
		DefaultReportTemplates(),
	)

	answer, err := svc.Competitor(ctx, "msft", "aapl")

	require.NoError(t, err)
	assert.Equal(t, "competitor report", answer.Text)
	mockLLM.AssertExpectations(t)
}

func TestReportService_InvalidSymbolMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	mockEmbedder := new(MockEmbeddingClient)
	mockLLM := new(MockLanguageModel)
	svc := NewReportService(
		NewQueryEngine(mockEmbedder, mockLLM, QueryConfig{}),
		index.NewHolder(buildArticleIndex(t)),
		DefaultReportTemplates(),
	)

	_, err := svc.Outlook(ctx, "not a symbol")
	assert.True(t, errors.Is(err, domain.ErrInvalidSymbol))

	_, err = svc.Competitor(ctx, "AAPL", "")
	assert.True(t, errors.Is(err, domain.ErrInvalidSymbol))

	mockEmbedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReportService_Ask_ServesSwappedIndex(t *testing.T) {
	ctx := context.Background()
	mockLLM := new(MockLanguageModel)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("answer", nil)

	holder := index.NewHolder(nil)
	svc := NewReportService(
		NewQueryEngine(&keywordEmbedder{}, mockLLM, QueryConfig{}),
		holder,
		DefaultReportTemplates(),
	)

	_, err := svc.Ask(ctx, "What trends affect AAPL?", 0)
	assert.True(t, errors.Is(err, domain.ErrEmptyIndex))

	holder.Swap(buildArticleIndex(t))
	answer, err := svc.Ask(ctx, "What trends affect AAPL?", 1)
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 1)
}

func TestReportService_Status(t *testing.T) {
	holder := index.NewHolder(nil)
	svc := NewReportService(NewQueryEngine(nil, nil, QueryConfig{}), holder, DefaultReportTemplates())

	assert.Equal(t, IndexStatus{}, svc.Status())

	store := buildArticleIndex(t)
	holder.Swap(store)

	assert.Equal(t, IndexStatus{
		Loaded:     true,
		Entries:    store.Len(),
		Dimensions: 3,
		Provider:   "keyword-test",
	}, svc.Status())
}
