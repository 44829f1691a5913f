package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingClient mocks the embedding provider
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockLanguageModel mocks the language model provider
type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Generate(ctx context.Context, prompt string, maxTokens, contextWindow int) (string, error) {
	args := m.Called(ctx, prompt, maxTokens, contextWindow)
	return args.String(0), args.Error(1)
}

// MockIndexPersister mocks index persistence
type MockIndexPersister struct {
	mock.Mock
}

func (m *MockIndexPersister) Exists(ctx context.Context, location string) (bool, error) {
	args := m.Called(ctx, location)
	return args.Bool(0), args.Error(1)
}

func (m *MockIndexPersister) Persist(ctx context.Context, store *index.Store, location string) error {
	args := m.Called(ctx, store, location)
	return args.Error(0)
}

func (m *MockIndexPersister) Load(ctx context.Context, location string) (*index.Store, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.Store), args.Error(1)
}

// keywordEmbedder maps text onto three axes: Apple terms, Microsoft terms and a
// small constant so that no vector is zero.
type keywordEmbedder struct {
	calls atomic.Int64
}

func (e *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	lower := strings.ToLower(text)
	vec := []float32{0, 0, 0.1}
	for _, term := range []string{"apple", "aapl", "iphone"} {
		vec[0] += float32(strings.Count(lower, term))
	}
	for _, term := range []string{"microsoft", "msft", "azure"} {
		vec[1] += float32(strings.Count(lower, term))
	}
	return vec, nil
}

func writeArticles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	articles := map[string]string{
		"apple_q1.txt": "Apple iPhone sales slowed in China while services revenue grew.",
		"apple_q2.txt": "Apple announced record buybacks and AAPL shares rallied.",
		"msft_q1.txt":  "Microsoft Azure revenue accelerated and MSFT hit a record high.",
	}
	for name, content := range articles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}
