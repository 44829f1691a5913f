package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/cloo-solutions/newsrag/internal/index"
	"github.com/cloo-solutions/newsrag/internal/telemetry"
)

// DefaultTopK is the number of chunks retrieved per question
const DefaultTopK = 3

// LanguageModel generates text for a prompt
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, maxTokens, contextWindow int) (string, error)
}

// QueryConfig configures a QueryEngine
type QueryConfig struct {
	TopK          int
	MaxTokens     int
	ContextWindow int
}

// QueryEngine answers questions from an index. It holds no mutable state and
// may serve concurrent requests.
type QueryEngine struct {
	embedder EmbeddingClient
	llm      LanguageModel
	cfg      QueryConfig
}

// NewQueryEngine creates a new QueryEngine instance
func NewQueryEngine(embedder EmbeddingClient, llm LanguageModel, cfg QueryConfig) *QueryEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &QueryEngine{
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
	}
}

// Answer answers question using the configured top-k.
func (e *QueryEngine) Answer(ctx context.Context, store *index.Store, question string) (*domain.Answer, error) {
	return e.AnswerTopK(ctx, store, question, e.cfg.TopK)
}

// AnswerTopK retrieves the topK chunks closest to question, grounds a prompt
// on them and returns the model's answer with the chunks it used. A failed
// generation call is returned as is, without retry.
func (e *QueryEngine) AnswerTopK(ctx context.Context, store *index.Store, question string, topK int) (*domain.Answer, error) {
	if store == nil || store.Len() == 0 {
		return nil, domain.ErrEmptyIndex
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("question is required"))
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryEngine.Answer", telemetry.SpanAttributes{
		Operation: "query",
	})
	defer span.End()

	queryVector, err := e.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		err = domain.ErrEmbeddingProvider.WithCause(err)
		span.SetError(err)
		return nil, err
	}

	results, err := store.Retrieve(queryVector, topK)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	prompt := BuildPrompt(question, results)
	text, err := e.llm.Generate(ctx, prompt, e.cfg.MaxTokens, e.cfg.ContextWindow)
	if err != nil {
		err = domain.ErrLanguageModel.WithCause(err)
		span.SetError(err)
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		err = domain.ErrLanguageModel.WithCause(errors.New("model returned an empty completion"))
		span.SetError(err)
		return nil, err
	}

	span.SetData("retrieved", len(results))
	return &domain.Answer{
		Text:    text,
		Sources: results.Chunks(),
	}, nil
}

// BuildPrompt assembles a grounded prompt: retrieved chunks in rank order, then the question.
func BuildPrompt(question string, results domain.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString("You are a financial news analyst. Answer the question using only the context below. ")
	sb.WriteString("If the context does not contain the answer, say so.\n\n")
	sb.WriteString("Context:\n")
	for i, scored := range results {
		fmt.Fprintf(&sb, "[%d] source: %s\n%s\n\n", i+1, scored.Entry.Chunk.Source, scored.Entry.Chunk.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
