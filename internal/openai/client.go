// Package openai talks to OpenAI-compatible APIs: embeddings from OpenAI and
// chat completions from OpenRouter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingTimeout bounds a single embedding request
	DefaultEmbeddingTimeout = 30 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Client generates embeddings through an EmbeddingAPI
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	timeout    time.Duration
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel openai.EmbeddingModel
	// EmbeddingDimensions, when set, rejects vectors of any other length
	EmbeddingDimensions int
	Timeout             time.Duration
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultEmbeddingTimeout
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, model),
		model:      string(model),
		dimensions: cfg.EmbeddingDimensions,
		timeout:    timeout,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Provider identifies the embedding provider and model for index manifests.
func (c *Client) Provider() string {
	return "openai/" + c.model
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) == 0 || (c.dimensions > 0 && len(embedding) != c.dimensions) {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}

	return embedding, nil
}
