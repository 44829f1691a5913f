package openai

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatBaseURL is OpenRouter's OpenAI-compatible endpoint
	DefaultChatBaseURL = "https://openrouter.ai/api/v1"
	// DefaultChatModel is the completion model requested from OpenRouter
	DefaultChatModel = "mistralai/mixtral-8x7b-instruct"
	// DefaultChatTimeout bounds a single completion request
	DefaultChatTimeout = 120 * time.Second

	charsPerToken = 4
)

var (
	// ErrPromptTooLarge is returned when a prompt leaves no room for an answer in the context window
	ErrPromptTooLarge = errors.New("prompt does not fit in the context window")
	// ErrEmptyCompletion is returned when the API answers without any choices
	ErrEmptyCompletion = errors.New("no completion choices returned")
)

// ChatAPI defines the interface for single-turn completions
type ChatAPI interface {
	CreateCompletion(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(apiKey, baseURL, model string) *ChatAdapter {
	if baseURL == "" {
		baseURL = DefaultChatBaseURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	return &ChatAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// CreateCompletion sends prompt as a single user message
func (a *ChatAdapter) CreateCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatClient generates answers from a hosted language model
type ChatClient struct {
	api     ChatAPI
	timeout time.Duration
}

// NewChatClient creates a ChatClient with explicit configuration.
func NewChatClient(cfg ChatConfig) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}
	return &ChatClient{
		api:     NewChatAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model),
		timeout: timeout,
	}
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
}

// Generate completes prompt. maxTokens is reduced to whatever the context
// window leaves after the prompt; a zero contextWindow disables the check.
func (c *ChatClient) Generate(ctx context.Context, prompt string, maxTokens, contextWindow int) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	if contextWindow > 0 {
		remaining := contextWindow - EstimateTokens(prompt)
		if remaining <= 0 {
			return "", fmt.Errorf("%w: ~%d tokens, window %d", ErrPromptTooLarge, EstimateTokens(prompt), contextWindow)
		}
		if maxTokens <= 0 || maxTokens > remaining {
			maxTokens = remaining
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := c.api.CreateCompletion(ctx, prompt, maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	return text, nil
}
