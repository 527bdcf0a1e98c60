package model

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

type OpenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	MaxAttempts    int
	RetryDelay     time.Duration
}

func OpenAIConfigFromEnv() OpenAIConfig {
	chatModel := os.Getenv("OPENAI_MODEL")
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := openai.EmbeddingModel(os.Getenv("OPENAI_EMBEDDING_MODEL"))
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return OpenAIConfig{
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
		MaxAttempts:    3,
		RetryDelay:     300 * time.Millisecond,
	}
}

// OpenAIClient implements both TextGenerator and Embedder on top of the
// OpenAI API, with a small retry loop around transient failures.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxAttempts    int
	retryDelay     time.Duration
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	return &OpenAIClient{
		client:         openai.NewClient(cfg.APIKey),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		maxAttempts:    cfg.MaxAttempts,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.2,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		resp, err := c.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embeddings returned", attempt)
			continue
		}

		return Normalize(resp.Data[0].Embedding), nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxAttempts, lastErr)
}
