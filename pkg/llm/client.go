package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/retry"
)

// Client provides access to OpenAI-compatible LLM endpoints. It implements
// both Oracle and Embedder.
type Client struct {
	client         *openai.Client
	endpoint       string
	model          string
	embeddingModel string
	maxTokens      int
	timeout        time.Duration
	retryCfg       *retry.Config
	logger         *zap.Logger
}

// Config holds configuration for creating an oracle client.
type Config struct {
	Endpoint       string // Base URL, e.g. "https://api.openai.com/v1"
	Model          string // Model name, e.g. "gpt-4o"
	APIKey         string // Optional for local endpoints
	EmbeddingModel string // Embedding model for similarity search
	MaxTokens      int    // Completion token cap; 0 uses the provider default
	Timeout        time.Duration
}

// NewClient creates a new OpenAI-compatible oracle client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		endpoint:       cfg.Endpoint,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		timeout:        cfg.Timeout,
		retryCfg:       retry.DefaultConfig(),
		logger:         logger.Named("llm"),
	}, nil
}

// Complete sends the conversation and returns the reply text. Transient
// failures are retried with exponential backoff; permanent failures (auth,
// unknown model) return immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	c.logger.Debug("oracle request",
		zap.String("model", c.model),
		zap.Int("messages", len(chatMessages)))

	start := time.Now()
	var content string
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:               c.model,
			Messages:            chatMessages,
			MaxCompletionTokens: c.maxTokens,
		})
		if err != nil {
			return ClassifyError(err)
		}
		if len(resp.Choices) == 0 {
			return NewError(ErrorTypeUnknown, "no choices in response", false, nil)
		}
		content = resp.Choices[0].Message.Content
		c.logger.Info("oracle request completed",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	})
	if err != nil {
		c.logger.Error("oracle request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	return content, nil
}

// CreateEmbedding generates an embedding vector for the input text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings generates embeddings for multiple inputs.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	model := c.embeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

// Ensure Client implements Oracle and Embedder at compile time.
var (
	_ Oracle   = (*Client)(nil)
	_ Embedder = (*Client)(nil)
)
