package llm

import (
	"context"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/retry"
)

// AnthropicClient is the Anthropic-backed oracle. System turns are folded
// into the request's System field; the remaining turns must alternate
// user/assistant per the Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewAnthropicClient creates an Anthropic oracle client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, NewError(ErrorTypeModel, "model is required", false, nil)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("llm"),
	}, nil
}

// Complete implements Oracle.
func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var system string
	turns := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantTextMessage(m.Content))
		default:
			turns = append(turns, anthropic.NewUserTextMessage(m.Content))
		}
	}

	c.logger.Debug("oracle request",
		zap.String("model", c.model),
		zap.Int("messages", len(turns)))

	start := time.Now()
	var content string
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:     anthropic.Model(c.model),
			System:    system,
			MaxTokens: c.maxTokens,
			Messages:  turns,
		})
		if err != nil {
			return ClassifyError(err)
		}
		content = resp.GetFirstContentText()
		c.logger.Info("oracle request completed",
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

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

var _ Oracle = (*AnthropicClient)(nil)
