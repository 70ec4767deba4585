package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI-compatible backend. BaseURL accepts
// any server speaking the chat completions API, which is how local
// inference servers are wired in.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// DefaultOpenAIConfig returns the production backend settings.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:      "gpt-4o-mini",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// OpenAI is a Generator backed by a chat completions endpoint.
type OpenAI struct {
	client openai.Client
	cfg    OpenAIConfig
	log    *zap.Logger
}

// NewOpenAI builds the backend.
func NewOpenAI(config ...OpenAIConfig) *OpenAI {
	cfg := DefaultOpenAIConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg, log: log}
}

// Generate implements Generator with bounded retry on rate limits and
// server errors.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.cfg.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	var lastErr error
	delay := o.cfg.RetryDelay
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		completion, err := o.client.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(completion.Choices) == 0 {
				return "", fmt.Errorf("generator: empty completion")
			}
			o.log.Debug("completion received",
				zap.Int64("completion_tokens", completion.Usage.CompletionTokens))
			return completion.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", fmt.Errorf("generator: %w", err)
		}
		o.log.Warn("generation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("generator: retries exhausted: %w", lastErr)
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
