// Package llm talks to an OpenAI-compatible chat completion endpoint, such as
// the /v1 API served by Ollama.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"pdfrag/internal/domain"
	"pdfrag/internal/logger"
)

var ErrEmptyResponse = errors.New("llm returned no choices")

// Config configures the chat client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.Generator.
type Client struct {
	api    openai.Client
	model  string
	logger *slog.Logger
}

// NewClient creates a chat client. Ollama ignores the API key, so a missing
// key is replaced with a placeholder rather than rejected.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm base url is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		key = "ollama"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	api := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(key),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &Client{
		api:    api,
		model:  cfg.Model,
		logger: logger.WithComponent("llm"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

func (c *Client) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toParams(messages),
	}
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("chat completion",
		"model", c.model,
		"messages", len(messages),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

func toParams(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
