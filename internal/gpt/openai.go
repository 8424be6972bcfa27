package gpt

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Compile-time interface check.
var _ Chatter = (*OpenAIClient)(nil)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIOption configures the OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIModel overrides the model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = openai.ChatModel(model)
		}
	}
}

// WithOpenAIBaseURL points the client at an OpenAI-compatible server.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) {
		if url != "" {
			c.reqOpts = append(c.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithOpenAIRetries sets how many times failed requests are retried.
func WithOpenAIRetries(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		c.reqOpts = append(c.reqOpts, option.WithMaxRetries(n))
	}
}

// OpenAIClient talks to the OpenAI API through the official SDK.
type OpenAIClient struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
	maxTokens   int64
	reqOpts     []option.RequestOption
	log         *logger.Logger
}

// NewOpenAIClient creates a client authenticated with apiKey.
func NewOpenAIClient(apiKey string, log *logger.Logger, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		model:       DefaultOpenAIModel,
		temperature: 0.9,
		maxTokens:   800,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.reqOpts...)
	c.client = openai.NewClient(reqOpts...)
	return c
}

// Chat sends messages to the chat-completions API and returns the reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toOpenAI(messages),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}

	c.log.Debug("openai: %s, %d messages", c.model, len(messages))
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai: API %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response (no choices)")
	}

	reply := resp.Choices[0].Message.Content
	c.log.Debug("openai: reply (%d chars): %s", len([]rune(reply)), truncate(reply, 120))
	return reply, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text()))
		default:
			out = append(out, openai.UserMessage(m.Text()))
		}
	}
	return out
}
