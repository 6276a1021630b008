// Package llm generates synthetic vulnerable and benign C functions
// with an OpenAI-compatible chat model. The output feeds the augment
// pipeline as synthetic CSVs.
package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/czt0517/vulbench/internal/config"
)

// Client wraps the OpenAI chat API for sample generation.
type Client struct {
	api    *openai.Client
	model  string
	logger *logrus.Entry
}

// NewClient creates an LLM client from the resolved configuration.
// Key resolution (env var, keychain, config file) already happened in
// config.Load; an empty key here is a hard error because generation is
// the only reason to construct this client.
func NewClient(cfg *config.Config, log *logrus.Logger) (*Client, error) {
	if cfg.API.OpenAIKey == "" {
		return nil, fmt.Errorf("no OpenAI API key configured: set OPENAI_API_KEY or run 'vulbench configure'")
	}

	model := cfg.API.OpenAIModel
	if model == "" {
		model = openai.GPT4o
	}

	logger := log.WithField("component", "llm")
	logger.WithFields(logrus.Fields{
		"model":      model,
		"key_source": cfg.API.KeySource,
	}).Info("openai client initialized")

	return &Client{
		api:    openai.NewClient(cfg.API.OpenAIKey),
		model:  model,
		logger: logger,
	}, nil
}

// Chat sends one prompt and returns the raw completion text.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.8, // variety matters more than determinism for synthetic data
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }
