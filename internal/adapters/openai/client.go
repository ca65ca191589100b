package openai

import (
	"context"
	"fmt"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client is a BackendClient over an OpenAI-compatible chat API. With a
// base URL pointing at a local inference server (Ollama and friends
// expose the same API) it serves as the local backend connection.
type Client struct {
	client    *openai.Client
	modelName string
	logger    *zap.Logger
}

// Dialer establishes OpenAI-compatible backend connections
type Dialer struct {
	apiKey    string
	baseURL   string
	modelName string
	logger    *zap.Logger
}

// NewDialer creates a dialer for the given endpoint. An empty baseURL
// targets hosted OpenAI.
func NewDialer(apiKey, baseURL, modelName string, logger *zap.Logger) *Dialer {
	return &Dialer{
		apiKey:    apiKey,
		baseURL:   baseURL,
		modelName: modelName,
		logger:    logger,
	}
}

// Connect establishes a new backend connection and verifies the
// endpoint is reachable
func (d *Dialer) Connect(ctx context.Context) (core.BackendClient, error) {
	cfg := openai.DefaultConfig(d.apiKey)
	if d.baseURL != "" {
		cfg.BaseURL = d.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	// The HTTP client itself never fails to construct; probe the
	// endpoint so an unreachable backend surfaces at pool init
	if _, err := client.ListModels(ctx); err != nil {
		return nil, fmt.Errorf("backend probe failed: %w", err)
	}

	return &Client{
		client:    client,
		modelName: d.modelName,
		logger:    d.logger,
	}, nil
}

// ListModels returns the model identifiers the backend serves
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// Generate runs a single chat completion request
func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from backend")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close releases the connection. The underlying HTTP client holds no
// resources that outlive its requests.
func (c *Client) Close() error {
	return nil
}
