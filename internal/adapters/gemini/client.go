package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client is a BackendClient over Google Gemini
type Client struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// Dialer establishes Gemini backend connections
type Dialer struct {
	apiKey    string
	modelName string
	logger    *zap.Logger
}

// NewDialer creates a dialer for the Gemini API
func NewDialer(apiKey, modelName string, logger *zap.Logger) *Dialer {
	return &Dialer{
		apiKey:    apiKey,
		modelName: modelName,
		logger:    logger,
	}
}

// Connect establishes a new backend connection
func (d *Dialer) Connect(ctx context.Context) (core.BackendClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(d.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:    client,
		modelName: d.modelName,
		logger:    d.logger,
	}, nil
}

// ListModels returns the model identifiers the backend serves
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	it := c.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		models = append(models, info.Name)
	}
	return models, nil
}

// Generate runs a single generation request
func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetMaxOutputTokens(int32(opts.MaxTokens))
	model.SetTemperature(opts.Temperature)
	model.SetTopP(opts.TopP)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}
