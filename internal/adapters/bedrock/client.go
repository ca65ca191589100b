package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// Client is a BackendClient over Amazon Bedrock
type Client struct {
	client  *bedrockruntime.Client
	modelID string
	logger  *zap.Logger
}

// Dialer establishes Bedrock backend connections
type Dialer struct {
	region  string
	modelID string
	logger  *zap.Logger
}

// NewDialer creates a dialer for Bedrock in the given region
func NewDialer(region, modelID string, logger *zap.Logger) *Dialer {
	return &Dialer{
		region:  region,
		modelID: modelID,
		logger:  logger,
	}
}

// Connect establishes a new backend connection
func (d *Dialer) Connect(ctx context.Context) (core.BackendClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(d.region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Client{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: d.modelID,
		logger:  d.logger,
	}, nil
}

// ListModels returns the configured model. The runtime API has no
// listing operation; enumeration lives on the Bedrock control plane.
func (c *Client) ListModels(_ context.Context) ([]string, error) {
	return []string{c.modelID}, nil
}

func (c *Client) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic")
}

func (c *Client) isAmazonTitanModel() bool {
	return strings.Contains(c.modelID, "amazon.titan")
}

// Generate runs a single InvokeModel request, shaping the payload for
// the model family
func (c *Client) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
			"max_tokens_to_sample": opts.MaxTokens,
			"temperature":          opts.Temperature,
			"top_p":                opts.TopP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": opts.MaxTokens,
				"temperature":   opts.Temperature,
				"topP":          opts.TopP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  opts.MaxTokens,
			"temperature": opts.Temperature,
			"top_p":       opts.TopP,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(resp.Body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(resp.Body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(resp.Body), nil
	}
}

// Close releases the connection. The SDK client holds no resources
// that outlive its requests.
func (c *Client) Close() error {
	return nil
}
