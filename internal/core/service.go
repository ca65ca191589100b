package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/utils"
	"go.uber.org/zap"
)

// TriageService runs a single email through the inference backend and
// turns the model's verdict into a BaseResult
type TriageService struct {
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	modelName     string
	opts          GenerateOptions
	maxBodySize   int
	promptFormat  string
}

// triageResponse represents the structured response from the model
type triageResponse struct {
	Priority    string   `json:"priority"`
	Confidence  float64  `json:"confidence"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}

// NewTriageService creates a new triage service
func NewTriageService(
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	modelName string,
	opts GenerateOptions,
	maxBodySize int,
) *TriageService {
	return &TriageService{
		logger:        logger,
		textProcessor: textProcessor,
		modelName:     modelName,
		opts:          opts,
		maxBodySize:   maxBodySize,
		promptFormat: `You are an email triage assistant. Analyze the following email and assign a priority.
Respond with a JSON object containing:
- priority: one of "High", "Medium" or "Low"
- confidence: number between 0 and 1 (how confident you are in the assigned priority)
- summary: string (one-sentence summary of the email)
- action_items: array of strings (concrete actions the email asks for, empty if none)

Email:
From: %s
To: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// BuildPrompt formats the triage prompt for an email
func (s *TriageService) BuildPrompt(email *Email) string {
	to := ""
	if len(email.To) > 0 {
		to = email.To[0]
		if len(email.To) > 1 {
			to += fmt.Sprintf(" and %d others", len(email.To)-1)
		}
	}

	body := s.textProcessor.ProcessText(email.Body, s.maxBodySize)

	return fmt.Sprintf(s.promptFormat, email.From, to, email.Subject, body)
}

// Analyze runs one email through the given backend connection
func (s *TriageService) Analyze(ctx context.Context, client BackendClient, email *Email) (*BaseResult, error) {
	prompt := s.BuildPrompt(email)

	responseText, err := client.Generate(ctx, prompt, s.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate triage verdict: %w", err)
	}

	resp, err := parseTriageResponse(responseText)
	if err != nil {
		return nil, err
	}

	priority, ok := ParsePriority(resp.Priority)
	if !ok {
		s.logger.Warn("Model returned unknown priority, defaulting to Medium",
			zap.String("priority", resp.Priority),
			zap.String("message_id", email.ID))
	}

	return &BaseResult{
		Priority:    priority,
		Confidence:  resp.Confidence,
		Summary:     resp.Summary,
		ActionItems: resp.ActionItems,
		AnalyzedAt:  time.Now(),
		ModelUsed:   s.modelName,
	}, nil
}

// parseTriageResponse parses the model's JSON response, tolerating
// surrounding prose by extracting the outermost JSON object
func parseTriageResponse(responseText string) (*triageResponse, error) {
	var resp triageResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err == nil {
		return &resp, nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}

	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from model response")
	}

	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}

	return &resp, nil
}
