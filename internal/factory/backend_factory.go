package factory

import (
	"fmt"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/bedrock"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/gemini"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/openai"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/config"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// BackendFactory creates inference backend dialers
type BackendFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewBackendFactory creates a new backend factory
func NewBackendFactory(cfg *config.Config, logger *zap.Logger) *BackendFactory {
	return &BackendFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDialer creates a backend dialer based on the configuration
func (f *BackendFactory) CreateDialer() (core.BackendDialer, error) {
	switch f.cfg.GetLLM().Provider {
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		return openai.NewDialer(openaiCfg.APIKey, openaiCfg.BaseURL, openaiCfg.ModelName, f.logger), nil
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		return gemini.NewDialer(geminiCfg.APIKey, geminiCfg.ModelName, f.logger), nil
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		return bedrock.NewDialer(bedrockCfg.Region, bedrockCfg.ModelID, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", f.cfg.GetLLM().Provider)
	}
}

// ModelName returns the model name of the active provider
func (f *BackendFactory) ModelName() string {
	switch f.cfg.GetLLM().Provider {
	case "gemini":
		return f.cfg.GetGemini().ModelName
	case "bedrock":
		return f.cfg.GetBedrock().ModelID
	default:
		return f.cfg.GetOpenAI().ModelName
	}
}

// GenerateOptions returns the generation parameters of the active provider
func (f *BackendFactory) GenerateOptions() core.GenerateOptions {
	switch f.cfg.GetLLM().Provider {
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		return core.GenerateOptions{
			MaxTokens:   geminiCfg.MaxTokens,
			Temperature: geminiCfg.Temperature,
			TopP:        geminiCfg.TopP,
		}
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		return core.GenerateOptions{
			MaxTokens:   bedrockCfg.MaxTokens,
			Temperature: bedrockCfg.Temperature,
			TopP:        bedrockCfg.TopP,
		}
	default:
		openaiCfg := f.cfg.GetOpenAI()
		return core.GenerateOptions{
			MaxTokens:   openaiCfg.MaxTokens,
			Temperature: openaiCfg.Temperature,
			TopP:        openaiCfg.TopP,
		}
	}
}

// MaxBodySize returns the prompt body limit of the active provider
func (f *BackendFactory) MaxBodySize() int {
	switch f.cfg.GetLLM().Provider {
	case "gemini":
		return f.cfg.GetGemini().MaxBodySize
	case "bedrock":
		return f.cfg.GetBedrock().MaxBodySize
	default:
		return f.cfg.GetOpenAI().MaxBodySize
	}
}
