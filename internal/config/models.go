package config

import "time"

// LLMConfig represents the configuration for the inference backend provider
type LLMConfig struct {
	Provider string
}

// PoolConfig represents the inference pool configuration
type PoolConfig struct {
	Size           int
	AcquireTimeout time.Duration
}

// BatchConfig represents the batch dispatch configuration
type BatchConfig struct {
	ItemTimeout    time.Duration
	ProgressBuffer int
}

// SpoolConfig represents the spool intake configuration
type SpoolConfig struct {
	Dir          string
	ProcessedDir string
	FailedDir    string
	PollInterval time.Duration
}

// PriorityConfig represents the priority learning configuration
type PriorityConfig struct {
	UpperThreshold float64
	LowerThreshold float64
	BaseRate       float64
	AccuracyTarget float64
}

// OpenAIConfig represents the configuration for an OpenAI-compatible backend
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// StorageConfig represents the profile store configuration
type StorageConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetLLM returns the backend provider configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetPool returns the pool configuration
func (c *Config) GetPool() (PoolConfig, error) {
	timeout, err := c.GetDuration("pool.acquire_timeout")
	if err != nil {
		return PoolConfig{}, err
	}
	return PoolConfig{
		Size:           c.GetInt("pool.size"),
		AcquireTimeout: timeout,
	}, nil
}

// GetBatch returns the batch dispatch configuration
func (c *Config) GetBatch() (BatchConfig, error) {
	timeout, err := c.GetDuration("batch.item_timeout")
	if err != nil {
		return BatchConfig{}, err
	}
	return BatchConfig{
		ItemTimeout:    timeout,
		ProgressBuffer: c.GetInt("batch.progress_buffer"),
	}, nil
}

// GetSpool returns the spool intake configuration
func (c *Config) GetSpool() (SpoolConfig, error) {
	interval, err := c.GetDuration("spool.poll_interval")
	if err != nil {
		return SpoolConfig{}, err
	}
	return SpoolConfig{
		Dir:          c.GetString("spool.dir"),
		ProcessedDir: c.GetString("spool.processed_dir"),
		FailedDir:    c.GetString("spool.failed_dir"),
		PollInterval: interval,
	}, nil
}

// GetPriority returns the priority learning configuration
func (c *Config) GetPriority() PriorityConfig {
	return PriorityConfig{
		UpperThreshold: c.GetFloat64("priority.upper_threshold"),
		LowerThreshold: c.GetFloat64("priority.lower_threshold"),
		BaseRate:       c.GetFloat64("priority.base_rate"),
		AccuracyTarget: c.GetFloat64("priority.accuracy_target"),
	}
}

// GetOpenAI returns the OpenAI-compatible backend configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetStorage returns the profile store configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:       c.GetString("storage.type"),
		SQLitePath: c.GetString("storage.sqlite_path"),
		MySQLDSN:   c.GetString("storage.mysql_dsn"),
	}
}
