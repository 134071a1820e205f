package config

import (
	"os"
	"path/filepath"
	"time"
)

// GateConfig represents the decision gate settings
type GateConfig struct {
	DeleteThreshold float64
	HighCut         float64
	MediumCut       float64
	HumanReview     bool
	Market          string
	ProtectedFile   string
}

// SessionConfig represents where and how sweep sessions are tracked
type SessionConfig struct {
	Dir       string
	BatchSize int
	Workers   int
}

// SweepConfig represents the mailbox sweep itself
type SweepConfig struct {
	Query       string
	MaxMessages int
	Delete      bool
	Resume      bool
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider    string
	MaxRetries  int
	RetryBase   time.Duration
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// StoreConfig represents the decision archive
type StoreConfig struct {
	Type             string
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
	Retention        time.Duration
	CleanupFrequency time.Duration
}

// GmailConfig represents the Gmail OAuth files
type GmailConfig struct {
	ConfigDir       string
	CredentialsFile string
	TokenFile       string
	PageSize        int
}

// NotifyConfig represents the review digest mailer
type NotifyConfig struct {
	Enabled     bool
	SMTPAddress string
	StartTLS    bool
	Username    string
	Password    string
	From        string
	To          []string
}

// LoggingConfig represents the logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// GetGate returns the gate configuration
func (c *Config) GetGate() GateConfig {
	return GateConfig{
		DeleteThreshold: c.GetFloat64("gate.delete_threshold"),
		HighCut:         c.GetFloat64("gate.high_cut"),
		MediumCut:       c.GetFloat64("gate.medium_cut"),
		HumanReview:     c.GetBool("gate.human_review"),
		Market:          c.GetString("gate.market"),
		ProtectedFile:   c.GetString("gate.protected_file"),
	}
}

// GetSession returns the session configuration
func (c *Config) GetSession() SessionConfig {
	return SessionConfig{
		Dir:       c.GetString("session.dir"),
		BatchSize: c.GetInt("session.batch_size"),
		Workers:   c.GetInt("session.workers"),
	}
}

// GetSweep returns the sweep configuration
func (c *Config) GetSweep() SweepConfig {
	return SweepConfig{
		Query:       c.GetString("sweep.query"),
		MaxMessages: c.GetInt("sweep.max_messages"),
		Delete:      c.GetBool("sweep.delete"),
		Resume:      c.GetBool("sweep.resume"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	base, _ := c.GetDuration("llm.retry_base")
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxRetries:  c.GetInt("llm.max_retries"),
		RetryBase:   base,
		MaxBodySize: c.GetInt("llm.max_body_size"),
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
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetStore returns the decision store configuration. An empty sqlite path
// places the database in the session directory.
func (c *Config) GetStore() StoreConfig {
	retention, _ := c.GetDuration("store.retention")
	cleanup, _ := c.GetDuration("store.cleanup_frequency")
	sqlitePath := c.GetString("store.sqlite_path")
	if sqlitePath == "" {
		sqlitePath = filepath.Join(c.GetString("session.dir"), "decisions.db")
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		SQLitePath:       sqlitePath,
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		PostgresDSN:      c.GetString("store.postgres_dsn"),
		Retention:        retention,
		CleanupFrequency: cleanup,
	}
}

// GetGmail returns the Gmail configuration with environment variables expanded
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		ConfigDir:       os.ExpandEnv(c.GetString("gmail.config_dir")),
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		PageSize:        c.GetInt("gmail.page_size"),
	}
}

// GetNotify returns the review digest configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Enabled:     c.GetBool("notify.enabled"),
		SMTPAddress: c.GetString("notify.smtp_address"),
		StartTLS:    c.GetBool("notify.starttls"),
		Username:    c.GetString("notify.username"),
		Password:    c.GetString("notify.password"),
		From:        c.GetString("notify.from"),
		To:          c.GetStringSlice("notify.to"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
