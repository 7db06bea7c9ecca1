// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Agent  AgentConfig     `mapstructure:"agent" yaml:"agent"`
	LLM    LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig holds settings for the guidance engine itself.
type AgentConfig struct {
	// HistoryCapacity bounds the session's rolling summary of completed
	// milestones. Oldest entries are evicted first.
	HistoryCapacity int `mapstructure:"history_capacity" yaml:"history_capacity"`
	// DebounceQuietPeriod is how long the screen must stay unchanged before
	// a change event reaches the completion check.
	DebounceQuietPeriod time.Duration `mapstructure:"debounce_quiet_period" yaml:"debounce_quiet_period"`
	// StepTimeout bounds each individual model call made by a step.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	// MaxImageBytes rejects screenshots larger than this before they ever
	// reach the wire.
	MaxImageBytes int `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
}

// LLMProvider defines the supported VLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini" // Direct HTTP client against the Gemini REST API.
	ProviderGenAI  LLMProvider = "genai"  // The official google.golang.org/genai SDK.
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	// APIKey is the router-wide credential, normally supplied through the
	// SHERPA_LLM_API_KEY environment variable. Models without an explicit
	// key of their own inherit it.
	APIKey string                    `mapstructure:"api_key" yaml:"-"`
	Models map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single model.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryTime  time.Duration     `mapstructure:"max_retry_time" yaml:"max_retry_time"`
	Temperature   float64           `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// ModelFor resolves the model configuration for a named model, falling back
// to a minimal Gemini config when the name has no explicit entry. Either way
// an empty per-model key inherits the router-wide APIKey, so the env-supplied
// credential also covers the default models.
func (c LLMRouterConfig) ModelFor(name string) LLMModelConfig {
	mc, ok := c.Models[name]
	if !ok {
		mc = LLMModelConfig{Provider: ProviderGemini}
	}
	if mc.Model == "" {
		mc.Model = name
	}
	if mc.APIKey == "" {
		mc.APIKey = c.APIKey
	}
	return mc
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sherpa")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.history_capacity", 10)
	v.SetDefault("agent.debounce_quiet_period", 1500*time.Millisecond)
	v.SetDefault("agent.step_timeout", 60*time.Second)
	v.SetDefault("agent.max_image_bytes", 8<<20)

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "SHERPA_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// The router-wide key falls back to the process environment so the
	// config file never has to carry credentials. ModelFor fans it out to
	// every model lacking an explicit key, declared or defaulted.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("SHERPA_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.HistoryCapacity <= 0 {
		return fmt.Errorf("agent.history_capacity must be a positive integer")
	}
	if c.Agent.DebounceQuietPeriod <= 0 {
		return fmt.Errorf("agent.debounce_quiet_period must be a positive duration")
	}
	if c.Agent.StepTimeout <= 0 {
		return fmt.Errorf("agent.step_timeout must be a positive duration")
	}
	if c.LLM.DefaultFastModel == "" || c.LLM.DefaultPowerfulModel == "" {
		return fmt.Errorf("llm.default_fast_model and llm.default_powerful_model are required")
	}
	return nil
}
