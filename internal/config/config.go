package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Generative Language API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SchedulerConfig configures scan batching and the wall-clock budget.
type SchedulerConfig struct {
	BatchSize              int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRuntimeSecs         int `yaml:"max_runtime_secs" mapstructure:"max_runtime_secs"`
	SharedFreshnessHours   int `yaml:"shared_freshness_hours" mapstructure:"shared_freshness_hours"`
	CustomerFreshnessHours int `yaml:"customer_freshness_hours" mapstructure:"customer_freshness_hours"`
	InterCallDelayMS       int `yaml:"inter_call_delay_ms" mapstructure:"inter_call_delay_ms"`
	MaxParallelBackends    int `yaml:"max_parallel_backends" mapstructure:"max_parallel_backends"`
}

// MaxRuntime returns the wall-clock budget for one scheduler invocation.
func (c SchedulerConfig) MaxRuntime() time.Duration {
	return time.Duration(c.MaxRuntimeSecs) * time.Second
}

// SharedFreshness returns the staleness window for shared topic prompts.
func (c SchedulerConfig) SharedFreshness() time.Duration {
	return time.Duration(c.SharedFreshnessHours) * time.Hour
}

// CustomerFreshness returns the staleness window for customer-owned prompts.
func (c SchedulerConfig) CustomerFreshness() time.Duration {
	return time.Duration(c.CustomerFreshnessHours) * time.Hour
}

// InterCallDelay returns the delay between sequential backend calls.
func (c SchedulerConfig) InterCallDelay() time.Duration {
	return time.Duration(c.InterCallDelayMS) * time.Millisecond
}

// ExtractConfig configures the entity extraction engine.
type ExtractConfig struct {
	ContextRadius    int    `yaml:"context_radius" mapstructure:"context_radius"`
	MaxSnippetLength int    `yaml:"max_snippet_length" mapstructure:"max_snippet_length"`
	CatalogDir       string `yaml:"catalog_dir" mapstructure:"catalog_dir"`
}

// PricingConfig holds per-provider token pricing.
type PricingConfig struct {
	OpenAI     ModelPricing `yaml:"openai" mapstructure:"openai"`
	Anthropic  ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ModelPricing `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     ModelPricing `yaml:"gemini" mapstructure:"gemini"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port       int    `yaml:"port" mapstructure:"port"`
	CronSecret string `yaml:"cron_secret" mapstructure:"cron_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every leaf key needs an entry (empty for secrets) or
	// AutomaticEnv never sees its VISIBILITY_* override.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "visibility.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cron_secret", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("scheduler.batch_size", 5)
	v.SetDefault("scheduler.max_runtime_secs", 50)
	v.SetDefault("scheduler.shared_freshness_hours", 168)
	v.SetDefault("scheduler.customer_freshness_hours", 24)
	v.SetDefault("scheduler.inter_call_delay_ms", 500)
	v.SetDefault("scheduler.max_parallel_backends", 4)
	v.SetDefault("extract.context_radius", 80)
	v.SetDefault("extract.max_snippet_length", 200)
	v.SetDefault("extract.catalog_dir", "catalog")
	v.SetDefault("pricing.openai.input", 2.00)
	v.SetDefault("pricing.openai.output", 8.00)
	v.SetDefault("pricing.anthropic.input", 3.00)
	v.SetDefault("pricing.anthropic.output", 15.00)
	v.SetDefault("pricing.perplexity.input", 3.00)
	v.SetDefault("pricing.perplexity.output", 15.00)
	v.SetDefault("pricing.gemini.input", 0.10)
	v.SetDefault("pricing.gemini.output", 0.40)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
