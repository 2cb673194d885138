package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Policy     PolicyConfig     `yaml:"policy" mapstructure:"policy"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig configures batch processing behavior.
type PipelineConfig struct {
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	ProcessAllRows bool    `yaml:"process_all_rows" mapstructure:"process_all_rows"`
	PreviewRows    int     `yaml:"preview_rows" mapstructure:"preview_rows"`
	GenerateEmails bool    `yaml:"generate_emails" mapstructure:"generate_emails"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings for email drafting.
type OpenAIConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PolicyConfig selects the qualification policy source.
type PolicyConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Classifier string `yaml:"classifier" mapstructure:"classifier"`
}

// NotionConfig holds Notion API credentials for the ICP policy database.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	PolicyDB string `yaml:"policy_db" mapstructure:"policy_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings for lead sync.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LEADQUAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadqual.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.process_all_rows", false)
	v.SetDefault("pipeline.preview_rows", 10)
	v.SetDefault("pipeline.generate_emails", false)
	v.SetDefault("pipeline.rate_per_second", 2.0)
	v.SetDefault("pipeline.rate_burst", 4)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("policy.classifier", "perplexity")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

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

// Validate checks that everything the given mode needs is present. Modes:
// "qualify" for batch runs, "serve" for the HTTP API, "sync" for Salesforce
// lead sync.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func() {
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 50 {
			problems = append(problems, "pipeline.concurrency must be between 1 and 50")
		}
		if c.Pipeline.PreviewRows < 1 {
			problems = append(problems, "pipeline.preview_rows must be >= 1")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
		switch c.Policy.Classifier {
		case "perplexity":
			if c.Perplexity.Key == "" {
				problems = append(problems, "perplexity.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		default:
			problems = append(problems, "policy.classifier must be perplexity or anthropic")
		}
	}

	switch mode {
	case "qualify":
		check()
	case "serve":
		check()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "sync":
		if c.Salesforce.ClientID == "" {
			problems = append(problems, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			problems = append(problems, "salesforce.key_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
