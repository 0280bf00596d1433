package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Blogger   BloggerConfig   `mapstructure:"blogger"`
	Research  ResearchConfig  `mapstructure:"research"`
	Media     MediaConfig     `mapstructure:"media"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite path
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// BloggerConfig holds the legacy single-blog Blogger connection, used
// when a schedule has no account of its own.
type BloggerConfig struct {
	BlogID       string `mapstructure:"blog_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	NicheID      string `mapstructure:"niche_id"`
}

// ResearchConfig holds trending-topic research settings
type ResearchConfig struct {
	// Google News RSS endpoint; query and language params are appended
	FeedBaseURL   string `mapstructure:"feed_base_url"`
	Language      string `mapstructure:"language"`
	MaxCandidates int    `mapstructure:"max_candidates"`
	// Use the AI client to rank candidates before selection
	RankWithAI bool `mapstructure:"rank_with_ai"`
}

// MediaConfig holds image generation and hosting settings
type MediaConfig struct {
	GeneratorBaseURL string `mapstructure:"generator_base_url"`
	ImgBBAPIKey      string `mapstructure:"imgbb_api_key"`
	ImgBBUploadURL   string `mapstructure:"imgbb_upload_url"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	Width            int    `mapstructure:"width"`
	Height           int    `mapstructure:"height"`
}

// PipelineConfig holds orchestration knobs
type PipelineConfig struct {
	PublishAttempts     int           `mapstructure:"publish_attempts"`
	PublishBackoff      time.Duration `mapstructure:"publish_backoff"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	StageTimeout        time.Duration `mapstructure:"stage_timeout"`
}

// NotifyConfig holds WhatsApp notification settings (CallMeBot API)
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Phone   string `mapstructure:"phone"`
	APIKey  string `mapstructure:"api_key"`
}

// APIConfig holds admin HTTP API settings
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".blogger-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("BLOGAGENT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "BLOGAGENT_ANTHROPIC_API_KEY")
	v.BindEnv("blogger.blog_id", "BLOGAGENT_BLOGGER_BLOG_ID")
	v.BindEnv("blogger.client_id", "BLOGAGENT_BLOGGER_CLIENT_ID")
	v.BindEnv("blogger.client_secret", "BLOGAGENT_BLOGGER_CLIENT_SECRET")
	v.BindEnv("blogger.refresh_token", "BLOGAGENT_BLOGGER_REFRESH_TOKEN")
	v.BindEnv("database.dsn", "BLOGAGENT_DATABASE_DSN")
	v.BindEnv("media.imgbb_api_key", "BLOGAGENT_MEDIA_IMGBB_API_KEY")
	v.BindEnv("notify.phone", "BLOGAGENT_NOTIFY_PHONE")
	v.BindEnv("notify.api_key", "BLOGAGENT_NOTIFY_API_KEY")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dsn", "./data/blogagent.db")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.7)

	// Research defaults
	v.SetDefault("research.feed_base_url", "https://news.google.com/rss/search")
	v.SetDefault("research.language", "en")
	v.SetDefault("research.max_candidates", 8)
	v.SetDefault("research.rank_with_ai", true)

	// Media defaults
	v.SetDefault("media.generator_base_url", "https://image.pollinations.ai/prompt")
	v.SetDefault("media.imgbb_upload_url", "https://api.imgbb.com/1/upload")
	v.SetDefault("media.max_attempts", 3)
	v.SetDefault("media.width", 1280)
	v.SetDefault("media.height", 720)

	// Pipeline defaults
	v.SetDefault("pipeline.publish_attempts", 3)
	v.SetDefault("pipeline.publish_backoff", "5s")
	v.SetDefault("pipeline.lock_ttl", "5m")
	v.SetDefault("pipeline.similarity_threshold", 0.5)
	v.SetDefault("pipeline.stage_timeout", "120s")

	// Notify defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.base_url", "https://api.callmebot.com/whatsapp.php")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Pipeline.PublishAttempts < 1 {
		return fmt.Errorf("pipeline.publish_attempts must be at least 1")
	}
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be in (0, 1]")
	}
	return nil
}
