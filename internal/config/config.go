package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/powerprices/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Exports  ExportsConfig  `mapstructure:"exports"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DataConfig locates the daily price file
type DataConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// PipelineConfig holds view computation defaults
type PipelineConfig struct {
	Granularity      string   `mapstructure:"granularity"`
	Alignment        string   `mapstructure:"alignment"` // calendar | position
	DefaultCountries []string `mapstructure:"default_countries"`
}

// ExportsConfig holds CSV export ledger and publishing configuration.
// Publishing is enabled when Bucket is set.
type ExportsConfig struct {
	MaxExports    int    `mapstructure:"max_exports"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken      string `mapstructure:"bot_token"`
	ChatID        string `mapstructure:"chat_id"`
	Enabled       bool   `mapstructure:"enabled"`
	MaxRetries    int    `mapstructure:"max_retries"`
	StartupDigest bool   `mapstructure:"startup_digest"` // send the latest prices once on start
}

// SentryConfig holds error reporting configuration. An empty DSN disables reporting.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. POWERPRICES_DATA_PATH
	v.SetEnvPrefix("POWERPRICES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.path", "./data/prices.csv")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Pipeline defaults
	v.SetDefault("pipeline.granularity", "monthly")
	v.SetDefault("pipeline.alignment", "calendar")
	v.SetDefault("pipeline.default_countries", []string{"Germany", "France", "Italy"})

	// Exports defaults
	v.SetDefault("exports.max_exports", 500)
	v.SetDefault("exports.region", "auto")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/powerprices.db")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.startup_digest", false)

	// Sentry defaults
	v.SetDefault("sentry.environment", "production")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Data config
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}

	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("server.shutdown_timeout must be at least 1 second")
	}

	// Validate Pipeline config
	if _, err := models.ParseGranularity(c.Pipeline.Granularity); err != nil {
		return fmt.Errorf("pipeline.granularity must be one of: daily, monthly, yearly")
	}
	if _, err := models.ParseAlignment(c.Pipeline.Alignment); err != nil {
		return fmt.Errorf("pipeline.alignment must be one of: calendar, position")
	}
	for _, country := range c.Pipeline.DefaultCountries {
		if strings.TrimSpace(country) == "" {
			return fmt.Errorf("pipeline.default_countries must not contain empty names")
		}
	}

	// Validate Exports config
	if c.Exports.MaxExports < 1 {
		return fmt.Errorf("exports.max_exports must be at least 1")
	}
	if c.Exports.Bucket != "" && (c.Exports.AccessKey == "") != (c.Exports.SecretKey == "") {
		return fmt.Errorf("exports.access_key and exports.secret_key must be set together")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// PublishEnabled reports whether exports are uploaded to a bucket.
func (c *Config) PublishEnabled() bool {
	return c.Exports.Bucket != ""
}
