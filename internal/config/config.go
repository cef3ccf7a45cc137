package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Image    ImageConfig    `mapstructure:"image"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AllowedUsers   []int64       `mapstructure:"allowed_users"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Enabled reports whether the bot front end should be started.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

type ImageConfig struct {
	DefaultQuality       int   `mapstructure:"default_quality"`
	MaxConcurrentEncodes int   `mapstructure:"max_concurrent_encodes"`
	MaxPixels            int64 `mapstructure:"max_pixels"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Set defaults
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.session_idle_ttl", "30m")
	// Keys need a default for AutomaticEnv to reach them in Unmarshal
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.allowed_users", []int64{})
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "2m")
	v.SetDefault("image.default_quality", 80)
	v.SetDefault("image.max_concurrent_encodes", 4)
	v.SetDefault("image.max_pixels", 64<<20)
	v.SetDefault("storage.db_path", "data/squeezer.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/image-squeezer")

	// Environment variables
	v.SetEnvPrefix("SQUEEZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Telegram.Enabled() && len(c.Telegram.AllowedUsers) == 0 {
		return fmt.Errorf("telegram.allowed_users must contain at least one user ID when bot_token is set")
	}
	if c.Image.DefaultQuality < 1 || c.Image.DefaultQuality > 100 {
		return fmt.Errorf("image.default_quality must be between 1 and 100")
	}
	if c.Image.MaxConcurrentEncodes < 0 {
		return fmt.Errorf("image.max_concurrent_encodes must not be negative")
	}
	if c.Image.MaxPixels < 0 {
		return fmt.Errorf("image.max_pixels must not be negative")
	}
	switch c.Logging.Format {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("logging.format must be one of text, json, tint")
	}
	return nil
}
