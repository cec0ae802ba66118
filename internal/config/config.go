// Package config loads the client and dev server settings from defaults, a
// .env file, an optional YAML file and WHIST_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	// ServerURL is the Whist server the client connects to by default.
	ServerURL string `mapstructure:"server_url"`

	GitHub GitHubConfig `mapstructure:"github"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`

	// Requirement is what a server must report to be accepted.
	Requirement RequirementConfig `mapstructure:"requirement"`

	Log LogConfig `mapstructure:"log"`

	DevServer DevServerConfig `mapstructure:"dev_server"`
}

type GitHubConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	ClientID string `mapstructure:"client_id"`
}

// RequirementConfig holds the expected game name and caret version ranges.
type RequirementConfig struct {
	Game   string `mapstructure:"game"`
	Core   string `mapstructure:"core"`
	Server string `mapstructure:"server"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls rotation of file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type DevServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Default() *Config {
	return &Config{
		ServerURL:      "http://localhost:8080/",
		GitHub:         GitHubConfig{BaseURL: "https://github.com/"},
		RequestTimeout: 10 * time.Second,
		DialTimeout:    10 * time.Second,
		Requirement:    RequirementConfig{Game: "whist", Core: "^0.9", Server: "^0.7"},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		DevServer: DevServerConfig{Addr: ":8080"},
	}
}

// Load reads the configuration. path names a YAML file; when empty,
// WHIST_CONFIG is consulted and then whist.yaml in the working directory and
// ~/.whist. A .env file in the working directory is loaded into the
// environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WHIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("github.client_id", cfg.GitHub.ClientID)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("dial_timeout", cfg.DialTimeout)
	v.SetDefault("requirement.game", cfg.Requirement.Game)
	v.SetDefault("requirement.core", cfg.Requirement.Core)
	v.SetDefault("requirement.server", cfg.Requirement.Server)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("dev_server.addr", cfg.DevServer.Addr)

	if path == "" {
		path = os.Getenv("WHIST_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("whist")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".whist"))
		}
	}

	// A missing file is fine; defaults and env still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	return nil
}
