package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/tier"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized on top of the config file.
const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvAdminSecret     = "ADMIN_SECRET"
	EnvUpstreamAPIKey  = "UPSTREAM_API_KEY"
	EnvUpstreamBaseURL = "UPSTREAM_BASE_URL"
)

// Defaults applied when the config file omits a value.
const (
	DefaultPort         = 8318
	DefaultSessionLimit = 12
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 300

	defaultUpstreamTimeout = 60 * time.Second
	defaultUpstreamBaseURL = "https://api.openai.com/v1/chat/completions"
)

// Duration is a time.Duration that parses YAML strings like "60s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, errParse := time.ParseDuration(strings.TrimSpace(value.Value))
	if errParse != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DatabaseConfig holds the durable store connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// UpstreamConfig holds completion-provider settings.
type UpstreamConfig struct {
	BaseURL string   `yaml:"base-url"` // Chat completions endpoint.
	APIKey  string   `yaml:"api-key"`  // Bearer credential.
	Timeout Duration `yaml:"timeout"`  // Upper bound per completion call.
}

// ChatConfig holds orchestrator defaults.
type ChatConfig struct {
	SystemPrompt string  `yaml:"system-prompt"` // Default persona prompt.
	SessionLimit int     `yaml:"session-limit"` // Max retained session entries.
	Temperature  float64 `yaml:"temperature"`   // Default sampling temperature.
	MaxTokens    int     `yaml:"max-tokens"`    // Default completion length cap.
	DailySweep   bool    `yaml:"daily-sweep"`   // Run the midnight usage reset sweep.
}

// TierConfig declares one membership tier in the config file.
type TierConfig struct {
	Name          string `yaml:"name"`           // Level name.
	DailyRequests int    `yaml:"daily-requests"` // Daily allowance; ignored when unlimited.
	Unlimited     bool   `yaml:"unlimited"`      // Marks the allowance unbounded.
	Model         string `yaml:"model"`          // Downstream model identifier.
}

// Config is the resolved application configuration.
type Config struct {
	Port        int            `yaml:"port"`
	Database    DatabaseConfig `yaml:"database"`
	AdminSecret string         `yaml:"admin-secret"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Chat        ChatConfig     `yaml:"chat"`
	DefaultTier string         `yaml:"default-tier"`
	Tiers       []TierConfig   `yaml:"tiers"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, fills defaults, and applies env overrides.
// A missing file is not an error; env variables alone can configure the relay.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvAdminSecret)); secret != "" {
		cfg.AdminSecret = secret
	}
	if key := strings.TrimSpace(os.Getenv(EnvUpstreamAPIKey)); key != "" {
		cfg.Upstream.APIKey = key
	}
	if base := strings.TrimSpace(os.Getenv(EnvUpstreamBaseURL)); base != "" {
		cfg.Upstream.BaseURL = base
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = "file:chatrelay.db"
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		c.Upstream.BaseURL = defaultUpstreamBaseURL
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = Duration(defaultUpstreamTimeout)
	}
	if c.Chat.SessionLimit <= 0 {
		c.Chat.SessionLimit = DefaultSessionLimit
	}
	if c.Chat.Temperature <= 0 {
		c.Chat.Temperature = DefaultTemperature
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = DefaultMaxTokens
	}
	if len(c.Tiers) == 0 {
		c.Tiers = []TierConfig{{Name: "free", DailyRequests: 10, Model: "gpt-4o-mini"}}
	}
	if strings.TrimSpace(c.DefaultTier) == "" {
		c.DefaultTier = c.Tiers[0].Name
	}
}

// TierTable builds the runtime tier table from the configured tiers.
func (c Config) TierTable() (*tier.Table, error) {
	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, entry := range c.Tiers {
		allowance := tier.Bounded(entry.DailyRequests)
		if entry.Unlimited {
			allowance = tier.Unlimited()
		}
		tiers = append(tiers, tier.Tier{
			Name:      entry.Name,
			Allowance: allowance,
			Model:     entry.Model,
		})
	}
	return tier.NewTable(tiers, c.DefaultTier)
}
