// ABOUTME: Centralized configuration for the roleplay engine
// ABOUTME: Loads defaults, an optional TOML file and environment overrides through viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend kinds
const (
	BackendKeyRotating = "key_rotating"
	BackendOpenAI      = "openai"
	BackendRelay       = "relay"
)

// Storage backends
const (
	StorageSQLite = "sqlite"
	StorageCharm  = "charm"
	StorageMemory = "memory"
)

// Config holds all configuration for the roleplay engine
type Config struct {
	Backend string        `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Charm   CharmConfig   `mapstructure:"charm"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Search  SearchConfig  `mapstructure:"search"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	Summary SummaryConfig `mapstructure:"summary"`
	Server  ServerConfig  `mapstructure:"server"`
}

// StorageConfig selects the blob backend
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// CharmConfig holds charm KV settings
type CharmConfig struct {
	Host     string `mapstructure:"host"`
	DBName   string `mapstructure:"db"`
	AutoSync bool   `mapstructure:"auto_sync"`
}

// GeminiConfig holds key-rotating backend settings
type GeminiConfig struct {
	Keys         []string      `mapstructure:"keys"`
	PrimaryModel string        `mapstructure:"primary_model"`
	BackupModel  string        `mapstructure:"backup_model"`
	Backoff      time.Duration `mapstructure:"backoff"`
}

// OpenAIConfig holds OpenAI-compatible backend settings
type OpenAIConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RelayConfig holds cloud relay settings
type RelayConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`

	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// SearchConfig holds web search settings
type SearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	MCPCommand string   `mapstructure:"mcp_command"`
	MCPArgs    []string `mapstructure:"mcp_args"`
	MaxResults int      `mapstructure:"max_results"`
	RatePerSec float64  `mapstructure:"rate_per_sec"`
}

// MemoryConfig holds recall settings
type MemoryConfig struct {
	Recall bool `mapstructure:"recall"`
	Limit  int  `mapstructure:"limit"`
}

// SummaryConfig holds summarizer settings
type SummaryConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Threshold int  `mapstructure:"threshold"`
	Length    int  `mapstructure:"length"`
}

// ServerConfig holds REST server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from file and env. Env var overrides use prefix ROLEPLAY_.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("ROLEPLAY_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "roleplay"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ROLEPLAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Conventional provider env names
	_ = v.BindEnv("gemini.keys", "ROLEPLAY_GEMINI_KEYS", "GEMINI_API_KEYS")
	_ = v.BindEnv("openai.api_key", "ROLEPLAY_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("charm.host", "ROLEPLAY_CHARM_HOST", "CHARM_HOST")

	// read config file if present
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Gemini.Keys = splitList(cfg.Gemini.Keys)
	cfg.Search.MCPArgs = splitList(cfg.Search.MCPArgs)

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendKeyRotating)
	v.SetDefault("storage.backend", StorageSQLite)
	v.SetDefault("storage.path", "")
	v.SetDefault("charm.host", "charm.2389.dev")
	v.SetDefault("charm.db", "roleplay")
	v.SetDefault("charm.auto_sync", true)
	v.SetDefault("gemini.keys", []string{})
	v.SetDefault("gemini.primary_model", "gemini-2.5-pro")
	v.SetDefault("gemini.backup_model", "gemini-2.5-flash")
	v.SetDefault("gemini.backoff", 2*time.Second)
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.9)
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.url", "")
	v.SetDefault("relay.token", "")
	v.SetDefault("relay.model", "gemini-2.5-flash")
	v.SetDefault("relay.timeout", 60*time.Second)
	v.SetDefault("relay.max_retries", 3)
	v.SetDefault("relay.temperature", 0)
	v.SetDefault("relay.max_tokens", 0)
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.mcp_command", "")
	v.SetDefault("search.mcp_args", []string{})
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.rate_per_sec", 1.0)
	v.SetDefault("memory.recall", true)
	v.SetDefault("memory.limit", 5)
	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.threshold", 6000)
	v.SetDefault("summary.length", 1000)
	v.SetDefault("server.addr", ":8080")
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendKeyRotating, BackendOpenAI, BackendRelay:
	default:
		return fmt.Errorf("backend must be one of %s, %s, %s; got %q", BackendKeyRotating, BackendOpenAI, BackendRelay, c.Backend)
	}
	switch c.Storage.Backend {
	case StorageSQLite, StorageCharm, StorageMemory:
	default:
		return fmt.Errorf("storage.backend must be one of %s, %s, %s; got %q", StorageSQLite, StorageCharm, StorageMemory, c.Storage.Backend)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be 0-2, got %f", c.OpenAI.Temperature)
	}
	if c.Relay.Temperature < 0 || c.Relay.Temperature > 2 {
		return fmt.Errorf("relay.temperature must be 0-2, got %f", c.Relay.Temperature)
	}
	if c.Relay.MaxTokens < 0 {
		return fmt.Errorf("relay.max_tokens must not be negative, got %d", c.Relay.MaxTokens)
	}
	if c.Relay.MaxRetries < 0 || c.Relay.MaxRetries > 10 {
		return fmt.Errorf("relay.max_retries must be 0-10, got %d", c.Relay.MaxRetries)
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when the relay is enabled")
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 10 {
		return fmt.Errorf("search.max_results must be 1-10, got %d", c.Search.MaxResults)
	}
	if c.Summary.Threshold <= 0 || c.Summary.Length <= 0 {
		return fmt.Errorf("summary.threshold and summary.length must be positive")
	}
	if c.Memory.Limit < 0 {
		return fmt.Errorf("memory.limit must not be negative, got %d", c.Memory.Limit)
	}
	return nil
}

// splitList flattens comma-separated items and drops blanks
func splitList(items []string) []string {
	out := []string{}
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
