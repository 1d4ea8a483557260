// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies defaults, TOML file loading, environment overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the loader at an empty config and clears provider env vars
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ROLEPLAY_CONFIG", filepath.Join(dir, "missing.toml"))
	for _, key := range []string{"GEMINI_API_KEYS", "OPENAI_API_KEY", "CHARM_HOST", "ROLEPLAY_BACKEND"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Backend != BackendKeyRotating {
		t.Errorf("Backend = %s, want %s", cfg.Backend, BackendKeyRotating)
	}
	if cfg.Storage.Backend != StorageSQLite {
		t.Errorf("Storage.Backend = %s, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Charm.DBName != "roleplay" {
		t.Errorf("Charm.DBName = %s, want roleplay", cfg.Charm.DBName)
	}
	if !cfg.Charm.AutoSync {
		t.Error("Charm.AutoSync = false, want true")
	}
	if cfg.Gemini.Backoff != 2*time.Second {
		t.Errorf("Gemini.Backoff = %v, want 2s", cfg.Gemini.Backoff)
	}
	if len(cfg.Gemini.Keys) != 0 {
		t.Errorf("Gemini.Keys = %v, want none", cfg.Gemini.Keys)
	}
	if cfg.Relay.Timeout != 60*time.Second {
		t.Errorf("Relay.Timeout = %v, want 60s", cfg.Relay.Timeout)
	}
	if cfg.Relay.MaxRetries != 3 {
		t.Errorf("Relay.MaxRetries = %d, want 3", cfg.Relay.MaxRetries)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("Search.MaxResults = %d, want 5", cfg.Search.MaxResults)
	}
	if cfg.Summary.Threshold != 6000 || cfg.Summary.Length != 1000 {
		t.Errorf("Summary = %+v, want 6000/1000", cfg.Summary)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s, want :8080", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEYS", "key-a, key-b,,key-c")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ROLEPLAY_BACKEND", "openai")
	t.Setenv("ROLEPLAY_GEMINI_PRIMARY_MODEL", "gemini-test")
	t.Setenv("ROLEPLAY_SUMMARY_THRESHOLD", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"key-a", "key-b", "key-c"}
	if len(cfg.Gemini.Keys) != len(want) {
		t.Fatalf("Gemini.Keys = %v, want %v", cfg.Gemini.Keys, want)
	}
	for i := range want {
		if cfg.Gemini.Keys[i] != want[i] {
			t.Errorf("Gemini.Keys[%d] = %q, want %q", i, cfg.Gemini.Keys[i], want[i])
		}
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI.APIKey = %q", cfg.OpenAI.APIKey)
	}
	if cfg.Backend != BackendOpenAI {
		t.Errorf("Backend = %q, want openai", cfg.Backend)
	}
	if cfg.Gemini.PrimaryModel != "gemini-test" {
		t.Errorf("Gemini.PrimaryModel = %q", cfg.Gemini.PrimaryModel)
	}
	if cfg.Summary.Threshold != 9000 {
		t.Errorf("Summary.Threshold = %d, want 9000", cfg.Summary.Threshold)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	content := `
backend = "relay"

[relay]
enabled = true
url = "https://relay.example.com"
timeout = "10s"

[storage]
backend = "memory"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROLEPLAY_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != BackendRelay {
		t.Errorf("Backend = %q, want relay", cfg.Backend)
	}
	if !cfg.Relay.Enabled || cfg.Relay.URL != "https://relay.example.com" {
		t.Errorf("Relay = %+v", cfg.Relay)
	}
	if cfg.Relay.Timeout != 10*time.Second {
		t.Errorf("Relay.Timeout = %v, want 10s", cfg.Relay.Timeout)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: BackendKeyRotating,
			Storage: StorageConfig{Backend: StorageSQLite},
			Relay:   RelayConfig{MaxRetries: 3},
			Search:  SearchConfig{MaxResults: 5},
			Summary: SummaryConfig{Threshold: 6000, Length: 1000},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend = "carrier-pigeon" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "floppy" }, true},
		{"temperature too high", func(c *Config) { c.OpenAI.Temperature = 3 }, true},
		{"relay temperature too high", func(c *Config) { c.Relay.Temperature = 2.5 }, true},
		{"negative relay max tokens", func(c *Config) { c.Relay.MaxTokens = -1 }, true},
		{"retries too high", func(c *Config) { c.Relay.MaxRetries = 11 }, true},
		{"relay without url", func(c *Config) { c.Relay.Enabled = true }, true},
		{"relay with url", func(c *Config) { c.Relay.Enabled = true; c.Relay.URL = "http://r" }, false},
		{"search results zero", func(c *Config) { c.Search.MaxResults = 0 }, true},
		{"search results eleven", func(c *Config) { c.Search.MaxResults = 11 }, true},
		{"summary threshold zero", func(c *Config) { c.Summary.Threshold = 0 }, true},
		{"negative memory limit", func(c *Config) { c.Memory.Limit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a,b", " c ", ""})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitList() = %v", got)
	}
}
