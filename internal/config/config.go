// Package config loads digest configuration from a YAML file with sane
// defaults and environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all digest configuration.
type Config struct {
	Name string `yaml:"name"`

	// LLM configures the narrative generation service.
	LLM LLMConfig `yaml:"llm"`

	// Store configures durable storage.
	Store StoreConfig `yaml:"store"`

	// Continuity configures the continuity engine itself.
	Continuity ContinuityConfig `yaml:"continuity"`

	// Budget configures the generation budget gatekeeper.
	Budget BudgetConfig `yaml:"budget"`

	// Watchlist configures the tracked-terms source.
	Watchlist WatchlistConfig `yaml:"watchlist"`

	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server"`
}

// LLMConfig configures the narrative generation client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini (REST), genai (SDK), or empty to disable
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ContinuityConfig configures engine tunables. Durations are strings in
// time.ParseDuration format.
type ContinuityConfig struct {
	CacheTTL         string  `yaml:"cache_ttl"`
	Retention        string  `yaml:"retention"`
	SweepProbability float64 `yaml:"sweep_probability"`
	DeltaCap         int     `yaml:"delta_cap"`
	LookbackWindow   string  `yaml:"lookback_window"`
	FirstVisitWindow string  `yaml:"first_visit_window"`
}

// BudgetConfig configures the token budget gatekeeper.
type BudgetConfig struct {
	Path            string `yaml:"path"`
	DailyTokenLimit int    `yaml:"daily_token_limit"`
}

// WatchlistConfig configures the tracked-terms file.
type WatchlistConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config with every tunable set to its default.
func Default() *Config {
	return &Config{
		Name: "digest",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "20s",
		},
		Store: StoreConfig{
			Path: ".digest/digest.db",
		},
		Continuity: ContinuityConfig{
			CacheTTL:         "15m",
			Retention:        "336h", // 14 days
			SweepProbability: 0.02,
			DeltaCap:         200,
			LookbackWindow:   "96h", // ~4 days
			FirstVisitWindow: "24h",
		},
		Budget: BudgetConfig{
			Path:            ".digest/budget.json",
			DailyTokenLimit: 250000,
		},
		Watchlist: WatchlistConfig{
			Path: ".digest/watchlist.yaml",
		},
		Server: ServerConfig{
			Addr: ":8787",
		},
	}
}

// Load reads the config file at path, applying defaults for anything the
// file leaves out. A missing file yields the defaults. The GEMINI_API_KEY
// environment variable overrides llm.api_key.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LLMTimeout returns the parsed generation call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 20*time.Second)
}

// CacheTTL returns the parsed snapshot cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Continuity.CacheTTL, 15*time.Minute)
}

// Retention returns the parsed snapshot retention window.
func (c *Config) Retention() time.Duration {
	return parseDuration(c.Continuity.Retention, 14*24*time.Hour)
}

// LookbackWindow returns the parsed unchanged-context look-back window.
func (c *Config) LookbackWindow() time.Duration {
	return parseDuration(c.Continuity.LookbackWindow, 96*time.Hour)
}

// FirstVisitWindow returns the parsed default delta window for first visits.
func (c *Config) FirstVisitWindow() time.Duration {
	return parseDuration(c.Continuity.FirstVisitWindow, 24*time.Hour)
}
