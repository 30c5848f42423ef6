// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Universe struct {
		Tickers      []string `yaml:"tickers"`
		HistoryYears int      `yaml:"history_years"`
		RebuildCron  string   `yaml:"rebuild_cron"`
	} `yaml:"universe"`
	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// defaultTickers is the built-in universe: large caps across tech,
// financials, healthcare, energy and consumer staples.
var defaultTickers = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA",
	"JPM", "BAC", "GS",
	"JNJ", "PFE", "UNH",
	"XOM", "CVX",
	"WMT", "PG", "KO",
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("UNIVERSE_TICKERS"); v != "" {
		cfg.Universe.Tickers = splitList(v)
	}
	if v := os.Getenv("REBUILD_CRON"); v != "" {
		cfg.Universe.RebuildCron = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLSeconds = ttl
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if len(cfg.Universe.Tickers) == 0 {
		cfg.Universe.Tickers = append([]string(nil), defaultTickers...)
	}
	if cfg.Universe.HistoryYears == 0 {
		cfg.Universe.HistoryYears = 2
	}
	if cfg.Universe.RebuildCron == "" {
		cfg.Universe.RebuildCron = "0 30 6 * * 1-5"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stockadvisor.db"
	}

	for i, tk := range cfg.Universe.Tickers {
		cfg.Universe.Tickers[i] = strings.ToUpper(strings.TrimSpace(tk))
	}

	return cfg, nil
}

// Validate checks field ranges. The OpenAI key and Telegram settings are
// optional; the features they enable degrade when unset.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Universe.Tickers) < 2 {
		return fmt.Errorf("universe.tickers needs at least 2 entries, got %d", len(c.Universe.Tickers))
	}
	if c.Universe.HistoryYears < 1 || c.Universe.HistoryYears > 10 {
		return fmt.Errorf("universe.history_years %d out of range", c.Universe.HistoryYears)
	}
	if c.Cache.TTLSeconds < 1 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
