// Package config loads the bot configuration from YAML with environment
// overrides for secrets.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Bot holds all configuration for the session bot.
type Bot struct {
	// Telegram bot transport
	BotToken string `yaml:"bot_token"`
	OwnerID  int64  `yaml:"owner_id"`

	// MTProto credentials used for the revocation flow's own handle
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`

	// Durable state
	StatePath   string `yaml:"state_path"`
	FallbackLog string `yaml:"fallback_log"`

	// Hex-encoded 32-byte key; when set, fallback log lines are sealed
	FallbackLogKey string `yaml:"fallback_log_key"`

	// Optional Postgres audit trail; empty DSN disables it
	DatabaseDSN string `yaml:"database_dsn"`

	// Conversations idle longer than this are reaped (minutes, 0 = never)
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`

	// Shown to users in generic failure replies
	SupportContact string `yaml:"support_contact"`
}

// DefaultBot returns Bot config with sensible defaults.
func DefaultBot() Bot {
	return Bot{
		StatePath:          "state.json",
		FallbackLog:        "session_logs.txt",
		IdleTimeoutMinutes: 15,
		SupportContact:     "the operator",
	}
}

// LoadBot reads config from path (missing file keeps defaults), then applies
// environment overrides.
func LoadBot(path string) (Bot, error) {
	cfg := DefaultBot()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Bot) applyEnv() error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.BotToken = v
	}
	if v := os.Getenv("API_HASH"); v != "" {
		c.APIHash = v
	}
	if v := os.Getenv("API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing API_ID: %w", err)
		}
		c.APIID = id
	}
	if v := os.Getenv("OWNER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing OWNER_ID: %w", err)
		}
		c.OwnerID = id
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("FALLBACK_LOG_KEY"); v != "" {
		c.FallbackLogKey = v
	}
	return nil
}

// Validate checks the fields the bot cannot run without.
func (c Bot) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot_token is required")
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("owner_id is required")
	}
	if c.APIID == 0 || c.APIHash == "" {
		return fmt.Errorf("api_id and api_hash are required")
	}
	if _, err := c.LogKey(); err != nil {
		return err
	}
	return nil
}

// LogKey decodes the fallback-log sealing key. Returns nil when no key is
// configured.
func (c Bot) LogKey() (*[32]byte, error) {
	if c.FallbackLogKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.FallbackLogKey)
	if err != nil {
		return nil, fmt.Errorf("decoding fallback_log_key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("fallback_log_key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
