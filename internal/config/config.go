package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file leaves values unset.
const (
	DefaultCountryCode      = "98"
	DefaultMaxConversations = 30
	DefaultMaxUnread        = 30
	DefaultMaxRecent        = 30
	DefaultSchedule         = "@every 15m"
)

// Config represents the global ~/.tgsnap/config.toml.
type Config struct {
	// APIID and APIHash identify the application against the Telegram API.
	APIID   int    `toml:"api_id"`
	APIHash string `toml:"api_hash"`

	// DefaultAccount is the phone number used when no --account flag is given.
	DefaultAccount string `toml:"default_account"`

	// CountryCode is the default country code for normalizing national-format
	// phone numbers (without the leading "+").
	CountryCode string `toml:"country_code"`

	// Accounts lists phone numbers the daemon refreshes on schedule.
	Accounts []string `toml:"accounts"`

	Ingest IngestConfig `toml:"ingest"`
}

// IngestConfig holds per-run ingestion limits and the daemon refresh schedule.
type IngestConfig struct {
	MaxConversations int    `toml:"max_conversations"`
	MaxUnread        int    `toml:"max_unread_per_conversation"`
	MaxRecent        int    `toml:"max_recent_per_conversation"`
	Schedule         string `toml:"schedule"`
}

// Load reads config from the given path and fills in defaults.
// Returns nil config and error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks that the credentials required to build a Telegram client are present.
func (c *Config) Validate() error {
	if c.APIID == 0 {
		return fmt.Errorf("config: api_id is required")
	}
	if c.APIHash == "" {
		return fmt.Errorf("config: api_hash is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.CountryCode == "" {
		c.CountryCode = DefaultCountryCode
	}
	if c.Ingest.MaxConversations <= 0 {
		c.Ingest.MaxConversations = DefaultMaxConversations
	}
	if c.Ingest.MaxUnread <= 0 {
		c.Ingest.MaxUnread = DefaultMaxUnread
	}
	if c.Ingest.MaxRecent <= 0 {
		c.Ingest.MaxRecent = DefaultMaxRecent
	}
	if c.Ingest.Schedule == "" {
		c.Ingest.Schedule = DefaultSchedule
	}
}
