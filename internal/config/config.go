// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Fetch       FetchConfig       `toml:"fetch"`
	Indexers    []IndexerConfig   `toml:"indexers"`
	QBittorrent QBittorrentConfig `toml:"qbittorrent"`
	Hosting     HostingConfig     `toml:"hosting"`
	Metadata    MetadataConfig    `toml:"metadata"`
	Trailers    TrailersConfig    `toml:"trailers"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
}

type ServerConfig struct {
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type FetchConfig struct {
	Timeout     duration `toml:"timeout"`
	MinInterval duration `toml:"min_interval"`
}

type IndexerConfig struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"` // "rutor" or "torrentfind"
	BaseURL string `toml:"base_url"`
}

type QBittorrentConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	SavePath string `toml:"save_path"`
}

type HostingConfig struct {
	URL               string `toml:"url"`
	APIKey            string `toml:"api_key"`
	MaxStoragePercent int    `toml:"max_storage_percent"`
}

type MetadataConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type TrailersConfig struct {
	APIKeys           []string `toml:"api_keys"`
	DailyQuota        int      `toml:"daily_quota"`
	PreferredLanguage string   `toml:"preferred_language"`
}

type PipelineConfig struct {
	ItemDelay    duration `toml:"item_delay"`
	ScanSchedule string   `toml:"scan_schedule"` // cron expression
}

// duration wraps time.Duration for TOML string parsing ("30s", "5m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/vidstage.db"
	}
	if c.Fetch.Timeout.Duration == 0 {
		c.Fetch.Timeout.Duration = 30 * time.Second
	}
	if c.Fetch.MinInterval.Duration == 0 {
		c.Fetch.MinInterval.Duration = 2 * time.Second
	}
	if c.Hosting.MaxStoragePercent == 0 {
		c.Hosting.MaxStoragePercent = 90
	}
	if c.Trailers.DailyQuota == 0 {
		c.Trailers.DailyQuota = 100
	}
	if c.Trailers.PreferredLanguage == "" {
		c.Trailers.PreferredLanguage = "ru"
	}
	if c.Pipeline.ItemDelay.Duration == 0 {
		c.Pipeline.ItemDelay.Duration = 20 * time.Second
	}
	if c.Pipeline.ScanSchedule == "" {
		c.Pipeline.ScanSchedule = "@every 6h"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
