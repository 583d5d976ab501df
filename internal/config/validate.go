package config

import "fmt"

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validIndexerKinds = map[string]bool{
	"rutor": true, "torrentfind": true,
}

// ValidateBase checks only what every command needs: logging and the
// database location. Read-only commands run against this alone so a
// box without a full pipeline config can still inspect the catalog.
func (c *Config) ValidateBase() []string {
	var errs []string
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path: required")
	}
	return errs
}

// Validate checks the full pipeline configuration.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	errs := c.ValidateBase()

	if len(c.Indexers) == 0 {
		errs = append(errs, "indexers: at least one indexer must be configured")
	}
	for i, idx := range c.Indexers {
		if idx.Name == "" {
			errs = append(errs, fmt.Sprintf("indexers[%d].name: required", i))
		}
		if !validIndexerKinds[idx.Kind] {
			errs = append(errs, fmt.Sprintf("indexers[%d].kind: must be one of rutor, torrentfind; got %q", i, idx.Kind))
		}
		if idx.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("indexers[%d].base_url: required", i))
		}
	}

	if c.QBittorrent.URL == "" {
		errs = append(errs, "qbittorrent.url: required")
	}
	if c.QBittorrent.SavePath == "" {
		errs = append(errs, "qbittorrent.save_path: required")
	}

	if c.Hosting.URL == "" {
		errs = append(errs, "hosting.url: required")
	}
	if c.Hosting.APIKey == "" {
		errs = append(errs, "hosting.api_key: required")
	}
	if c.Hosting.MaxStoragePercent < 1 || c.Hosting.MaxStoragePercent > 100 {
		errs = append(errs, fmt.Sprintf("hosting.max_storage_percent: must be between 1 and 100, got %d", c.Hosting.MaxStoragePercent))
	}

	if len(c.Trailers.APIKeys) == 0 {
		errs = append(errs, "trailers.api_keys: at least one key must be configured")
	}

	return errs
}
