package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/vidstage/internal/catalog"
	"github.com/vmunix/vidstage/internal/config"
	"github.com/vmunix/vidstage/internal/fetch"
	"github.com/vmunix/vidstage/internal/indexer"
	"github.com/vmunix/vidstage/internal/metadata"
	"github.com/vmunix/vidstage/internal/migrations"
	"github.com/vmunix/vidstage/internal/pipeline"
	"github.com/vmunix/vidstage/internal/publisher"
	"github.com/vmunix/vidstage/internal/selector"
	"github.com/vmunix/vidstage/internal/trailer"
	"github.com/vmunix/vidstage/internal/transfer"
)

// daemon bundles everything a command needs to touch the pipeline.
type daemon struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *sql.DB
	store  *catalog.Store
	coord  *pipeline.Coordinator
	runner *pipeline.Runner
	qbit   *transfer.QBitDaemon
}

func (d *daemon) Close() {
	_ = d.db.Close()
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openCatalog loads config, opens the database, and applies migrations.
// Enough for read-only commands that never talk to external services.
func openCatalog(configPath string) (*daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if problems := cfg.ValidateBase(); len(problems) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &daemon{
		cfg:   cfg,
		log:   logger,
		db:    db,
		store: catalog.NewStore(db),
	}, nil
}

// buildDaemon wires the full pipeline on top of openCatalog.
func buildDaemon(configPath string) (*daemon, error) {
	d, err := openCatalog(configPath)
	if err != nil {
		return nil, err
	}
	if problems := d.cfg.Validate(); len(problems) > 0 {
		d.Close()
		return nil, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	cfg, logger := d.cfg, d.log

	fetcher := fetch.NewClient(logger,
		fetch.WithHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout.Duration}),
		fetch.WithMinInterval(cfg.Fetch.MinInterval.Duration),
	)

	var indexers []indexer.Indexer
	for _, ic := range cfg.Indexers {
		switch ic.Kind {
		case "rutor":
			indexers = append(indexers, indexer.NewRutor(ic.Name, ic.BaseURL, fetcher, logger))
		case "torrentfind":
			indexers = append(indexers, indexer.NewTorrentFind(ic.Name, ic.BaseURL, fetcher, logger))
		}
	}

	var meta selector.MetadataAPI
	if cfg.Metadata.APIKey != "" {
		opts := []metadata.Option{}
		if cfg.Metadata.URL != "" {
			opts = append(opts, metadata.WithBaseURL(cfg.Metadata.URL))
		}
		meta = metadata.NewClient(cfg.Metadata.APIKey, opts...)
	}
	sel := selector.New(meta, logger)

	d.qbit = transfer.NewQBitDaemon(
		cfg.QBittorrent.URL, cfg.QBittorrent.Username, cfg.QBittorrent.Password, logger)
	transferrer := transfer.NewManager(d.qbit, cfg.QBittorrent.SavePath, logger)

	host := publisher.NewHTTPHost(cfg.Hosting.URL, cfg.Hosting.APIKey, logger)
	uploader := publisher.New(host, logger,
		publisher.WithStoragePercent(cfg.Hosting.MaxStoragePercent))

	var trailers pipeline.TrailerFinder
	if len(cfg.Trailers.APIKeys) > 0 {
		pool := trailer.NewKeyPool(cfg.Trailers.APIKeys, cfg.Trailers.DailyQuota, 24*time.Hour)
		provider := trailer.NewYouTubeProvider(logger)
		trailers = trailer.NewFinder(pool, provider, cfg.Trailers.PreferredLanguage, logger)
	}

	d.coord = pipeline.NewCoordinator(d.store, indexers, sel, transferrer, uploader,
		trailers, cfg.Trailers.PreferredLanguage, logger)
	d.runner = pipeline.NewRunner(d.store, d.coord, logger,
		pipeline.WithItemDelay(cfg.Pipeline.ItemDelay.Duration),
		pipeline.WithSchedule(cfg.Pipeline.ScanSchedule),
	)

	logger.Info("pipeline assembled",
		"indexers", len(indexers),
		"metadata", meta != nil,
		"trailer_keys", len(cfg.Trailers.APIKeys),
		"database", cfg.Database.Path,
	)
	return d, nil
}
