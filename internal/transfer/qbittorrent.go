package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	qbt "github.com/autobrr/go-qbittorrent"
)

// failedStates are daemon states with no path back to a completed
// transfer without operator intervention.
var failedStates = map[qbt.TorrentState]bool{
	qbt.TorrentStateError:        true,
	qbt.TorrentStateMissingFiles: true,
	qbt.TorrentStateUnknown:      true,
}

// QBitDaemon adapts a qBittorrent instance to the Daemon interface.
type QBitDaemon struct {
	client *qbt.Client
	log    *slog.Logger
}

// NewQBitDaemon creates a qBittorrent-backed daemon.
func NewQBitDaemon(host, username, password string, log *slog.Logger) *QBitDaemon {
	if log == nil {
		log = slog.Default()
	}
	return &QBitDaemon{
		client: qbt.NewClient(qbt.Config{
			Host:     host,
			Username: username,
			Password: password,
		}),
		log: log.With("component", "qbittorrent"),
	}
}

// Login authenticates against the daemon.
func (d *QBitDaemon) Login(ctx context.Context) error {
	if err := d.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

// Add submits a magnet link for download into savePath.
func (d *QBitDaemon) Add(ctx context.Context, magnet, savePath string) error {
	opts := map[string]string{}
	if savePath != "" {
		opts["savepath"] = savePath
	}
	if err := d.client.AddTorrentFromUrlCtx(ctx, magnet, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

// Get returns the daemon's state for one torrent.
func (d *QBitDaemon) Get(ctx context.Context, hash string) (*Torrent, error) {
	torrents, err := d.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{
		Hashes: []string{hash},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if len(torrents) == 0 {
		return nil, errors.New("torrent not found: " + hash)
	}

	t := torrents[0]
	return &Torrent{
		Hash:        t.Hash,
		Name:        t.Name,
		Progress:    t.Progress,
		ContentPath: t.ContentPath,
		SizeBytes:   t.Size,
		Failed:      failedStates[t.State],
	}, nil
}

// Pause stops a torrent.
func (d *QBitDaemon) Pause(ctx context.Context, hash string) error {
	return d.client.PauseCtx(ctx, []string{hash})
}

// Resume restarts a torrent.
func (d *QBitDaemon) Resume(ctx context.Context, hash string) error {
	return d.client.ResumeCtx(ctx, []string{hash})
}

// Remove deletes the torrent entry, optionally with its files.
func (d *QBitDaemon) Remove(ctx context.Context, hash string, deleteFiles bool) error {
	return d.client.DeleteTorrentsCtx(ctx, []string{hash}, deleteFiles)
}
