// Package transfer drives the torrent daemon: it adds magnet links,
// waits for completion with stall recovery, and locates the resulting
// video file on disk.
package transfer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/vmunix/vidstage/pkg/title"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultMaxPolls     = 720
	defaultSettleDelay  = 5 * time.Second

	// completeThreshold accepts transfers the daemon reports as all but
	// done; the final fraction is padding blocks, not payload.
	completeThreshold = 0.9999

	// stuckEpsilon and stuckPolls define a stall: progress moving less
	// than 0.1% across ten consecutive polls.
	stuckEpsilon = 0.001
	stuckPolls   = 10
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true,
	".mov": true, ".wmv": true, ".ts": true, ".webm": true,
}

// Torrent is the daemon's view of one transfer.
type Torrent struct {
	Hash        string
	Name        string
	Progress    float64 // 0..1
	ContentPath string
	SizeBytes   int64
	Failed      bool
}

// Daemon is the torrent client the manager drives.
type Daemon interface {
	Add(ctx context.Context, magnet, savePath string) error
	Get(ctx context.Context, hash string) (*Torrent, error)
	Pause(ctx context.Context, hash string) error
	Resume(ctx context.Context, hash string) error
	Remove(ctx context.Context, hash string, deleteFiles bool) error
}

// Result describes a completed transfer.
type Result struct {
	Path      string
	SizeBytes int64
	Hash      string
	Name      string
}

// Manager orchestrates transfers.
type Manager struct {
	daemon   Daemon
	savePath string
	log      *slog.Logger

	pollInterval time.Duration
	maxPolls     int
	settleDelay  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolling overrides the poll cadence and budget.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(m *Manager) {
		m.pollInterval = interval
		m.maxPolls = maxPolls
	}
}

// WithSettleDelay overrides the post-completion settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.settleDelay = d
	}
}

// NewManager creates a transfer manager.
func NewManager(daemon Daemon, savePath string, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		daemon:       daemon,
		savePath:     savePath,
		log:          log.With("component", "transfer"),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		settleDelay:  defaultSettleDelay,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire adds the magnet to the daemon, waits for completion, and
// returns the located video file. The torrent entry is removed from the
// daemon afterwards; downloaded files are kept on success and deleted
// on failure.
func (m *Manager) Acquire(ctx context.Context, magnet, wantTitle string) (*Result, error) {
	hash, err := InfoHash(magnet)
	if err != nil {
		return nil, err
	}

	if err := m.daemon.Add(ctx, magnet, m.savePath); err != nil {
		return nil, fmt.Errorf("add transfer: %w", err)
	}
	m.log.Info("transfer started", "hash", hash, "title", wantTitle)

	t, err := m.waitComplete(ctx, hash)
	if err != nil {
		// Drop the torrent and its partial files.
		_ = m.daemon.Remove(context.WithoutCancel(ctx), hash, true)
		return nil, err
	}

	// Let the daemon finish moving and fsyncing files.
	if err := m.sleep(ctx, m.settleDelay); err != nil {
		return nil, err
	}

	path, size, err := m.locate(t, wantTitle)
	if err != nil {
		_ = m.daemon.Remove(context.WithoutCancel(ctx), hash, true)
		return nil, err
	}

	// Stop seeding; the files stay on disk for publishing.
	if err := m.daemon.Remove(ctx, hash, false); err != nil {
		m.log.Warn("transfer cleanup failed", "hash", hash, "error", err)
	}

	m.log.Info("transfer complete",
		"hash", hash, "path", path, "size", title.FormatSize(size))
	return &Result{Path: path, SizeBytes: size, Hash: hash, Name: t.Name}, nil
}

// waitComplete polls the daemon until the transfer finishes. A stall
// window of stuckPolls unchanged polls earns one pause/resume nudge;
// the counter then restarts, so a later stall earns another.
func (m *Manager) waitComplete(ctx context.Context, hash string) (*Torrent, error) {
	lastProgress := -1.0
	stuck := 0

	for i := 0; i < m.maxPolls; i++ {
		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return nil, err
		}

		t, err := m.daemon.Get(ctx, hash)
		if err != nil {
			m.log.Warn("transfer poll failed", "hash", hash, "error", err)
			continue
		}
		if t.Failed {
			return nil, fmt.Errorf("%w: %s", ErrFailed, t.Name)
		}
		if t.Progress >= completeThreshold {
			return t, nil
		}

		if lastProgress >= 0 && math.Abs(t.Progress-lastProgress) < stuckEpsilon {
			stuck++
		} else {
			stuck = 0
		}
		lastProgress = t.Progress

		if stuck >= stuckPolls {
			m.log.Info("transfer stalled, nudging", "hash", hash, "progress", t.Progress)
			if err := m.daemon.Pause(ctx, hash); err != nil {
				m.log.Warn("pause failed", "hash", hash, "error", err)
			}
			if err := m.daemon.Resume(ctx, hash); err != nil {
				m.log.Warn("resume failed", "hash", hash, "error", err)
			}
			stuck = 0
		}
	}

	return nil, fmt.Errorf("%w after %d polls", ErrTimeout, m.maxPolls)
}

// locate finds the transfer's video file. When the content path is a
// directory the best fuzzy name match against the wanted title wins,
// with the larger file breaking ties.
func (m *Manager) locate(t *Torrent, wantTitle string) (string, int64, error) {
	info, err := os.Stat(t.ContentPath)
	if err != nil {
		return "", 0, fmt.Errorf("stat content path: %w", err)
	}

	if !info.IsDir() {
		if !isVideoFile(t.ContentPath) || info.Size() == 0 {
			return "", 0, fmt.Errorf("%w: %s", ErrNoVideoFile, t.ContentPath)
		}
		if err := checkReadable(t.ContentPath); err != nil {
			return "", 0, err
		}
		return t.ContentPath, info.Size(), nil
	}

	type found struct {
		path  string
		size  int64
		score float64
	}
	var files []found
	err = filepath.WalkDir(t.ContentPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isVideoFile(path) {
			return err
		}
		fi, err := d.Info()
		if err != nil || fi.Size() == 0 {
			return nil
		}
		files = append(files, found{
			path:  path,
			size:  fi.Size(),
			score: nameSimilarity(filepath.Base(path), wantTitle, t.Name),
		})
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("scan content dir: %w", err)
	}
	if len(files) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrNoVideoFile, t.ContentPath)
	}

	sort.Slice(files, func(i, j int) bool {
		if math.Abs(files[i].score-files[j].score) > 0.01 {
			return files[i].score > files[j].score
		}
		return files[i].size > files[j].size
	})

	best := files[0]
	if err := checkReadable(best.path); err != nil {
		return "", 0, err
	}
	return best.path, best.size, nil
}

// nameSimilarity scores a file name against the wanted title and the
// torrent name, keeping the better of the two.
func nameSimilarity(fileName, wantTitle, torrentName string) float64 {
	base := title.Clean(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	best := 0.0
	for _, target := range []string{wantTitle, torrentName} {
		clean := title.Clean(target)
		if clean == "" {
			continue
		}
		if sim, err := edlib.StringsSimilarity(base, clean, edlib.JaroWinkler); err == nil {
			best = math.Max(best, float64(sim))
		}
		best = math.Max(best, title.WordOverlap(clean, base))
	}
	return best
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	return f.Close()
}

// InfoHash extracts the lowercase info hash from a magnet link.
func InfoHash(magnet string) (string, error) {
	u, err := url.Parse(magnet)
	if err != nil || u.Scheme != "magnet" {
		return "", fmt.Errorf("%w: %q", ErrBadMagnet, magnet)
	}
	for _, xt := range u.Query()["xt"] {
		if h, ok := strings.CutPrefix(xt, "urn:btih:"); ok && (len(h) == 40 || len(h) == 32) {
			return strings.ToLower(h), nil
		}
	}
	return "", fmt.Errorf("%w: no info hash", ErrBadMagnet)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
