// Package publisher moves acquired video files to the remote hosting
// service, chunking large uploads and reclaiming local disk afterwards.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/vidstage/pkg/title"
)

const (
	defaultMaxFileSize    = 10 << 30
	defaultChunkSize      = 100 << 20
	defaultConcurrency    = 3
	defaultChunkAttempts  = 5
	defaultStoragePercent = 90
)

// Account is the hosting account's storage state.
type Account struct {
	StorageUsed  int64
	StorageTotal int64
}

// Host is the remote hosting service API.
type Host interface {
	// Account returns storage usage; ErrAuth on bad credentials.
	Account(ctx context.Context) (*Account, error)

	// Upload sends a whole file in one request and returns its remote URL.
	Upload(ctx context.Context, localPath, remoteName string) (string, error)

	// StartChunked opens a chunked upload session.
	StartChunked(ctx context.Context, remoteName string, size int64) (string, error)

	// UploadChunk sends one chunk of an open session.
	UploadChunk(ctx context.Context, session string, index int, data []byte) error

	// FinishChunked closes the session and returns the remote URL.
	FinishChunked(ctx context.Context, session string) (string, error)
}

// Published describes a completed publish.
type Published struct {
	URL       string
	SizeBytes int64
}

// Publisher uploads files to the hosting service.
type Publisher struct {
	host Host
	log  *slog.Logger

	maxFileSize    int64
	chunkSize      int64
	concurrency    int
	chunkAttempts  uint
	storagePercent int
	retryDelay     time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithChunking overrides chunk size and upload concurrency.
func WithChunking(chunkSize int64, concurrency int) Option {
	return func(p *Publisher) {
		p.chunkSize = chunkSize
		p.concurrency = concurrency
	}
}

// WithMaxFileSize overrides the publish size ceiling.
func WithMaxFileSize(n int64) Option {
	return func(p *Publisher) {
		p.maxFileSize = n
	}
}

// WithStoragePercent caps how full the remote account may get.
func WithStoragePercent(pct int) Option {
	return func(p *Publisher) {
		p.storagePercent = pct
	}
}

// WithRetryDelay overrides the per-chunk retry backoff base.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Publisher) {
		p.retryDelay = d
	}
}

// New creates a Publisher.
func New(host Host, log *slog.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		host:           host,
		log:            log.With("component", "publisher"),
		maxFileSize:    defaultMaxFileSize,
		chunkSize:      defaultChunkSize,
		concurrency:    defaultConcurrency,
		chunkAttempts:  defaultChunkAttempts,
		storagePercent: defaultStoragePercent,
		retryDelay:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish uploads the file and deletes the local copy on success.
func (p *Publisher) Publish(ctx context.Context, localPath, remoteName string) (*Published, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, localPath)
	}
	if size > p.maxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, title.FormatSize(size))
	}

	if err := p.checkStorage(ctx, size); err != nil {
		return nil, err
	}

	var remoteURL string
	if size <= p.chunkSize {
		remoteURL, err = p.host.Upload(ctx, localPath, remoteName)
	} else {
		remoteURL, err = p.publishChunked(ctx, localPath, remoteName, size)
	}
	if err != nil {
		return nil, err
	}

	if err := os.Remove(localPath); err != nil {
		p.log.Warn("local cleanup failed", "path", localPath, "error", err)
	}

	p.log.Info("published", "name", remoteName, "size", title.FormatSize(size), "url", remoteURL)
	return &Published{URL: remoteURL, SizeBytes: size}, nil
}

// checkStorage verifies the account accepts size more bytes within the
// configured fill budget.
func (p *Publisher) checkStorage(ctx context.Context, size int64) error {
	acct, err := p.host.Account(ctx)
	if err != nil {
		return fmt.Errorf("account check: %w", err)
	}
	if acct.StorageTotal <= 0 {
		return nil
	}
	budget := acct.StorageTotal * int64(p.storagePercent) / 100
	if acct.StorageUsed+size > budget {
		return fmt.Errorf("%w: %s used of %s budget, need %s",
			ErrStorageFull,
			title.FormatSize(acct.StorageUsed),
			title.FormatSize(budget),
			title.FormatSize(size))
	}
	return nil
}

// publishChunked splits the file into fixed-size chunks and uploads
// them concurrently, each with its own retry budget.
func (p *Publisher) publishChunked(ctx context.Context, localPath, remoteName string, size int64) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	session, err := p.host.StartChunked(ctx, remoteName, size)
	if err != nil {
		return "", fmt.Errorf("start chunked upload: %w", err)
	}

	chunks := int((size + p.chunkSize - 1) / p.chunkSize)
	p.log.Debug("chunked upload started",
		"name", remoteName, "chunks", chunks, "chunk_size", title.FormatSize(p.chunkSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < chunks; i++ {
		i := i
		g.Go(func() error {
			offset := int64(i) * p.chunkSize
			length := min(p.chunkSize, size-offset)
			buf := make([]byte, length)
			if _, err := f.ReadAt(buf, offset); err != nil {
				return fmt.Errorf("read chunk %d: %w", i, err)
			}
			return p.uploadChunk(gctx, session, i, buf)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	url, err := p.host.FinishChunked(ctx, session)
	if err != nil {
		return "", fmt.Errorf("finish chunked upload: %w", err)
	}
	return url, nil
}

func (p *Publisher) uploadChunk(ctx context.Context, session string, index int, data []byte) error {
	err := retry.Do(
		func() error {
			return p.host.UploadChunk(ctx, session, index, data)
		},
		retry.Context(ctx),
		retry.Attempts(p.chunkAttempts),
		retry.Delay(p.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Auth and storage failures hold for every chunk.
			return !errors.Is(err, ErrAuth) && !errors.Is(err, ErrStorageFull)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.log.Warn("chunk retry", "session", session, "chunk", index, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("chunk %d: %w", index, err)
	}
	return nil
}
