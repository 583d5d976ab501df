package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaemon struct {
	progress    []float64 // successive Get results
	contentPath string
	name        string
	failed      bool

	polls   int
	added   []string
	paused  int
	resumed int
	removed []bool // deleteFiles flag per Remove call
}

func (f *fakeDaemon) Add(_ context.Context, magnet, _ string) error {
	f.added = append(f.added, magnet)
	return nil
}

func (f *fakeDaemon) Get(_ context.Context, hash string) (*Torrent, error) {
	i := f.polls
	if i >= len(f.progress) {
		i = len(f.progress) - 1
	}
	f.polls++
	return &Torrent{
		Hash:        hash,
		Name:        f.name,
		Progress:    f.progress[i],
		ContentPath: f.contentPath,
		SizeBytes:   1 << 20,
		Failed:      f.failed,
	}, nil
}

func (f *fakeDaemon) Pause(context.Context, string) error  { f.paused++; return nil }
func (f *fakeDaemon) Resume(context.Context, string) error { f.resumed++; return nil }

func (f *fakeDaemon) Remove(_ context.Context, _ string, deleteFiles bool) error {
	f.removed = append(f.removed, deleteFiles)
	return nil
}

const testMagnet = "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=test"

func testManager(d Daemon, maxPolls int) *Manager {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(d, "", log,
		WithPolling(time.Microsecond, maxPolls),
		WithSettleDelay(0))
}

// writeVideo creates a non-empty file and returns its path.
func writeVideo(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestAcquireSingleFile(t *testing.T) {
	dir := t.TempDir()
	video := writeVideo(t, dir, "Blade.Runner.1982.1080p.mkv", 2048)

	d := &fakeDaemon{
		progress:    []float64{0.2, 0.7, 1.0},
		contentPath: video,
		name:        "Blade.Runner.1982.1080p",
	}
	m := testManager(d, 10)

	res, err := m.Acquire(context.Background(), testMagnet, "Blade Runner")
	require.NoError(t, err)
	assert.Equal(t, video, res.Path)
	assert.Equal(t, int64(2048), res.SizeBytes)
	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", res.Hash)
	require.Len(t, d.removed, 1)
	assert.False(t, d.removed[0], "files must be kept on success")
}

func TestAcquirePicksBestFileInDirectory(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "Blade.Runner.1982")
	want := writeVideo(t, root, "Blade.Runner.1982.1080p.mkv", 4096)
	writeVideo(t, root, "sample.mkv", 512)
	writeVideo(t, root, "extras/behind.the.scenes.mp4", 8192)
	writeVideo(t, root, "info.txt", 100) // not a video

	d := &fakeDaemon{
		progress:    []float64{1.0},
		contentPath: root,
		name:        "Blade.Runner.1982",
	}
	m := testManager(d, 10)

	res, err := m.Acquire(context.Background(), testMagnet, "Blade Runner")
	require.NoError(t, err)
	assert.Equal(t, want, res.Path)
}

func TestAcquireStalledGetsOneNudge(t *testing.T) {
	dir := t.TempDir()
	video := writeVideo(t, dir, "movie.mkv", 1024)

	// Progress freezes at 0.5 long enough to trip the stall detector,
	// then completes.
	progress := []float64{0.1, 0.3}
	for i := 0; i < stuckPolls+1; i++ {
		progress = append(progress, 0.5)
	}
	progress = append(progress, 0.8, 1.0)

	d := &fakeDaemon{progress: progress, contentPath: video, name: "movie"}
	m := testManager(d, len(progress)+5)

	_, err := m.Acquire(context.Background(), testMagnet, "movie")
	require.NoError(t, err)
	assert.Equal(t, 1, d.paused, "stall must trigger exactly one pause")
	assert.Equal(t, 1, d.resumed)
}

func TestAcquireNudgesEachStallWindow(t *testing.T) {
	dir := t.TempDir()
	video := writeVideo(t, dir, "movie.mkv", 1024)

	// Two separate stall windows, one at 0.5 and one at 0.6, with real
	// progress in between. Each window earns its own pause/resume.
	progress := []float64{0.1, 0.3}
	for i := 0; i < stuckPolls+1; i++ {
		progress = append(progress, 0.5)
	}
	progress = append(progress, 0.6)
	for i := 0; i < stuckPolls; i++ {
		progress = append(progress, 0.6)
	}
	progress = append(progress, 0.9, 1.0)

	d := &fakeDaemon{progress: progress, contentPath: video, name: "movie"}
	m := testManager(d, len(progress)+5)

	_, err := m.Acquire(context.Background(), testMagnet, "movie")
	require.NoError(t, err)
	assert.Equal(t, 2, d.paused, "each stall window must trigger its own pause")
	assert.Equal(t, 2, d.resumed)
}

func TestAcquireTimeout(t *testing.T) {
	d := &fakeDaemon{progress: []float64{0.4}, name: "stuck"}
	m := testManager(d, 5)

	_, err := m.Acquire(context.Background(), testMagnet, "stuck")
	require.ErrorIs(t, err, ErrTimeout)
	require.Len(t, d.removed, 1)
	assert.True(t, d.removed[0], "partial files must be deleted on timeout")
}

func TestAcquireFailedState(t *testing.T) {
	d := &fakeDaemon{progress: []float64{0.4}, name: "broken", failed: true}
	m := testManager(d, 5)

	_, err := m.Acquire(context.Background(), testMagnet, "broken")
	require.ErrorIs(t, err, ErrFailed)
}

func TestAcquireNoVideoFile(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "readme.txt", 100)

	d := &fakeDaemon{progress: []float64{1.0}, contentPath: dir, name: "docs"}
	m := testManager(d, 5)

	_, err := m.Acquire(context.Background(), testMagnet, "docs")
	require.ErrorIs(t, err, ErrNoVideoFile)
	require.Len(t, d.removed, 1)
	assert.True(t, d.removed[0])
}

func TestAcquireEmptyFileRejected(t *testing.T) {
	dir := t.TempDir()
	video := writeVideo(t, dir, "movie.mkv", 0)

	d := &fakeDaemon{progress: []float64{1.0}, contentPath: video, name: "movie"}
	m := testManager(d, 5)

	_, err := m.Acquire(context.Background(), testMagnet, "movie")
	require.ErrorIs(t, err, ErrNoVideoFile)
}

func TestAcquireContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDaemon{progress: []float64{0.1}, name: "x"}
	m := testManager(d, 5)

	_, err := m.Acquire(ctx, testMagnet, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestInfoHash(t *testing.T) {
	tests := []struct {
		name    string
		magnet  string
		want    string
		wantErr bool
	}{
		{
			name:   "hex hash",
			magnet: "magnet:?xt=urn:btih:C9E15763F722F23E98A29DECDFAE341B98D53056&dn=x",
			want:   "c9e15763f722f23e98a29decdfae341b98d53056",
		},
		{
			name:   "base32 hash",
			magnet: "magnet:?xt=urn:btih:ZHJQK5RXOIXSH2NCTXWN7LRUDOMNKMCW",
			want:   "zhjqk5rxoixsh2nctxwn7lrudomnkmcw",
		},
		{
			name:    "not a magnet",
			magnet:  "https://example.com/file.torrent",
			wantErr: true,
		},
		{
			name:    "missing xt",
			magnet:  "magnet:?dn=just+a+name",
			wantErr: true,
		},
		{
			name:    "truncated hash",
			magnet:  "magnet:?xt=urn:btih:deadbeef",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InfoHash(tt.magnet)
			if tt.wantErr {
				if !errors.Is(err, ErrBadMagnet) {
					t.Fatalf("InfoHash(%q) err = %v, want ErrBadMagnet", tt.magnet, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("InfoHash(%q) unexpected error: %v", tt.magnet, err)
			}
			if got != tt.want {
				t.Errorf("InfoHash(%q) = %q, want %q", tt.magnet, got, tt.want)
			}
		})
	}
}
