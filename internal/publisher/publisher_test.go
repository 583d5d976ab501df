package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	mu sync.Mutex

	acct    Account
	acctErr error

	chunkFails map[int]int   // remaining failures per chunk index
	chunkErrs  map[int]error // permanent error per chunk index

	uploads    []string    // whole-file upload names
	chunkSizes map[int]int // chunk index to byte count
	chunkCalls map[int]int // attempts per chunk index
	finished   bool
}

func (f *fakeHost) Account(context.Context) (*Account, error) {
	if f.acctErr != nil {
		return nil, f.acctErr
	}
	return &f.acct, nil
}

func (f *fakeHost) Upload(_ context.Context, _, remoteName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, remoteName)
	return "https://host.example/" + remoteName, nil
}

func (f *fakeHost) StartChunked(_ context.Context, _ string, _ int64) (string, error) {
	return "session-1", nil
}

func (f *fakeHost) UploadChunk(_ context.Context, _ string, index int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunkCalls == nil {
		f.chunkCalls = make(map[int]int)
	}
	f.chunkCalls[index]++
	if err := f.chunkErrs[index]; err != nil {
		return err
	}
	if f.chunkFails[index] > 0 {
		f.chunkFails[index]--
		return errors.New("transient chunk failure")
	}
	if f.chunkSizes == nil {
		f.chunkSizes = make(map[int]int)
	}
	f.chunkSizes[index] = len(data)
	return nil
}

func (f *fakeHost) FinishChunked(_ context.Context, session string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return "https://host.example/chunked/" + session, nil
}

func roomyAccount() Account {
	return Account{StorageUsed: 0, StorageTotal: 1 << 40}
}

func testPublisher(h Host) *Publisher {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(h, log,
		WithChunking(100, 3),
		WithRetryDelay(time.Millisecond))
}

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mkv")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestPublishSmallFile(t *testing.T) {
	h := &fakeHost{acct: roomyAccount()}
	p := testPublisher(h)
	path := writeFile(t, 80)

	got, err := p.Publish(context.Background(), path, "video.mkv")
	require.NoError(t, err)
	assert.Equal(t, "https://host.example/video.mkv", got.URL)
	assert.Equal(t, int64(80), got.SizeBytes)
	assert.Equal(t, []string{"video.mkv"}, h.uploads)
	assert.Empty(t, h.chunkSizes, "small file must not be chunked")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local file must be deleted after publish")
}

func TestPublishChunked(t *testing.T) {
	h := &fakeHost{acct: roomyAccount()}
	p := testPublisher(h)
	path := writeFile(t, 250)

	got, err := p.Publish(context.Background(), path, "video.mkv")
	require.NoError(t, err)
	assert.Equal(t, "https://host.example/chunked/session-1", got.URL)
	assert.True(t, h.finished)
	assert.Equal(t, map[int]int{0: 100, 1: 100, 2: 50}, h.chunkSizes)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPublishChunkRetries(t *testing.T) {
	h := &fakeHost{
		acct:       roomyAccount(),
		chunkFails: map[int]int{1: 2}, // fails twice, then succeeds
	}
	p := testPublisher(h)
	path := writeFile(t, 250)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.NoError(t, err)
	assert.Equal(t, 100, h.chunkSizes[1])
}

func TestPublishChunkExhaustsRetries(t *testing.T) {
	h := &fakeHost{
		acct:       roomyAccount(),
		chunkFails: map[int]int{1: 100},
	}
	p := testPublisher(h)
	path := writeFile(t, 250)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.Error(t, err)
	assert.False(t, h.finished, "failed upload must not be finalised")

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "local file must be kept on failure")
}

func TestPublishEmptyFile(t *testing.T) {
	h := &fakeHost{acct: roomyAccount()}
	p := testPublisher(h)
	path := writeFile(t, 0)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.ErrorIs(t, err, ErrEmptyFile)
	assert.Empty(t, h.uploads, "empty file must not be uploaded")

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "local file must be kept")
}

func TestPublishFatalChunkErrorNotRetried(t *testing.T) {
	h := &fakeHost{
		acct:      roomyAccount(),
		chunkErrs: map[int]error{1: ErrStorageFull},
	}
	p := testPublisher(h)
	path := writeFile(t, 250)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.ErrorIs(t, err, ErrStorageFull)
	assert.Equal(t, 1, h.chunkCalls[1], "storage exhaustion must not be retried")
	assert.False(t, h.finished)
}

func TestPublishTooLarge(t *testing.T) {
	h := &fakeHost{acct: roomyAccount()}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(h, log, WithMaxFileSize(100))
	path := writeFile(t, 200)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestPublishStorageFull(t *testing.T) {
	h := &fakeHost{acct: Account{StorageUsed: 940, StorageTotal: 1000}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(h, log, WithStoragePercent(90))
	path := writeFile(t, 80)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.ErrorIs(t, err, ErrStorageFull)
}

func TestPublishStorageBudgetRounding(t *testing.T) {
	// 90% of 199 bytes is 179; truncating the total to whole percents
	// first would understate the budget as 90.
	h := &fakeHost{acct: Account{StorageUsed: 0, StorageTotal: 199}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(h, log, WithStoragePercent(90), WithChunking(200, 3))
	path := writeFile(t, 150)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.NoError(t, err)
}

func TestPublishAuthFailure(t *testing.T) {
	h := &fakeHost{acctErr: ErrAuth}
	p := testPublisher(h)
	path := writeFile(t, 80)

	_, err := p.Publish(context.Background(), path, "video.mkv")
	require.ErrorIs(t, err, ErrAuth)
}

func TestHTTPHostAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/account", r.URL.Path)
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"storage_used":42,"storage_total":1000}`))
	}))
	defer srv.Close()

	h := NewHTTPHost(srv.URL, "key123", slog.New(slog.NewTextHandler(io.Discard, nil)))
	acct, err := h.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), acct.StorageUsed)
	assert.Equal(t, int64(1000), acct.StorageTotal)
}

func TestHTTPHostErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusInsufficientStorage, ErrStorageFull},
		{http.StatusBadGateway, ErrHostUnavailable},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		h := NewHTTPHost(srv.URL, "key", slog.New(slog.NewTextHandler(io.Discard, nil)))
		_, err := h.Account(context.Background())
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}
