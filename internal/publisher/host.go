package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HTTPHost is the hosting service's JSON API client.
type HTTPHost struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// HostOption configures an HTTPHost.
type HostOption func(*HTTPHost)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) HostOption {
	return func(h *HTTPHost) {
		h.httpClient = c
	}
}

// NewHTTPHost creates a hosting API client.
func NewHTTPHost(baseURL, apiKey string, log *slog.Logger, opts ...HostOption) *HTTPHost {
	if log == nil {
		log = slog.Default()
	}
	h := &HTTPHost{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.With("component", "hosting"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // chunk uploads are slow on purpose
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type accountResponse struct {
	StorageUsed  int64 `json:"storage_used"`
	StorageTotal int64 `json:"storage_total"`
}

// Account fetches the account's storage usage.
func (h *HTTPHost) Account(ctx context.Context) (*Account, error) {
	var resp accountResponse
	if err := h.doJSON(ctx, http.MethodGet, "/api/account", nil, "", &resp); err != nil {
		return nil, err
	}
	return &Account{StorageUsed: resp.StorageUsed, StorageTotal: resp.StorageTotal}, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends a whole file as one multipart request.
func (h *HTTPHost) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(remoteName))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	var resp uploadResponse
	if err := h.doJSON(ctx, http.MethodPost, "/api/upload?name="+remoteName,
		&body, mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

type startChunkedResponse struct {
	Session string `json:"session"`
}

// StartChunked opens a chunked upload session.
func (h *HTTPHost) StartChunked(ctx context.Context, remoteName string, size int64) (string, error) {
	path := "/api/upload/chunked?name=" + remoteName + "&size=" + strconv.FormatInt(size, 10)
	var resp startChunkedResponse
	if err := h.doJSON(ctx, http.MethodPost, path, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.Session, nil
}

// UploadChunk sends one chunk of an open session.
func (h *HTTPHost) UploadChunk(ctx context.Context, session string, index int, data []byte) error {
	path := "/api/upload/chunked/" + session + "/" + strconv.Itoa(index)
	return h.doJSON(ctx, http.MethodPut, path, bytes.NewReader(data), "application/octet-stream", nil)
}

// FinishChunked closes a session and returns the remote URL.
func (h *HTTPHost) FinishChunked(ctx context.Context, session string) (string, error) {
	var resp uploadResponse
	if err := h.doJSON(ctx, http.MethodPost, "/api/upload/chunked/"+session+"/finish", nil, "", &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// doJSON performs an API request, mapping auth and storage failures to
// their sentinels.
func (h *HTTPHost) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Debug("api request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuth
	case resp.StatusCode == http.StatusInsufficientStorage:
		return ErrStorageFull
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrHostUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	h.log.Debug("api request complete", "path", path, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
