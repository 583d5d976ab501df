package trailer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SearchResult is one video returned by the search endpoint.
type SearchResult struct {
	ID          string
	Title       string
	Description string
}

// VideoDetails is the full record for one video.
type VideoDetails struct {
	ID              string
	Title           string
	Description     string
	DurationSeconds int
	Definition      string // "hd" or "sd"
	Public          bool
}

// Provider is the quota-limited video-search API.
type Provider interface {
	Search(ctx context.Context, key, query string) ([]SearchResult, error)
	Details(ctx context.Context, key, videoID string) (*VideoDetails, error)
}

const defaultProviderURL = "https://www.googleapis.com/youtube/v3"

// YouTubeProvider implements Provider against the YouTube Data API.
type YouTubeProvider struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// ProviderOption configures a YouTubeProvider.
type ProviderOption func(*YouTubeProvider)

// WithProviderURL overrides the API base URL.
func WithProviderURL(u string) ProviderOption {
	return func(p *YouTubeProvider) {
		p.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithProviderHTTPClient overrides the HTTP client.
func WithProviderHTTPClient(c *http.Client) ProviderOption {
	return func(p *YouTubeProvider) {
		p.httpClient = c
	}
}

// NewYouTubeProvider creates a provider client.
func NewYouTubeProvider(log *slog.Logger, opts ...ProviderOption) *YouTubeProvider {
	if log == nil {
		log = slog.Default()
	}
	p := &YouTubeProvider{
		baseURL: defaultProviderURL,
		log:     log.With("component", "video-search"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search queries the search endpoint with the given credential.
func (p *YouTubeProvider) Search(ctx context.Context, key, query string) ([]SearchResult, error) {
	params := url.Values{
		"key":        {key},
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {"10"},
		"q":          {query},
	}

	var resp searchResponse
	if err := p.doRequest(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, SearchResult{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
		})
	}
	return results, nil
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration   string `json:"duration"`
			Definition string `json:"definition"`
		} `json:"contentDetails"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

// Details fetches the full record for one video. Returns nil when the
// video no longer exists.
func (p *YouTubeProvider) Details(ctx context.Context, key, videoID string) (*VideoDetails, error) {
	params := url.Values{
		"key":  {key},
		"part": {"snippet,contentDetails,status"},
		"id":   {videoID},
	}

	var resp videosResponse
	if err := p.doRequest(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	return &VideoDetails{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		DurationSeconds: parseISODuration(item.ContentDetails.Duration),
		Definition:      item.ContentDetails.Definition,
		Public:          item.Status.PrivacyStatus == "public",
	}, nil
}

type apiError struct {
	Error struct {
		Code   int `json:"code"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// doRequest performs an API call and maps provider error reasons to
// the package sentinels.
func (p *YouTubeProvider) doRequest(ctx context.Context, path string, params url.Values, result any) error {
	reqURL := p.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return p.mapError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p *YouTubeProvider) mapError(status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	for _, e := range ae.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return ErrKeyQuotaExceeded
		case "keyInvalid", "badRequest", "accessNotConfigured", "forbidden":
			return fmt.Errorf("%w: %s", ErrInvalidCredential, e.Reason)
		}
	}

	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return ErrKeyQuotaExceeded
	case http.StatusBadRequest, http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", ErrInvalidCredential, status)
	}
	return fmt.Errorf("unexpected status: %d", status)
}

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration ("PT2M10S") to
// seconds, returning 0 on malformed input.
func parseISODuration(s string) int {
	m := isoDurationRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])
	return ((days*24+hours)*60+minutes)*60 + seconds
}
