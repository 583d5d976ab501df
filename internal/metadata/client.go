// Package metadata looks up externally-verified release metadata
// (title, original title, release date) used to validate candidates.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.themoviedb.org"
const defaultCacheTTL = 24 * time.Hour

// ErrUnauthorized is returned when the metadata API key is rejected.
var ErrUnauthorized = errors.New("metadata api key rejected")

// Release is one verified release record.
type Release struct {
	Title         string
	OriginalTitle string
	ReleaseDate   time.Time // zero when unknown
}

// Year returns the release year, or 0 when the date is unknown.
func (r Release) Year() int {
	if r.ReleaseDate.IsZero() {
		return 0
	}
	return r.ReleaseDate.Year()
}

// Client is a TMDB-style metadata API client with response caching.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets the cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = newCache(ttl) }
}

// NewClient creates a metadata client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: newCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Results []struct {
		Title         string `json:"title"`
		OriginalTitle string `json:"original_title"`
		ReleaseDate   string `json:"release_date"`
	} `json:"results"`
}

// SearchByTitle looks up releases matching the query. Year narrows the
// search when nonzero. Results are cached for the client's TTL.
func (c *Client) SearchByTitle(ctx context.Context, query string, year int) ([]Release, error) {
	key := query + "|" + strconv.Itoa(year)
	if releases, ok := c.cache.get(key); ok {
		return releases, nil
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	reqURL := fmt.Sprintf("%s/3/search/movie?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata API error: %s", resp.Status)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	releases := make([]Release, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		releases = append(releases, Release{
			Title:         r.Title,
			OriginalTitle: r.OriginalTitle,
			ReleaseDate:   parseDate(r.ReleaseDate),
		})
	}

	c.cache.set(key, releases)
	return releases, nil
}

// parseDate parses a date string, returning zero time on failure.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
