// Package fetch provides the shared HTTP client for scraping torrent
// indexes. It rotates browser identity headers, paces requests per host,
// detects anti-automation blocks, and retries with exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
)

// maxBodyBytes caps how much of a scraped page is read into memory.
const maxBodyBytes = 8 << 20

// userAgents is the rotating pool of browser identities. Indexes block
// obvious non-browser clients, so every request claims to be a desktop
// browser.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.9,ru;q=0.8",
	"ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"en-GB,en;q=0.9,en-US;q=0.8",
}

// blockMarkers are body substrings that identify an anti-bot interstitial
// served with HTTP 200.
var blockMarkers = []string{
	"captcha",
	"cloudflare",
	"ddos-guard",
	"ddos guard",
	"access denied",
	"are you human",
	"checking your browser",
}

// Client fetches pages with a rotating browser identity.
type Client struct {
	httpClient  *http.Client
	minInterval time.Duration
	maxAttempts uint
	baseDelay   time.Duration
	blockDelay  time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	lastHit  map[string]time.Time
	rng      *rand.Rand
	nowFn    func() time.Time
	sleepCtx func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMinInterval sets the minimum delay between requests to one host.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}

// WithRetry overrides the retry policy. Zero values keep the defaults.
func WithRetry(attempts uint, baseDelay, blockDelay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
		if blockDelay > 0 {
			c.blockDelay = blockDelay
		}
	}
}

// NewClient creates a scraping client.
func NewClient(log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		minInterval: 2 * time.Second,
		maxAttempts: 4,
		baseDelay:   time.Second,
		blockDelay:  15 * time.Second,
		log:         log.With("component", "fetch"),
		lastHit:     make(map[string]time.Time),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		nowFn:       time.Now,
		sleepCtx:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a page and returns its body. Blocks and transient failures
// are retried with backoff; a block retry waits longer and uses a fresh
// browser identity since headers are re-rolled per attempt.
func (c *Client) Get(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			var err error
			body, err = c.fetchOnce(ctx, pageURL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrBlocked) || errors.Is(err, ErrUnavailable)
		}),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			base := c.baseDelay
			if errors.Is(err, ErrBlocked) {
				base = c.blockDelay
			}
			// Exponential backoff plus jitter of up to one base delay.
			backoff := base << n
			c.mu.Lock()
			jitter := time.Duration(c.rng.Int63n(int64(base)))
			c.mu.Unlock()
			return backoff + jitter
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("fetch retry", "url", pageURL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string) ([]byte, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := c.pace(ctx, parsed.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.applyIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if marker := findBlockMarker(body); marker != "" {
		return nil, fmt.Errorf("%w: body contains %q", ErrBlocked, marker)
	}
	return body, nil
}

// applyIdentity sets a randomized browser header set on the request.
func (c *Client) applyIdentity(req *http.Request) {
	c.mu.Lock()
	ua := userAgents[c.rng.Intn(len(userAgents))]
	lang := acceptLanguages[c.rng.Intn(len(acceptLanguages))]
	c.mu.Unlock()

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", lang)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "no-cache")
}

// pace enforces the minimum per-host request interval.
func (c *Client) pace(ctx context.Context, host string) error {
	c.mu.Lock()
	now := c.nowFn()
	wait := time.Duration(0)
	if last, ok := c.lastHit[host]; ok {
		if elapsed := now.Sub(last); elapsed < c.minInterval {
			wait = c.minInterval - elapsed
		}
	}
	c.lastHit[host] = now.Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return c.sleepCtx(ctx, wait)
}

func findBlockMarker(body []byte) string {
	lower := strings.ToLower(string(body))
	for _, m := range blockMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
