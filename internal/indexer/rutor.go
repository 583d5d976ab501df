package indexer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vmunix/vidstage/internal/fetch"
	"github.com/vmunix/vidstage/pkg/title"
)

// sizeTextRegex matches human-readable sizes in result cells,
// Latin or Cyrillic units.
var sizeTextRegex = regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s*(?:[KMGT]i?B|[КМГТ]б)`)

// Rutor scrapes a rutor-style index: Cyrillic-friendly, tabular result
// markup with the magnet link directly in the row.
type Rutor struct {
	name    string
	baseURL string
	client  *fetch.Client
	log     *slog.Logger
}

// NewRutor creates a rutor-style adapter.
func NewRutor(name, baseURL string, client *fetch.Client, log *slog.Logger) *Rutor {
	if log == nil {
		log = slog.Default()
	}
	return &Rutor{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log.With("indexer", name),
	}
}

// Name identifies the index.
func (r *Rutor) Name() string { return r.name }

// Search runs every query variant against the index and returns the
// deduplicated valid candidates.
func (r *Rutor) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	var all []Candidate
	for _, q := range BuildQueries(req) {
		page, err := r.client.Get(ctx, r.searchURL(q))
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		found, err := r.parseResults(page)
		if err != nil {
			return nil, fmt.Errorf("parse results for %q: %w", q, err)
		}
		all = append(all, found...)
		// A productive variant is enough; later variants mostly repeat it.
		if len(all) >= 20 {
			break
		}
	}
	all = dedupeByMagnet(all)
	r.log.Debug("search finished", "title", req.Title, "candidates", len(all))
	return all, nil
}

func (r *Rutor) searchURL(query string) string {
	// category 0, no filters, 100 results, sorted by seeders
	return fmt.Sprintf("%s/search/0/0/100/2/%s", r.baseURL, url.PathEscape(query))
}

// parseResults extracts candidates from a search results page. Rows that
// no longer match the expected markup are skipped, not fatal: index
// markup drifts and the adapter degrades to fewer results.
func (r *Rutor) parseResults(page []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var candidates []Candidate
	doc.Find("table#index tr.gai, table#index tr.tum").Each(func(_ int, row *goquery.Selection) {
		c, ok := r.parseRow(row)
		if !ok {
			return
		}
		if c.Valid() {
			candidates = append(candidates, c)
		}
	})
	return candidates, nil
}

func (r *Rutor) parseRow(row *goquery.Selection) (Candidate, bool) {
	magnet, ok := row.Find("a[href^='magnet:']").Attr("href")
	if !ok {
		return Candidate{}, false
	}

	// The detail link is the last anchor in the name cell; its text is
	// the release title.
	name := strings.TrimSpace(row.Find("a[href^='/torrent/']").Last().Text())
	if name == "" {
		return Candidate{}, false
	}

	sizeText := ""
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if sizeText != "" {
			return
		}
		if m := sizeTextRegex.FindString(cell.Text()); m != "" {
			sizeText = m
		}
	})

	seeders := 0
	if s := strings.TrimSpace(row.Find("span.green").First().Text()); s != "" {
		seeders, _ = strconv.Atoi(strings.TrimFunc(s, func(r rune) bool {
			return r < '0' || r > '9'
		}))
	}

	return Candidate{
		Title:     name,
		Magnet:    magnet,
		SizeBytes: title.ParseSize(sizeText),
		Seeders:   seeders,
		Quality:   title.ParseQuality(name),
		Language:  DetectLanguage(name),
		Indexer:   r.name,
	}, true
}
