package indexer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/vmunix/vidstage/internal/fetch"
	"github.com/vmunix/vidstage/pkg/title"
)

// detailFollowLimit bounds how many detail pages one search may fetch.
// Every detail fetch costs a paced request against a hostile site.
const detailFollowLimit = 8

// TorrentFind scrapes a 1337x-style index where the magnet locator lives
// on a per-result detail page, not in the search results row.
type TorrentFind struct {
	name    string
	baseURL string
	client  *fetch.Client
	log     *slog.Logger
}

// NewTorrentFind creates a torrentfind-style adapter.
func NewTorrentFind(name, baseURL string, client *fetch.Client, log *slog.Logger) *TorrentFind {
	if log == nil {
		log = slog.Default()
	}
	return &TorrentFind{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log.With("indexer", name),
	}
}

// Name identifies the index.
func (t *TorrentFind) Name() string { return t.name }

// rowResult is a parsed search row before its magnet is resolved.
type rowResult struct {
	title     string
	detailURL string
	sizeBytes int64
	seeders   int
}

// Search runs the query variants, then resolves magnets by following each
// result's detail page, bounded by detailFollowLimit.
func (t *TorrentFind) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	var rows []rowResult
	for _, q := range BuildQueries(req) {
		page, err := t.client.Get(ctx, t.searchURL(q))
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		found, err := t.parseResults(page)
		if err != nil {
			return nil, fmt.Errorf("parse results for %q: %w", q, err)
		}
		rows = append(rows, found...)
		if len(rows) >= detailFollowLimit {
			break
		}
	}

	var candidates []Candidate
	for i, row := range rows {
		if i >= detailFollowLimit {
			break
		}
		magnet, err := t.resolveMagnet(ctx, row.detailURL)
		if err != nil {
			// One broken detail page should not sink the whole search.
			t.log.Warn("magnet resolution failed", "url", row.detailURL, "error", err)
			continue
		}
		c := Candidate{
			Title:     row.title,
			Magnet:    magnet,
			SizeBytes: row.sizeBytes,
			Seeders:   row.seeders,
			Quality:   title.ParseQuality(row.title),
			Language:  DetectLanguage(row.title),
			Indexer:   t.name,
		}
		if c.Valid() {
			candidates = append(candidates, c)
		}
	}
	candidates = dedupeByMagnet(candidates)
	t.log.Debug("search finished", "title", req.Title, "candidates", len(candidates))
	return candidates, nil
}

func (t *TorrentFind) searchURL(query string) string {
	return fmt.Sprintf("%s/search/%s/1/", t.baseURL, url.PathEscape(query))
}

func (t *TorrentFind) parseResults(page []byte) ([]rowResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []rowResult
	doc.Find("table.table-list tbody tr").Each(func(_ int, row *goquery.Selection) {
		nameLink := row.Find("td.name a").Last()
		href, ok := nameLink.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(nameLink.Text())
		if name == "" {
			return
		}

		seeders, _ := strconv.Atoi(strings.TrimSpace(row.Find("td.seeds").First().Text()))

		// The size cell nests the leecher count in a child element; take
		// only the direct text.
		sizeText := strings.TrimSpace(ownText(row.Find("td.size").First()))

		rows = append(rows, rowResult{
			title:     name,
			detailURL: t.baseURL + href,
			sizeBytes: title.ParseSize(sizeText),
			seeders:   seeders,
		})
	})
	return rows, nil
}

// resolveMagnet fetches a detail page and extracts its magnet link.
func (t *TorrentFind) resolveMagnet(ctx context.Context, detailURL string) (string, error) {
	page, err := t.client.Get(ctx, detailURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	magnet, ok := doc.Find("a[href^='magnet:']").First().Attr("href")
	if !ok {
		return "", fmt.Errorf("no magnet link on detail page")
	}
	return magnet, nil
}

// ownText returns the selection's text excluding child elements.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				b.WriteString(child.Data)
			}
		}
	}
	return b.String()
}
