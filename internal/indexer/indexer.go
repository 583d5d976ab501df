// Package indexer queries torrent index sites for transfer candidates.
// Indexes expose no API; adapters scrape their HTML search and detail
// pages and normalize rows into candidates.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmunix/vidstage/pkg/title"
)

// Candidate is one unverified transfer reference found on an index.
// Ephemeral: produced by adapters, consumed by the selector, never persisted.
type Candidate struct {
	Title     string
	Magnet    string
	SizeBytes int64
	Seeders   int
	Quality   title.Quality
	Language  string // "ru", "en", or "" when undetected
	Indexer   string
}

// Valid reports whether the candidate is usable for transfer: it must
// carry a resolvable locator and a nonzero size.
func (c Candidate) Valid() bool {
	return c.Magnet != "" && c.SizeBytes > 0
}

// SearchRequest describes one title lookup.
type SearchRequest struct {
	Title             string
	AltTitle          string // optional alternate/original title
	Year              int    // 0 when unknown
	PreferredLanguage string
}

// Indexer searches one index site for candidates.
type Indexer interface {
	// Name identifies the index in logs and candidates.
	Name() string
	// Search returns normalized candidates for the request. Markup drift
	// degrades to zero results, not an error.
	Search(ctx context.Context, req SearchRequest) ([]Candidate, error)
}

// BuildQueries returns the query variants for a request: the raw title,
// the alternate title, the combined form, a transliteration when the
// title carries non-Latin script, and title plus release year.
func BuildQueries(req SearchRequest) []string {
	var queries []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" || seen[strings.ToLower(q)] {
			return
		}
		seen[strings.ToLower(q)] = true
		queries = append(queries, q)
	}

	add(req.Title)
	if req.AltTitle != "" && !strings.EqualFold(req.AltTitle, req.Title) {
		add(req.AltTitle)
		add(req.Title + " / " + req.AltTitle)
	}
	if title.ContainsCyrillic(req.Title) {
		add(title.Transliterate(req.Title))
	}
	if req.Year > 0 {
		add(fmt.Sprintf("%s %d", req.Title, req.Year))
	}
	return queries
}

// russianMarkers are release-title keywords indicating a Russian audio track.
var russianMarkers = []string{
	"rus", "дубляж", "дублированный", "лицензия", "перевод", "озвучка",
}

// DetectLanguage infers the audio language of a release from its title
// text: non-Latin script or known keywords mean Russian.
func DetectLanguage(s string) string {
	if title.ContainsCyrillic(s) {
		return "ru"
	}
	lower := strings.ToLower(s)
	for _, m := range russianMarkers {
		if strings.Contains(lower, m) {
			return "ru"
		}
	}
	return "en"
}

// dedupeByMagnet drops candidates whose locator was already seen,
// keeping the first occurrence.
func dedupeByMagnet(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.Magnet] {
			continue
		}
		seen[c.Magnet] = true
		out = append(out, c)
	}
	return out
}
