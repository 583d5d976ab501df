// Package trailer finds an official trailer for a title through a
// quota-limited video-search API, rotating credentials as quota burns.
package trailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vmunix/vidstage/pkg/title"
)

const (
	// minSearchScore is the lexical score a search result must reach to
	// be worth a details call.
	minSearchScore = 4

	// detailsPerQuery bounds quota spend on details lookups.
	detailsPerQuery = 3

	minDurationSeconds = 30
	maxDurationSeconds = 300
)

// disqualifiers mark videos that are not trailers regardless of the
// rest of their text.
var disqualifiers = map[string]int{
	"gameplay":    -5,
	"walkthrough": -5,
	"reaction":    -5,
	"review":      -4,
	"fan-made":    -3,
	"fan made":    -3,
	"cover":       -2,
}

// trailerKeywords are the literal markers a video's own record must
// carry to pass eligibility.
var trailerKeywords = []string{"trailer", "teaser", "трейлер", "тизер"}

// Trailer is a discovered, validated trailer.
type Trailer struct {
	URL                 string
	Title               string
	Description         string
	DurationSeconds     int
	Definition          string
	Confidence          int // 0..100
	IsPreferredLanguage bool
}

// Finder discovers trailers.
type Finder struct {
	pool              *KeyPool
	provider          Provider
	cache             *cache
	preferredLanguage string
	log               *slog.Logger
}

// NewFinder creates a Finder. preferredLanguage is an ISO 639-1 code.
func NewFinder(pool *KeyPool, provider Provider, preferredLanguage string, log *slog.Logger) *Finder {
	if log == nil {
		log = slog.Default()
	}
	return &Finder{
		pool:              pool,
		provider:          provider,
		cache:             newCache(defaultCacheTTL),
		preferredLanguage: preferredLanguage,
		log:               log.With("component", "trailer"),
	}
}

// Find searches for an official trailer. A nil result with nil error
// means no qualifying trailer exists; errors are pool exhaustion,
// invalid credentials, or provider faults.
func (f *Finder) Find(ctx context.Context, mediaTitle string) (*Trailer, error) {
	queries := []string{
		mediaTitle + " trailer official movie",
		mediaTitle + " trailer movie",
	}

	for _, query := range queries {
		results, err := f.search(ctx, query)
		if err != nil {
			return nil, err
		}

		scored := scoreResults(results, query)
		if len(scored) == 0 {
			continue
		}

		limit := min(len(scored), detailsPerQuery)
		for _, r := range scored[:limit] {
			det, err := f.details(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			if det == nil || !eligible(det) {
				continue
			}
			t := f.build(det)
			f.log.Info("trailer found",
				"title", mediaTitle, "video", det.Title,
				"duration_s", det.DurationSeconds, "confidence", t.Confidence)
			return t, nil
		}
	}

	f.log.Debug("no trailer found", "title", mediaTitle)
	return nil, nil
}

// Validate re-checks a stored trailer record against the lexical
// heuristic. Used to decide whether a stored trailer is worth keeping.
func Validate(videoTitle, description string) bool {
	text := strings.ToLower(videoTitle + " " + description)
	for kw := range disqualifiers {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, kw := range trailerKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// search issues one search call, rotating credentials on quota
// responses and caching by query.
func (f *Finder) search(ctx context.Context, query string) ([]SearchResult, error) {
	if v, ok := f.cache.get("search|" + query); ok {
		return v.([]SearchResult), nil
	}

	for {
		key, err := f.pool.Available()
		if err != nil {
			return nil, err
		}
		f.pool.Spend(key)

		results, err := f.provider.Search(ctx, key, query)
		if errors.Is(err, ErrKeyQuotaExceeded) {
			f.log.Info("credential exhausted, rotating")
			f.pool.MarkExhausted(key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}

		f.cache.set("search|"+query, results)
		return results, nil
	}
}

func (f *Finder) details(ctx context.Context, videoID string) (*VideoDetails, error) {
	if v, ok := f.cache.get("details|" + videoID); ok {
		return v.(*VideoDetails), nil
	}

	for {
		key, err := f.pool.Available()
		if err != nil {
			return nil, err
		}
		f.pool.Spend(key)

		det, err := f.provider.Details(ctx, key, videoID)
		if errors.Is(err, ErrKeyQuotaExceeded) {
			f.log.Info("credential exhausted, rotating")
			f.pool.MarkExhausted(key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("video details %s: %w", videoID, err)
		}

		f.cache.set("details|"+videoID, det)
		return det, nil
	}
}

type scoredResult struct {
	SearchResult
	score int
}

// scoreResults applies the lexical heuristic and keeps results at or
// above the threshold, highest first.
func scoreResults(results []SearchResult, query string) []scoredResult {
	words := significantWords(query)

	scored := make([]scoredResult, 0, len(results))
	for _, r := range results {
		s := scoreResult(r, words)
		if s >= minSearchScore {
			scored = append(scored, scoredResult{SearchResult: r, score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

func scoreResult(r SearchResult, queryWords []string) int {
	titleText := strings.ToLower(r.Title)
	descText := strings.ToLower(r.Description)

	score := 0
	if strings.Contains(titleText, "trailer") {
		score += 3
	}
	if strings.Contains(titleText, "official") {
		score += 2
	}
	if strings.Contains(titleText, "teaser") {
		score += 2
	}
	if strings.Contains(descText, "trailer") {
		score++
	}
	for _, w := range queryWords {
		if strings.Contains(titleText, w) || strings.Contains(descText, w) {
			score += 2
		}
	}
	for kw, penalty := range disqualifiers {
		if strings.Contains(titleText, kw) || strings.Contains(descText, kw) {
			score += penalty
		}
	}
	return score
}

// significantWords extracts the query words worth matching, skipping
// the query scaffolding and short words.
func significantWords(query string) []string {
	skip := map[string]bool{"trailer": true, "official": true, "movie": true}
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) > 2 && !skip[w] {
			words = append(words, w)
		}
	}
	return words
}

// eligible enforces the hard requirements a chosen video must meet.
func eligible(d *VideoDetails) bool {
	if !d.Public {
		return false
	}
	if d.DurationSeconds <= minDurationSeconds || d.DurationSeconds >= maxDurationSeconds {
		return false
	}
	text := strings.ToLower(d.Title + " " + d.Description)
	for _, kw := range trailerKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// build computes the confidence score and language flag.
func (f *Finder) build(d *VideoDetails) *Trailer {
	confidence := 50
	if d.Definition == "hd" {
		confidence += 15
	}
	if d.DurationSeconds >= 60 && d.DurationSeconds <= 180 {
		confidence += 15
	}
	if strings.Contains(strings.ToLower(d.Title), "official") {
		confidence += 10
	}

	lang := "en"
	if title.ContainsCyrillic(d.Title + " " + d.Description) {
		lang = "ru"
	}
	preferred := lang == f.preferredLanguage
	if preferred {
		confidence += 10
	}
	if confidence > 100 {
		confidence = 100
	}

	return &Trailer{
		URL:                 "https://www.youtube.com/watch?v=" + d.ID,
		Title:               d.Title,
		Description:         d.Description,
		DurationSeconds:     d.DurationSeconds,
		Definition:          d.Definition,
		Confidence:          confidence,
		IsPreferredLanguage: preferred,
	}
}
