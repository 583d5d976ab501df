// Package selector scores and ranks transfer candidates, picking the one
// best worth downloading for a title.
package selector

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/vidstage/internal/indexer"
	"github.com/vmunix/vidstage/internal/metadata"
	"github.com/vmunix/vidstage/pkg/title"
)

// Scoring weights. Title identity dominates, quality tier and size
// fitness refine, seeders only break ties.
const (
	exactTitleScore   = 30
	overlapTitleScore = 20
	extraWordPenalty  = 3
	unwantedPenalty   = 10
	sizeFitnessBonus  = 4
)

// maxCandidateSize is the hard ceiling for non-series transfers. Larger
// files are excluded to bound remote-publish cost.
const maxCandidateSize = 5 << 30

// unwantedKeywords mark releases that are not the plain feature cut.
var unwantedKeywords = []string{
	"collection", "extended", "anthology", "trilogy", "dilogy",
	"сборник", "коллекция", "антология", "трилогия",
}

// MetadataAPI is the release-metadata lookup the selector verifies
// titles against.
type MetadataAPI interface {
	SearchByTitle(ctx context.Context, query string, year int) ([]metadata.Release, error)
}

// Scored is a candidate with its computed selection score.
type Scored struct {
	indexer.Candidate
	Score int
}

// Selector ranks candidates.
type Selector struct {
	meta MetadataAPI // nil disables metadata verification
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Selector. meta may be nil to skip release verification.
func New(meta MetadataAPI, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{
		meta: meta,
		log:  log.With("component", "selector"),
		now:  time.Now,
	}
}

// Select returns the best candidate, or nil when none qualifies.
// A nil result is a legitimate "nothing qualifying found" outcome;
// errors are reserved for genuine faults.
func (s *Selector) Select(ctx context.Context, candidates []indexer.Candidate, originalTitle, queryTitle string, isSeries bool) (*Scored, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	metaYear := 0
	if s.meta != nil {
		releases, err := s.meta.SearchByTitle(ctx, queryTitle, 0)
		if err != nil {
			// Verification is advisory; selection proceeds without it.
			s.log.Warn("metadata lookup failed", "title", queryTitle, "error", err)
		} else if rel := bestRelease(releases, queryTitle, originalTitle); rel != nil {
			if rel.ReleaseDate.After(s.now()) {
				// Not released yet: every candidate is a false positive.
				s.log.Info("release date in the future, rejecting all candidates",
					"title", queryTitle, "release_date", rel.ReleaseDate)
				return nil, nil
			}
			metaYear = rel.Year()
		}
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		if !isSeries && c.SizeBytes > maxCandidateSize {
			continue
		}
		if metaYear > 0 {
			if y := extractYear(c.Title); y > 0 && (y < metaYear-1 || y > metaYear+1) {
				continue
			}
		}
		scored = append(scored, Scored{
			Candidate: c,
			Score:     ScoreCandidate(c, originalTitle, queryTitle),
		})
	}
	if len(scored) == 0 {
		return nil, nil
	}

	// Total order: score, then seeders, then smaller size, then title.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Seeders != scored[j].Seeders {
			return scored[i].Seeders > scored[j].Seeders
		}
		if scored[i].SizeBytes != scored[j].SizeBytes {
			return scored[i].SizeBytes < scored[j].SizeBytes
		}
		return scored[i].Title < scored[j].Title
	})

	best := scored[0]
	s.log.Debug("candidate selected",
		"title", best.Title, "score", best.Score,
		"quality", best.Quality, "seeders", best.Seeders,
		"size", title.FormatSize(best.SizeBytes))
	return &best, nil
}

// ScoreCandidate computes the full selection score of one candidate.
func ScoreCandidate(c indexer.Candidate, originalTitle, queryTitle string) int {
	score := ScoreTitle(c.Title, originalTitle, queryTitle)
	score += c.Quality.Score()
	if low, high, ok := c.Quality.ExpectedSizeRange(); ok {
		if c.SizeBytes >= low && c.SizeBytes <= high {
			score += sizeFitnessBonus
		}
	}
	return score
}

// ScoreTitle scores how well a candidate's release title matches the
// wanted title. Release titles carry several slash-delimited variants
// ("Брат / Brother (1997) ..."); the best-scoring variant wins.
func ScoreTitle(candidateTitle, originalTitle, queryTitle string) int {
	targets := []string{queryTitle}
	if originalTitle != "" && !strings.EqualFold(originalTitle, queryTitle) {
		targets = append(targets, originalTitle)
	}

	best := 0
	first := true
	for _, variant := range titleVariants(candidateTitle) {
		for _, target := range targets {
			if v := scoreVariant(variant, target); first || v > best {
				best = v
				first = false
			}
		}
	}

	for _, kw := range unwantedKeywords {
		if strings.Contains(strings.ToLower(candidateTitle), kw) {
			best -= unwantedPenalty
		}
	}
	return best
}

func scoreVariant(variant, target string) int {
	cleanVariant := title.Clean(variant)
	cleanTarget := title.Clean(target)
	if cleanVariant == "" || cleanTarget == "" {
		return 0
	}
	if cleanVariant == cleanTarget {
		return exactTitleScore
	}

	overlap := title.WordOverlap(cleanTarget, cleanVariant)
	score := int(overlap * overlapTitleScore)

	targetWords := make(map[string]bool)
	for _, w := range strings.Fields(cleanTarget) {
		targetWords[w] = true
	}
	extra := 0
	for _, w := range strings.Fields(cleanVariant) {
		if !targetWords[w] {
			extra++
		}
	}
	return score - extra*extraWordPenalty
}

// titleVariants splits a release title into its slash/dash-delimited
// name variants, with the year-and-attributes tail stripped.
func titleVariants(s string) []string {
	// Names end where the bracketed year or attribute list begins.
	if i := strings.IndexAny(s, "(["); i > 0 {
		s = s[:i]
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '|'
	})
	variants := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			variants = append(variants, p)
		}
	}
	if len(variants) == 0 {
		variants = append(variants, s)
	}
	return variants
}

var parenYearRegex = regexp.MustCompile(`\((\d{4})\)`)
var bareYearRegex = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// extractYear pulls the release year from a candidate title. Bracketed
// years win over bare ones; returns 0 when no plausible year appears.
func extractYear(s string) int {
	if m := parenYearRegex.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	matches := bareYearRegex.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0
	}
	y, _ := strconv.Atoi(matches[len(matches)-1])
	return y
}

// bestRelease picks the metadata record whose title best matches the
// wanted title, preferring earlier (canonical) results on ties.
func bestRelease(releases []metadata.Release, queryTitle, originalTitle string) *metadata.Release {
	var best *metadata.Release
	bestOverlap := 0.0
	for i := range releases {
		r := &releases[i]
		overlap := title.WordOverlap(queryTitle, r.Title)
		if originalTitle != "" {
			if o := title.WordOverlap(originalTitle, r.OriginalTitle); o > overlap {
				overlap = o
			}
		}
		if best == nil || overlap > bestOverlap {
			best = r
			bestOverlap = overlap
		}
	}
	return best
}
