// Package pipeline orchestrates per-title processing: trailer
// discovery, candidate search and selection, transfer, publish, and
// the media status transitions that record the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vmunix/vidstage/internal/catalog"
	"github.com/vmunix/vidstage/internal/indexer"
	"github.com/vmunix/vidstage/internal/publisher"
	"github.com/vmunix/vidstage/internal/selector"
	"github.com/vmunix/vidstage/internal/trailer"
	"github.com/vmunix/vidstage/internal/transfer"
	"github.com/vmunix/vidstage/pkg/title"
)

// scoreCeiling is the practical maximum a candidate can reach: exact
// title plus top quality tier plus size fitness. Used to map selection
// scores onto the 0-100 confidence column.
const scoreCeiling = 40

// Transferrer acquires content referenced by a magnet link.
type Transferrer interface {
	Acquire(ctx context.Context, magnet, wantTitle string) (*transfer.Result, error)
}

// Uploader publishes a local file to remote hosting.
type Uploader interface {
	Publish(ctx context.Context, localPath, remoteName string) (*publisher.Published, error)
}

// TrailerFinder discovers trailers.
type TrailerFinder interface {
	Find(ctx context.Context, mediaTitle string) (*trailer.Trailer, error)
}

// CandidateSelector picks the best candidate for a title.
type CandidateSelector interface {
	Select(ctx context.Context, candidates []indexer.Candidate, originalTitle, queryTitle string, isSeries bool) (*selector.Scored, error)
}

// Coordinator processes one media entry end to end.
type Coordinator struct {
	store             *catalog.Store
	indexers          []indexer.Indexer
	selector          CandidateSelector
	transferrer       Transferrer
	uploader          Uploader
	trailers          TrailerFinder
	preferredLanguage string
	log               *slog.Logger
}

// NewCoordinator creates a Coordinator. trailers may be nil to disable
// trailer discovery.
func NewCoordinator(
	store *catalog.Store,
	indexers []indexer.Indexer,
	sel CandidateSelector,
	transferrer Transferrer,
	uploader Uploader,
	trailers TrailerFinder,
	preferredLanguage string,
	log *slog.Logger,
) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:             store,
		indexers:          indexers,
		selector:          sel,
		transferrer:       transferrer,
		uploader:          uploader,
		trailers:          trailers,
		preferredLanguage: preferredLanguage,
		log:               log.With("component", "pipeline"),
	}
}

// ProcessMedia runs the per-item algorithm. The returned error means
// the item failed unexpectedly; the caller owns the ERROR transition.
// Expected outcomes (no candidate, no trailer) are not errors.
func (c *Coordinator) ProcessMedia(ctx context.Context, m *catalog.Media) error {
	log := c.log.With("media_id", m.ID, "title", m.Title)

	content, err := c.store.ListForMedia(m.ID)
	if err != nil {
		return fmt.Errorf("list content: %w", err)
	}

	if hasReadyFullContent(content) {
		if m.Status != catalog.StatusReady {
			if err := c.setStatus(m, catalog.StatusReady); err != nil {
				return err
			}
		}
		log.Debug("full content already published, skipping")
		return nil
	}

	hasTrailer := c.ensureTrailer(ctx, m, content, log)

	chosen, err := c.findContent(ctx, m, log)
	if err != nil {
		return err
	}
	if chosen == nil {
		status := catalog.StatusNoVideo
		if hasTrailer {
			status = catalog.StatusTrailer
		}
		if m.Status != status {
			if err := c.setStatus(m, status); err != nil {
				return err
			}
		}
		c.logItem(m, "no qualifying candidate found", "")
		log.Info("no qualifying candidate", "status", status)
		return nil
	}

	res, err := c.transferrer.Acquire(ctx, chosen.Magnet, m.Title)
	if err != nil {
		return fmt.Errorf("acquire %q: %w", chosen.Title, err)
	}

	pub, err := c.uploader.Publish(ctx, res.Path, remoteName(m, res.Path))
	if err != nil {
		return fmt.Errorf("publish %q: %w", res.Path, err)
	}

	record := &catalog.VideoContent{
		MediaID:   m.ID,
		URL:       pub.URL,
		Quality:   string(chosen.Quality),
		Type:      fullContentType(m),
		Format:    strings.TrimPrefix(filepath.Ext(res.Path), "."),
		Status:    catalog.VideoReady,
		Score:     confidence(chosen.Score),
		IsRussian: chosen.Language == "ru",
		Title:     chosen.Title,
		SizeBytes: pub.SizeBytes,
	}
	if err := c.store.ReplaceFullContent(m.ID, record); err != nil {
		return fmt.Errorf("persist content: %w", err)
	}
	if err := c.setStatus(m, catalog.StatusReady); err != nil {
		return err
	}
	c.logItem(m, "full content published", pub.URL)
	log.Info("full content published",
		"url", pub.URL, "quality", chosen.Quality, "size", title.FormatSize(pub.SizeBytes))
	return nil
}

// ensureTrailer runs trailer discovery when the stored trailer is
// missing, invalid, or not in the preferred language. A valid
// preferred-language trailer is never replaced by a weaker find.
// Reports whether the media has a trailer afterwards.
func (c *Coordinator) ensureTrailer(ctx context.Context, m *catalog.Media, content []*catalog.VideoContent, log *slog.Logger) bool {
	if c.trailers == nil {
		return findTrailerRecord(content) != nil
	}

	existing := findTrailerRecord(content)
	existingValid := existing != nil && trailer.Validate(existing.Title, existing.Description)
	existingPreferred := existing != nil && existing.IsRussian == (c.preferredLanguage == "ru")

	if existing != nil && existingValid && existingPreferred {
		return true
	}

	found, err := c.trailers.Find(ctx, m.Title)
	if err != nil {
		// Trailer discovery failing must not fail the whole item.
		log.Warn("trailer discovery failed", "error", err)
		return existing != nil
	}
	if found == nil {
		return existing != nil
	}

	// A preferred-language trailer must not be displaced by one that
	// is not, even when the stored record looks invalid.
	if existing != nil && existingPreferred && !found.IsPreferredLanguage {
		return true
	}

	record := &catalog.VideoContent{
		MediaID:     m.ID,
		URL:         found.URL,
		Quality:     trailerQuality(found.Definition),
		Type:        catalog.VideoTypeTrailer,
		Status:      catalog.VideoReady,
		Score:       found.Confidence,
		IsRussian:   found.IsPreferredLanguage && c.preferredLanguage == "ru",
		Title:       found.Title,
		Description: found.Description,
		Duration:    found.DurationSeconds,
	}
	if err := c.store.ReplaceTrailer(record); err != nil {
		log.Warn("trailer persist failed", "error", err)
		return existing != nil
	}

	if m.Status == catalog.StatusInactive || m.Status == catalog.StatusNoVideo || m.Status == catalog.StatusError {
		if err := c.setStatus(m, catalog.StatusTrailer); err != nil {
			log.Warn("trailer status update failed", "error", err)
		}
	}
	c.logItem(m, "trailer published", found.URL)
	log.Info("trailer published", "url", found.URL, "confidence", found.Confidence)
	return true
}

// findContent queries indexes in order and selects the best candidate.
// The next index is consulted only when the current one yields nothing:
// an error or an empty result falls through, a non-empty result stops
// the scan even if selection later rejects every candidate.
func (c *Coordinator) findContent(ctx context.Context, m *catalog.Media, log *slog.Logger) (*selector.Scored, error) {
	req := indexer.SearchRequest{
		Title:             m.Title,
		AltTitle:          m.OriginalTitle,
		Year:              m.Year,
		PreferredLanguage: c.preferredLanguage,
	}

	var candidates []indexer.Candidate
	for _, ix := range c.indexers {
		found, err := ix.Search(ctx, req)
		if err != nil {
			log.Warn("index search failed", "indexer", ix.Name(), "error", err)
			continue
		}
		if len(found) > 0 {
			candidates = found
			log.Debug("search complete", "indexer", ix.Name(), "candidates", len(candidates))
			break
		}
	}

	originalTitle := m.OriginalTitle
	if originalTitle == "" {
		originalTitle = m.Title
	}
	return c.selector.Select(ctx, candidates, originalTitle, m.Title, m.IsSeries())
}

func (c *Coordinator) setStatus(m *catalog.Media, status catalog.MediaStatus) error {
	if err := c.store.UpdateMediaStatus(m.ID, status); err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	m.Status = status
	return nil
}

func (c *Coordinator) logItem(m *catalog.Media, message, detail string) {
	if err := c.store.AppendLog(fmt.Sprintf("%s: %s", m.Title, message), detail); err != nil {
		c.log.Warn("parser log write failed", "media_id", m.ID, "error", err)
	}
}

func hasReadyFullContent(content []*catalog.VideoContent) bool {
	for _, v := range content {
		if v.IsFull() && v.Status == catalog.VideoReady {
			return true
		}
	}
	return false
}

func findTrailerRecord(content []*catalog.VideoContent) *catalog.VideoContent {
	for _, v := range content {
		if v.Type == catalog.VideoTypeTrailer {
			return v
		}
	}
	return nil
}

func fullContentType(m *catalog.Media) catalog.VideoType {
	if m.IsSeries() {
		return catalog.VideoTypeEpisode
	}
	return catalog.VideoTypeFullMovie
}

func trailerQuality(definition string) string {
	if definition == "hd" {
		return string(title.Quality720p)
	}
	return string(title.Quality480p)
}

// confidence maps a selection score to the 0-100 confidence column.
func confidence(score int) int {
	c := score * 100 / scoreCeiling
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func remoteName(m *catalog.Media, localPath string) string {
	base := title.Clean(m.Title)
	base = strings.ReplaceAll(base, " ", ".")
	if m.Year > 0 {
		base = fmt.Sprintf("%s.%d", base, m.Year)
	}
	return base + strings.ToLower(filepath.Ext(localPath))
}
