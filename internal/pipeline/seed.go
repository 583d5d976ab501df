package pipeline

import (
	"fmt"

	"github.com/vmunix/vidstage/internal/catalog"
)

// SeedEntry is one title to add to the catalog.
type SeedEntry struct {
	Title         string
	OriginalTitle string
	Year          int
	Type          catalog.MediaType
}

// Seed inserts entries not already present, matched by title and year.
// Returns how many were added.
func Seed(store *catalog.Store, entries []SeedEntry) (int, error) {
	added := 0
	for _, e := range entries {
		if e.Title == "" {
			continue
		}
		existing, err := store.GetMediaByTitleYear(e.Title, e.Year)
		if err != nil {
			return added, fmt.Errorf("check %q: %w", e.Title, err)
		}
		if existing != nil {
			continue
		}

		mediaType := e.Type
		if mediaType == "" {
			mediaType = catalog.MediaTypeMovie
		}
		m := &catalog.Media{
			Title:         e.Title,
			OriginalTitle: e.OriginalTitle,
			Type:          mediaType,
			Year:          e.Year,
		}
		if err := store.AddMedia(m); err != nil {
			return added, fmt.Errorf("add %q: %w", e.Title, err)
		}
		added++
	}
	return added, nil
}
