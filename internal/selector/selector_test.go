package selector

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/vidstage/internal/indexer"
	"github.com/vmunix/vidstage/internal/metadata"
	"github.com/vmunix/vidstage/pkg/title"
)

type fakeMeta struct {
	releases []metadata.Release
	err      error
}

func (f *fakeMeta) SearchByTitle(_ context.Context, _ string, _ int) ([]metadata.Release, error) {
	return f.releases, f.err
}

func testSelector(meta MetadataAPI) *Selector {
	s := New(meta, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func cand(name, magnet string, size int64, seeders int) indexer.Candidate {
	return indexer.Candidate{
		Title:     name,
		Magnet:    magnet,
		SizeBytes: size,
		Seeders:   seeders,
		Quality:   title.ParseQuality(name),
		Indexer:   "test",
	}
}

func TestScoreTitle(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		original  string
		query     string
		want      int
	}{
		{
			name:      "exact match",
			candidate: "Blade Runner (1982) BDRip 1080p",
			original:  "Blade Runner",
			query:     "Blade Runner",
			want:      30,
		},
		{
			name:      "superset title loses to exact",
			candidate: "Blade Runner 2049 (2017) WEB-DL 1080p",
			original:  "Blade Runner",
			query:     "Blade Runner",
			want:      17, // full overlap minus one extra word
		},
		{
			name:      "slash variant matches original title",
			candidate: "Брат / Brother (1997) DVDRip",
			original:  "Брат",
			query:     "Brother",
			want:      30,
		},
		{
			name:      "unwanted keyword penalised",
			candidate: "Blade Runner Extended Collection (1982)",
			original:  "Blade Runner",
			query:     "Blade Runner",
			want:      20 - 2*3 - 2*10, // full overlap, two extra words, two keywords
		},
		{
			name:      "unrelated title scores low",
			candidate: "Totally Different Movie (2001)",
			original:  "Blade Runner",
			query:     "Blade Runner",
			want:      -9, // no overlap, three extra words
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreTitle(tt.candidate, tt.original, tt.query)
			if got != tt.want {
				t.Errorf("ScoreTitle(%q) = %d, want %d", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestScoreTitleExactAlwaysBeatsSuperset(t *testing.T) {
	exact := ScoreTitle("Blade Runner (1982) BDRip", "Blade Runner", "Blade Runner")
	superset := ScoreTitle("Blade Runner 2049 (2017) BDRip", "Blade Runner", "Blade Runner")
	if exact <= superset {
		t.Errorf("exact title scored %d, superset scored %d; exact must win", exact, superset)
	}
}

func TestSelectPrefersExactTitle(t *testing.T) {
	s := testSelector(nil)
	candidates := []indexer.Candidate{
		cand("Blade Runner 2049 (2017) BDRip 1080p", "magnet:?xt=urn:btih:aaa", 3<<30, 900),
		cand("Blade Runner (1982) BDRip 1080p", "magnet:?xt=urn:btih:bbb", 2<<30, 40),
	}

	got, err := s.Select(context.Background(), candidates, "Blade Runner", "Blade Runner", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "magnet:?xt=urn:btih:bbb", got.Magnet)
}

func TestSelectSizeCeiling(t *testing.T) {
	s := testSelector(nil)
	big := cand("Blade Runner (1982) 4K Remux", "magnet:?xt=urn:btih:aaa", 30<<30, 500)
	small := cand("Blade Runner (1982) 1080p BDRip", "magnet:?xt=urn:btih:bbb", 4<<30, 50)

	got, err := s.Select(context.Background(), []indexer.Candidate{big, small}, "Blade Runner", "Blade Runner", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, small.Magnet, got.Magnet, "oversized candidate must be excluded for movies")

	// Series have no ceiling.
	got, err = s.Select(context.Background(), []indexer.Candidate{big}, "Blade Runner", "Blade Runner", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big.Magnet, got.Magnet)
}

func TestSelectFutureReleaseRejectsAll(t *testing.T) {
	meta := &fakeMeta{releases: []metadata.Release{{
		Title:       "Blade Runner 3",
		ReleaseDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	s := testSelector(meta)

	candidates := []indexer.Candidate{
		cand("Blade Runner 3 (2025) CAMRip", "magnet:?xt=urn:btih:aaa", 2<<30, 3000),
	}
	got, err := s.Select(context.Background(), candidates, "Blade Runner 3", "Blade Runner 3", false)
	require.NoError(t, err)
	assert.Nil(t, got, "unreleased title must yield no candidate")
}

func TestSelectYearWindow(t *testing.T) {
	meta := &fakeMeta{releases: []metadata.Release{{
		Title:       "Blade Runner",
		ReleaseDate: time.Date(1982, 6, 25, 0, 0, 0, 0, time.UTC),
	}}}
	s := testSelector(meta)

	candidates := []indexer.Candidate{
		cand("Blade Runner (2017) BDRip", "magnet:?xt=urn:btih:aaa", 2<<30, 800),
		cand("Blade Runner (1982) BDRip", "magnet:?xt=urn:btih:bbb", 2<<30, 10),
		cand("Blade Runner BDRip", "magnet:?xt=urn:btih:ccc", 2<<30, 5),
	}
	got, err := s.Select(context.Background(), candidates, "Blade Runner", "Blade Runner", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "magnet:?xt=urn:btih:bbb", got.Magnet, "year outside window must be excluded, missing year kept")
}

func TestSelectMetadataFailureIsAdvisory(t *testing.T) {
	meta := &fakeMeta{err: context.DeadlineExceeded}
	s := testSelector(meta)

	candidates := []indexer.Candidate{
		cand("Blade Runner (1982) BDRip 1080p", "magnet:?xt=urn:btih:aaa", 2<<30, 40),
	}
	got, err := s.Select(context.Background(), candidates, "Blade Runner", "Blade Runner", false)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSelectDeterministic(t *testing.T) {
	base := []indexer.Candidate{
		cand("Blade Runner (1982) BDRip 1080p", "magnet:?xt=urn:btih:aaa", 2<<30, 40),
		cand("Blade Runner (1982) WEB-DL 1080p", "magnet:?xt=urn:btih:bbb", 2<<30, 40),
		cand("Blade Runner (1982) HDRip 720p", "magnet:?xt=urn:btih:ccc", 1<<30, 200),
		cand("Blade Runner 2049 (2017) BDRip", "magnet:?xt=urn:btih:ddd", 3<<30, 900),
	}
	s := testSelector(nil)

	first, err := s.Select(context.Background(), base, "Blade Runner", "Blade Runner", false)
	require.NoError(t, err)
	require.NotNil(t, first)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]indexer.Candidate, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, err := s.Select(context.Background(), shuffled, "Blade Runner", "Blade Runner", false)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.Magnet, got.Magnet, "selection must not depend on input order")
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Blade Runner (1982) BDRip", 1982},
		{"Blade Runner 2049 (2017) WEB-DL", 2017},
		{"Blade Runner 2049 WEB-DL", 2049},
		{"Blade Runner BDRip 1080p", 0},
	}
	for _, tt := range tests {
		if got := extractYear(tt.in); got != tt.want {
			t.Errorf("extractYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
