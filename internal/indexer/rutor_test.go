package indexer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vmunix/vidstage/internal/fetch"
	"github.com/vmunix/vidstage/pkg/title"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher() *fetch.Client {
	return fetch.NewClient(testLogger(),
		fetch.WithMinInterval(time.Millisecond),
		fetch.WithRetry(2, time.Millisecond, time.Millisecond),
	)
}

const rutorSearchPage = `
<html><body>
<table id="index">
<tr class="backgr"><td>header</td></tr>
<tr class="gai">
  <td>01 Jan 24</td>
  <td>
    <a href="magnet:?xt=urn:btih:aaaa1111">M</a>
    <a href="/torrent/12345/film">Брат (1997) BDRip 1080p</a>
  </td>
  <td align="right">1.46 GB</td>
  <td align="center"><span class="green">54</span><span class="red">3</span></td>
</tr>
<tr class="tum">
  <td>02 Jan 24</td>
  <td>
    <a href="magnet:?xt=urn:btih:bbbb2222">M</a>
    <a href="/torrent/12346/film-720">Брат (1997) HDRip 720p</a>
  </td>
  <td align="right">745 MB</td>
  <td align="center"><span class="green">12</span></td>
</tr>
<tr class="gai">
  <td>03 Jan 24</td>
  <td>
    <a href="/torrent/12347/broken-row">Row without magnet</a>
  </td>
  <td align="right">700 MB</td>
</tr>
</table>
</body></html>`

func TestRutor_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rutorSearchPage))
	}))
	defer srv.Close()

	idx := NewRutor("rutor", srv.URL, testFetcher(), testLogger())
	got, err := idx.Search(context.Background(), SearchRequest{Title: "Брат"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (row without magnet skipped)", len(got))
	}

	first := got[0]
	if first.Title != "Брат (1997) BDRip 1080p" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Magnet != "magnet:?xt=urn:btih:aaaa1111" {
		t.Errorf("magnet = %q", first.Magnet)
	}
	if first.Quality != title.Quality1080p {
		t.Errorf("quality = %v, want 1080p", first.Quality)
	}
	if first.Seeders != 54 {
		t.Errorf("seeders = %d, want 54", first.Seeders)
	}
	if first.Language != "ru" {
		t.Errorf("language = %q, want ru", first.Language)
	}
	gib := 1.46 * float64(1<<30)
	wantSize := int64(gib)
	if first.SizeBytes != wantSize {
		t.Errorf("size = %d, want %d", first.SizeBytes, wantSize)
	}

	if got[1].Quality != title.Quality720p {
		t.Errorf("second quality = %v, want 720p", got[1].Quality)
	}
}

func TestRutor_MarkupDriftYieldsZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>totally new layout</div></body></html>"))
	}))
	defer srv.Close()

	idx := NewRutor("rutor", srv.URL, testFetcher(), testLogger())
	got, err := idx.Search(context.Background(), SearchRequest{Title: "Anything"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates from drifted markup, want 0", len(got))
	}
}

func TestRutor_DeduplicatesAcrossVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rutorSearchPage))
	}))
	defer srv.Close()

	idx := NewRutor("rutor", srv.URL, testFetcher(), testLogger())
	// Alternate title forces several query variants against the same page.
	got, err := idx.Search(context.Background(), SearchRequest{Title: "Брат", AltTitle: "Brother", Year: 1997})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2 after dedup", len(got))
	}
}
