package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmunix/vidstage/pkg/title"
)

const torrentFindSearchPage = `
<html><body>
<table class="table-list">
<tbody>
<tr>
  <td class="name"><a href="/sub/1/"><i></i></a><a href="/torrent/111/blade-runner-2049-1080p/">Blade Runner 2049 (2017) 1080p BluRay</a></td>
  <td class="seeds">231</td>
  <td class="leeches">12</td>
  <td class="size">3.1 GB<span class="seeds">231</span></td>
</tr>
<tr>
  <td class="name"><a href="/sub/1/"><i></i></a><a href="/torrent/222/blade-runner-2049-720p/">Blade Runner 2049 (2017) 720p WEB</a></td>
  <td class="seeds">87</td>
  <td class="leeches">4</td>
  <td class="size">1.2 GB<span class="seeds">87</span></td>
</tr>
<tr>
  <td class="name"><a href="/sub/1/"><i></i></a><a href="/torrent/333/dead-link/">Dead detail page</a></td>
  <td class="seeds">5</td>
  <td class="leeches">1</td>
  <td class="size">900 MB<span class="seeds">5</span></td>
</tr>
</tbody>
</table>
</body></html>`

func torrentFindServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search/"):
			w.Write([]byte(torrentFindSearchPage))
		case strings.HasPrefix(r.URL.Path, "/torrent/111/"):
			w.Write([]byte(`<html><a href="magnet:?xt=urn:btih:cccc3333">magnet</a></html>`))
		case strings.HasPrefix(r.URL.Path, "/torrent/222/"):
			w.Write([]byte(`<html><a href="magnet:?xt=urn:btih:dddd4444">magnet</a></html>`))
		case strings.HasPrefix(r.URL.Path, "/torrent/333/"):
			w.Write([]byte(`<html>no locator here</html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTorrentFind_SearchResolvesDetailPages(t *testing.T) {
	srv := torrentFindServer(t)

	idx := NewTorrentFind("tfind", srv.URL, testFetcher(), testLogger())
	got, err := idx.Search(context.Background(), SearchRequest{Title: "Blade Runner 2049"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	// Third row's detail page has no magnet and is dropped.
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Magnet != "magnet:?xt=urn:btih:cccc3333" {
		t.Errorf("magnet = %q", got[0].Magnet)
	}
	if got[0].Quality != title.Quality1080p {
		t.Errorf("quality = %v, want 1080p", got[0].Quality)
	}
	if got[0].Seeders != 231 {
		t.Errorf("seeders = %d, want 231", got[0].Seeders)
	}
	if got[0].Language != "en" {
		t.Errorf("language = %q, want en", got[0].Language)
	}
	gib := 3.1 * float64(1<<30)
	wantSize := int64(gib)
	if got[0].SizeBytes != wantSize {
		t.Errorf("size = %d, want %d", got[0].SizeBytes, wantSize)
	}
}

func TestTorrentFind_MarkupDriftYieldsZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>redesigned</body></html>"))
	}))
	defer srv.Close()

	idx := NewTorrentFind("tfind", srv.URL, testFetcher(), testLogger())
	got, err := idx.Search(context.Background(), SearchRequest{Title: "Anything"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}
