package crawler

import (
	"slices"
	"testing"

	"github.com/nao1215/spidey/internal/classify"
	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
)

const extractorFixture = `<html><body>
	<a href="/about">About</a>
	<a href="/about">About again</a>
	<a href="http://other.test/page">Other</a>
	<a href="//cdn.test/pkg.zip">CDN</a>
	<a href="docs/report.pdf">Report</a>
	<a href="/feed.xml">Feed</a>
	<a href="/data.csv?x=1">CSV</a>
	<a href="/notes.txt">Notes</a>
	<a href="/index.html">Index</a>
	<a href="/song.mp3">Song</a>
	<a href="mailto:me@a.test">Mail</a>
	<img src="/logo">
	<img data-lazyload="/lazy.png">
	<img data-src="/late.jpg">
	<img>
	<audio src="/intro.mp3"></audio>
	<video src="/clip.mp4"><source src="/clip-hd.mp4"></video>
</body></html>`

func newTestExtractor(stayInternal bool) *Extractor {
	return NewExtractor(classify.New(stayInternal, classify.WithLogger(spideylog.Discard())))
}

func TestExtract(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(extractorFixture), "text/html")
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	t.Run("unrestricted", func(t *testing.T) {
		t.Parallel()

		scrape := newTestExtractor(false).Extract("http://a.test/section/page", doc)

		want := map[model.Category][]string{
			model.CategoryLinks: {"http://a.test/about", "http://other.test/page"},
			model.CategoryFiles: {
				"http://a.test/clip-hd.mp4",
				"http://a.test/clip.mp4",
				"http://a.test/data.csv?x=1",
				"http://a.test/docs/report.pdf",
				"http://a.test/feed.xml",
				"http://a.test/index.html",
				"http://a.test/intro.mp3",
				"http://a.test/notes.txt",
				"http://a.test/song.mp3",
				"http://cdn.test/pkg.zip",
			},
			model.CategoryImages: {"http://a.test/late.jpg", "http://a.test/lazy.png", "http://a.test/logo"},
			model.CategoryAudio:  {"http://a.test/intro.mp3", "http://a.test/song.mp3"},
			model.CategoryVideo:  {"http://a.test/clip-hd.mp4", "http://a.test/clip.mp4"},
			model.CategoryHTML:   {"http://a.test/index.html"},
			model.CategoryText:   {"http://a.test/notes.txt"},
			model.CategoryPDF:    {"http://a.test/docs/report.pdf"},
			model.CategoryCSV:    {"http://a.test/data.csv?x=1"},
			model.CategoryXML:    {"http://a.test/feed.xml"},
		}

		if scrape.Source != "http://a.test/section/page" {
			t.Errorf("expected source to be the page URL, got %q", scrape.Source)
		}
		for c, urls := range want {
			if got := scrape.Set(c).Sorted(); !slices.Equal(got, urls) {
				t.Errorf("%s: expected %v, got %v", c, urls, got)
			}
		}
	})

	t.Run("internal only", func(t *testing.T) {
		t.Parallel()

		scrape := newTestExtractor(true).Extract("http://a.test/", doc)

		if scrape.Links.Has("http://other.test/page") {
			t.Error("external page must be dropped")
		}
		if scrape.Files.Has("http://cdn.test/pkg.zip") {
			t.Error("external file must be dropped")
		}
		if scrape.Links.Len() != 1 {
			t.Errorf("expected 1 internal link, got %v", scrape.Links.Sorted())
		}
	})

	t.Run("every typed category is a subset of files", func(t *testing.T) {
		t.Parallel()

		scrape := newTestExtractor(false).Extract("http://a.test/", doc)
		for _, c := range []model.Category{
			model.CategoryAudio, model.CategoryVideo,
			model.CategoryHTML, model.CategoryText, model.CategoryPDF, model.CategoryCSV, model.CategoryXML,
		} {
			for u := range scrape.Set(c) {
				if !scrape.Files.Has(u) {
					t.Errorf("%s entry %s missing from files", c, u)
				}
			}
		}
		for u := range scrape.Links {
			if scrape.Files.Has(u) {
				t.Errorf("%s is both a link and a file", u)
			}
		}
	})

	t.Run("embedded media sources are files", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse([]byte(`<audio src="/intro.mp3"></audio><video><source src="/clip.mp4"></video>`), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		scrape := newTestExtractor(false).Extract("http://a.test/", doc)

		for c, u := range map[model.Category]string{
			model.CategoryAudio: "http://a.test/intro.mp3",
			model.CategoryVideo: "http://a.test/clip.mp4",
		} {
			if !scrape.Set(c).Has(u) {
				t.Errorf("expected %s in %s, got %v", u, c, scrape.Set(c).Sorted())
			}
			if !scrape.Files.Has(u) {
				t.Errorf("expected %s in files, got %v", u, scrape.Files.Sorted())
			}
		}
		if scrape.Links.Len() != 0 {
			t.Errorf("expected no links, got %v", scrape.Links.Sorted())
		}
	})

	t.Run("nil document yields empty scrape", func(t *testing.T) {
		t.Parallel()

		scrape := newTestExtractor(false).Extract("http://a.test/", nil)
		if !scrape.IsEmpty() {
			t.Errorf("expected empty scrape, got %v", scrape.Counts())
		}
	})

	t.Run("relative references resolve against the host", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse([]byte(`<a href="next">next</a>`), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		scrape := newTestExtractor(false).Extract("http://a.test/deep/dir/page", doc)
		if !scrape.Links.Has("http://a.test/next") {
			t.Errorf("expected http://a.test/next, got %v", scrape.Links.Sorted())
		}
	})
}
