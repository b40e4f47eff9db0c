package classify

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	spideylog "github.com/nao1215/spidey/internal/log"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	refs := []string{
		"/about",
		"/about",
		"http://a.test/about",
		"docs/report.pdf",
		"http://b.test/page",
		"//cdn.test/lib.js",
		"mailto:me@a.test",
		"",
		"/media/song.MP3",
	}

	tests := []struct {
		name         string
		stayInternal bool
		keep         Filter
		want         []string
	}{
		{
			name:         "pages unrestricted",
			stayInternal: false,
			keep:         Pages,
			want:         []string{"http://a.test/about", "http://b.test/page"},
		},
		{
			name:         "pages internal only",
			stayInternal: true,
			keep:         Pages,
			want:         []string{"http://a.test/about"},
		},
		{
			name:         "files unrestricted",
			stayInternal: false,
			keep:         Files,
			want: []string{
				"http://a.test/docs/report.pdf",
				"http://a.test/media/song.MP3",
				"http://cdn.test/lib.js",
			},
		},
		{
			name:         "files internal only",
			stayInternal: true,
			keep:         Files,
			want:         []string{"http://a.test/docs/report.pdf", "http://a.test/media/song.MP3"},
		},
		{
			name:         "typed filter ignores case",
			stayInternal: false,
			keep:         OfType(".mp3"),
			want:         []string{"http://a.test/media/song.MP3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(tt.stayInternal, WithLogger(spideylog.Discard()))
			got := c.Classify("http://a.test", refs, tt.keep).Sorted()
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClassifyPartition(t *testing.T) {
	t.Parallel()

	refs := []string{
		"/", "/a", "/a/", "/a.html", "/b.PDF", "/c.tar.gz", "/d.", "/dir.d/e",
		"https://x.test/f.csv?x=1", "//y.test/g", "../h.xml#frag",
	}
	c := New(false, WithLogger(spideylog.Discard()))

	pages := c.Classify("http://a.test", refs, Pages)
	files := c.Classify("http://a.test", refs, Files)
	all := c.Classify("http://a.test", refs, All)

	for _, u := range all.Sorted() {
		if pages.Has(u) == files.Has(u) {
			t.Errorf("%s must be in exactly one of pages and files", u)
		}
	}
	if pages.Len()+files.Len() != all.Len() {
		t.Errorf("expected pages+files (%d+%d) to cover all %d", pages.Len(), files.Len(), all.Len())
	}

	for _, ext := range []string{".html", ".pdf", ".csv", ".xml", ".txt", ".mp3", ".mp4"} {
		for _, u := range c.Classify("http://a.test", refs, OfType(ext)).Sorted() {
			if !files.Has(u) {
				t.Errorf("typed %s result %s missing from generic files", ext, u)
			}
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	t.Parallel()

	c := New(true, WithLogger(spideylog.Discard()))
	once := c.Classify("http://a.test", []string{"/x", "/x", "x", "http://a.test/x"}, All)
	if once.Len() != 1 {
		t.Fatalf("expected one unique URL, got %v", once.Sorted())
	}

	twice := c.Classify("http://a.test", append(once.Sorted(), once.Sorted()...), All)
	if !slices.Equal(once.Sorted(), twice.Sorted()) {
		t.Errorf("expected %v, got %v", once.Sorted(), twice.Sorted())
	}
}

func TestClassifyLogsMalformedReferences(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := New(false, WithLogger(spideylog.NewLogger(&buf, spideylog.Options{Verbose: true})))
	got := c.Classify("http://a.test", []string{"/%zz", "javascript:void(0)", ""}, All)

	if got.Len() != 0 {
		t.Errorf("expected nothing kept, got %v", got.Sorted())
	}
	if n := strings.Count(buf.String(), "failure=malformed_url"); n != 2 {
		t.Errorf("expected 2 malformed_url records, got %d: %s", n, buf.String())
	}
}
