package urlnorm

import "testing"

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		ref    string
		want   string
		wantOK bool
	}{
		{"empty reference", "http://a.test", "", "", false},
		{"whitespace reference", "http://a.test", "   ", "", false},
		{"absolute unchanged", "http://a.test", "https://b.test/x?y=1#z", "https://b.test/x?y=1#z", true},
		{"absolute trimmed", "http://a.test", "  http://b.test/x  ", "http://b.test/x", true},
		{"protocol relative", "https://a.test", "//example.com/a", "http://example.com/a", true},
		{"root relative", "http://a.test", "/q", "http://a.test/q", true},
		{"path relative", "http://a.test", "dir/page", "http://a.test/dir/page", true},
		{"dot segments", "http://a.test", "../up/./x", "http://a.test/up/x", true},
		{"query only", "http://a.test", "?page=2", "http://a.test?page=2", true},
		{"fragment only", "http://a.test", "#top", "http://a.test#top", true},
		{"keeps port", "http://a.test:8080", "/q", "http://a.test:8080/q", true},
		{"mailto dropped", "http://a.test", "mailto:x@a.test", "", false},
		{"javascript dropped", "http://a.test", "javascript:void(0)", "", false},
		{"bare double slash dropped", "http://a.test", "//", "", false},
		{"malformed escape dropped", "http://a.test", "/%zz", "", false},
		{"relative with bad base dropped", "", "/q", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Resolve(tt.base, tt.ref)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve(%q, %q) = (%q, %v), want (%q, %v)",
					tt.base, tt.ref, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	t.Parallel()

	absolute := []string{
		"http://x.test/",
		"https://x.test/a/b.pdf",
		"http://x.test:81/p?q=1",
		"https://user@x.test/p#frag",
	}

	for _, u := range absolute {
		got, ok := Resolve(BaseOf(u), u)
		if !ok || got != u {
			t.Errorf("Resolve(BaseOf(%q), %q) = (%q, %v)", u, u, got, ok)
		}
	}
}

func TestBaseOfAndDomainOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		base   string
		domain string
	}{
		{"http://a.test/p/q?x=1#f", "http://a.test", "a.test"},
		{"https://A.test:8443/", "https://A.test:8443", "A.test:8443"},
		{"/relative/only", "", ""},
		{"%zz", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := BaseOf(tt.in); got != tt.base {
				t.Errorf("BaseOf(%q) = %q, want %q", tt.in, got, tt.base)
			}
			if got := DomainOf(tt.in); got != tt.domain {
				t.Errorf("DomainOf(%q) = %q, want %q", tt.in, got, tt.domain)
			}
		})
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	if !SameDomain("http://a.test/x", "https://A.TEST/y") {
		t.Error("expected hosts to match case-insensitively")
	}
	if SameDomain("http://a.test/x", "http://b.test/x") {
		t.Error("expected different hosts not to match")
	}
	if SameDomain("/x", "/y") {
		t.Error("relative URLs have no domain")
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref     string
		ext     string
		hasExt  bool
		isPDF   bool
		comment string
	}{
		{"report.pdf", ".pdf", true, true, "relative file"},
		{"/docs/REPORT.PDF", ".PDF", true, true, "case-insensitive type"},
		{"http://a.test/docs/report.pdf?download=1", ".pdf", true, true, "query ignored"},
		{"http://a.test/page", "", false, false, "no dot"},
		{"http://a.test", "", false, false, "host dot is not an extension"},
		{"http://a.test/dir.d/", "", false, false, "dot in directory only"},
		{"http://a.test/dir.d/file", "", false, false, "dot in parent segment"},
		{"http://a.test/file.", "", false, false, "empty suffix"},
		{"/a?file=x.pdf", "", false, false, "extension in query"},
		{"/archive.tar.gz", ".gz", true, false, "last suffix wins"},
		{"", "", false, false, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			t.Parallel()

			if got := Extension(tt.ref); got != tt.ext {
				t.Errorf("Extension(%q) = %q, want %q", tt.ref, got, tt.ext)
			}
			if got := HasExtension(tt.ref); got != tt.hasExt {
				t.Errorf("HasExtension(%q) = %v, want %v", tt.ref, got, tt.hasExt)
			}
			if got := IsType(tt.ref, ".pdf"); got != tt.isPDF {
				t.Errorf("IsType(%q, .pdf) = %v, want %v", tt.ref, got, tt.isPDF)
			}
		})
	}
}
