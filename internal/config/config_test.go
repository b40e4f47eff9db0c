package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/transport"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.Depth != DefaultDepth {
		t.Errorf("expected depth %d, got %d", DefaultDepth, cfg.Depth)
	}
	if cfg.Transport != transport.KindHTTP {
		t.Errorf("expected http transport, got %s", cfg.Transport)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("expected sequential crawl by default, got %d", cfg.Concurrency)
	}
	if !cfg.SaveToDB || cfg.DBDir != XDGDataDir() {
		t.Errorf("expected database in XDG data dir, got %v %q", cfg.SaveToDB, cfg.DBDir)
	}
	if !strings.HasSuffix(cfg.DBDir, AppName) {
		t.Errorf("expected data dir to end with %s, got %s", AppName, cfg.DBDir)
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %s, got %s", AppName, XDGConfigDir())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{"http://a.test"}
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"defaults with seed", func(*Config) {}, nil},
		{"no seed", func(c *Config) { c.Seeds = nil }, ErrNoSeed},
		{"empty seed", func(c *Config) { c.Seeds = []string{""} }, ErrNoSeed},
		{"negative depth", func(c *Config) { c.Depth = -1 }, ErrInvalidDepth},
		{"depth zero", func(c *Config) { c.Depth = 0 }, nil},
		{"unknown transport", func(c *Config) { c.Transport = "ftp" }, ErrInvalidTransport},
		{"socks without proxy", func(c *Config) { c.Transport = transport.KindSOCKS }, ErrProxyRequired},
		{"socks with proxy", func(c *Config) {
			c.Transport = transport.KindSOCKS
			c.ProxyAddress = "127.0.0.1:9050"
		}, nil},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"negative max pages", func(c *Config) { c.MaxPages = -5 }, ErrInvalidMaxPages},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"negative file size", func(c *Config) { c.MaxFileSize = -1 }, ErrInvalidMaxBodySize},
		{"json and markdown", func(c *Config) {
			c.JSONReport = true
			c.MarkdownReport = true
		}, ErrConflictingReportFormats},
		{"save without output dir", func(c *Config) {
			c.SaveCategories = []model.Category{model.CategoryPDF}
			c.OutputDir = ""
		}, ErrNoOutputDir},
		{"database without dir", func(c *Config) { c.DBDir = "" }, ErrNoDBDir},
		{"no database needs no dir", func(c *Config) {
			c.SaveToDB = false
			c.DBDir = ""
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	t.Parallel()

	t.Run("labels", func(t *testing.T) {
		t.Parallel()

		got, err := ParseCategories([]string{"pdf", "img", "pdf"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0] != model.CategoryPDF || got[1] != model.CategoryImages {
			t.Errorf("unexpected categories %v", got)
		}
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		got, err := ParseCategories([]string{"all", "pdf"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != len(model.DownloadableCategories) {
			t.Errorf("expected %d categories, got %d", len(model.DownloadableCategories), len(got))
		}
	})

	t.Run("links and files cannot be saved", func(t *testing.T) {
		t.Parallel()

		for _, label := range []string{"links", "files", "exe"} {
			_, err := ParseCategories([]string{label})
			if !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("%s: expected ErrUnknownCategory, got %v", label, err)
			}
			var cerr *CategoryError
			if !errors.As(err, &cerr) || cerr.Label != label {
				t.Errorf("%s: expected CategoryError with label, got %v", label, err)
			}
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("parses defaults and sites", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
defaults:
  depth: 2
  headers:
    Accept-Language: en
sites:
  example.com:
    cookie: "session_id=abc"
    stayInternal: true
    ignorePatterns:
      - "/logout*"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.Depth == nil || *cf.Defaults.Depth != 2 {
			t.Errorf("expected default depth 2, got %v", cf.Defaults.Depth)
		}
		site, ok := cf.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com entry")
		}
		if site.Cookie != "session_id=abc" || site.StayInternal == nil || !*site.StayInternal {
			t.Errorf("unexpected site config %+v", site)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("empty file gets an empty site map", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected initialized site map")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("expected empty result, got %s", got)
		}
	})
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Depth:   intPtr(1),
			Headers: map[string]string{"Accept-Language": "en"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie:         "session_id=abc",
				Headers:        map[string]string{"X-Api": "1"},
				Depth:          intPtr(0),
				StayInternal:   boolPtr(true),
				Transport:      "tor",
				FollowPatterns: []string{"/docs/*"},
			},
			"Local.test:8080": {
				Cookie: "x=1",
			},
		},
	}

	t.Run("merges site over defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("https://example.com/start")
		if got.Cookie != "session_id=abc" {
			t.Errorf("expected cookie, got %q", got.Cookie)
		}
		if got.Depth == nil || *got.Depth != 0 {
			t.Errorf("expected depth 0 override, got %v", got.Depth)
		}
		if got.Headers["Accept-Language"] != "en" || got.Headers["X-Api"] != "1" {
			t.Errorf("expected merged headers, got %v", got.Headers)
		}
		if got.Transport != "tor" || len(got.FollowPatterns) != 1 {
			t.Errorf("unexpected merge result %+v", got)
		}
	})

	t.Run("merging does not leak into defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("example.com")
		if _, ok := cf.Defaults.Headers["X-Api"]; ok {
			t.Error("defaults were modified by a site merge")
		}
	})

	t.Run("host with port matches case-insensitively", func(t *testing.T) {
		t.Parallel()

		if got := cf.GetSiteConfig("http://local.test:8080/"); got.Cookie != "x=1" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
	})

	t.Run("unknown site gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("http://other.test")
		if got.Cookie != "" || got.Depth == nil || *got.Depth != 1 {
			t.Errorf("expected defaults, got %+v", got)
		}
	})
}

func TestApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	base.Depth = 3

	got := base.Apply(SiteConfig{Depth: intPtr(0), StayInternal: boolPtr(true), Transport: "SOCKS"})
	if got.Depth != 0 || !got.StayInternal || got.Transport != transport.KindSOCKS {
		t.Errorf("unexpected applied config depth=%d stay=%v transport=%s", got.Depth, got.StayInternal, got.Transport)
	}
	if base.Depth != 3 || base.StayInternal {
		t.Error("expected the base config to stay unchanged")
	}

	same := base.Apply(SiteConfig{})
	if same.Depth != 3 || same.Transport != transport.KindHTTP {
		t.Errorf("expected unchanged values, got depth=%d transport=%s", same.Depth, same.Transport)
	}
}
