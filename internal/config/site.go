package config

import (
	"maps"
	"strings"

	"github.com/nao1215/spidey/internal/transport"
	"github.com/nao1215/spidey/internal/urlnorm"
)

// SiteConfig holds crawl settings for one host. Pointer fields distinguish
// "not set" from a zero value, since depth 0 and stayInternal false are
// meaningful.
type SiteConfig struct {
	// Cookie is sent with every request, "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	Depth        *int   `yaml:"depth,omitempty"`
	StayInternal *bool  `yaml:"stayInternal,omitempty"`
	Transport    string `yaml:"transport,omitempty"`

	// IgnorePatterns are URL path globs that are never recursed into.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict recursion to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .spidey configuration file.
type File struct {
	// Sites maps hosts, e.g. "example.com" or "example.com:8080", to their
	// settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for seed: the defaults overlaid with
// the entry for the seed's host. seed may be a URL or a bare host.
func (cf *File) GetSiteConfig(seed string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.lookup(seed)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.StayInternal != nil {
		result.StayInternal = site.StayInternal
	}
	if site.Transport != "" {
		result.Transport = site.Transport
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

func (cf *File) lookup(seed string) (SiteConfig, bool) {
	if site, ok := cf.Sites[seed]; ok {
		return site, true
	}
	if !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}
	host := urlnorm.DomainOf(seed)
	for key, site := range cf.Sites {
		if strings.EqualFold(key, host) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// Apply overlays site onto a copy of c for one seed.
func (c *Config) Apply(site SiteConfig) *Config {
	out := *c
	if site.Depth != nil {
		out.Depth = *site.Depth
	}
	if site.StayInternal != nil {
		out.StayInternal = *site.StayInternal
	}
	if site.Transport != "" {
		out.Transport = transportKind(site.Transport)
	}
	return &out
}

// transportKind parses name, keeping an unknown name as is so that
// Validate reports it.
func transportKind(name string) transport.Kind {
	k, err := transport.ParseKind(name)
	if err != nil {
		return transport.Kind(name)
	}
	return k
}
