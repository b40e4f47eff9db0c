package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/storage"
	"github.com/nao1215/spidey/internal/transport"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "spidey"

	// DefaultDepth crawls the seed and the pages it links to.
	DefaultDepth = 1

	// DefaultTimeout applies to each request.
	DefaultTimeout = transport.DefaultTimeout

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = transport.DefaultTorStartupTimeout

	// DefaultConcurrency fetches sibling pages one at a time.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of seeds crawled at once.
	DefaultBatchSize = 4

	// DefaultMaxPages of 0 leaves the page count unbounded; depth alone
	// limits the crawl.
	DefaultMaxPages = 0

	// DefaultMaxBodySize limits each page body read by the crawler.
	DefaultMaxBodySize = transport.DefaultMaxBodySize

	// DefaultUserAgent identifies spidey in HTTP requests.
	DefaultUserAgent = transport.DefaultUserAgent

	// DefaultOutputDir is where downloads and graphs are written.
	DefaultOutputDir = "."

	// DefaultDownloadConcurrency is the number of files of one page saved
	// at once.
	DefaultDownloadConcurrency = storage.DefaultDownloadConcurrency
)

// Config holds every option of a crawl command. It is populated from CLI
// flags and passed down explicitly.
type Config struct {
	// Seeds are the starting addresses. A seed without a scheme gets http://.
	Seeds []string

	// Depth is the number of link hops followed from each seed.
	Depth int

	// StayInternal drops links to other hosts.
	StayInternal bool

	// Transport selects direct HTTP, a SOCKS5 proxy or embedded Tor.
	Transport transport.Kind

	// ProxyAddress is the SOCKS5 "host:port" for the socks transport.
	ProxyAddress string

	Timeout           time.Duration
	TorStartupTimeout time.Duration

	// Concurrency is the number of sibling pages fetched at once.
	Concurrency int

	// BatchSize is the number of seeds crawled at once.
	BatchSize int

	// MaxPages caps the pages fetched per seed. 0 means unlimited.
	MaxPages int

	MaxBodySize int64
	UserAgent   string

	// SaveCategories lists the categories whose files are downloaded.
	SaveCategories []model.Category

	// SaveGraph writes a graph.csv per page.
	SaveGraph bool

	// OutputDir is the root of downloads and graphs.
	OutputDir string

	DownloadConcurrency int

	// MaxFileSize truncates each downloaded file. 0 means no limit.
	MaxFileSize int64

	// JSONReport and MarkdownReport select the report format; both false
	// means plain text. They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// SaveToDB stores every session in the database under DBDir.
	SaveToDB bool
	DBDir    string

	// ConfigFilePath is an explicit .spidey file. Empty means search.
	ConfigFilePath string

	// SiteConfigs holds the loaded .spidey file, if any.
	SiteConfigs *File

	// Name labels the session. Empty means the start timestamp.
	Name string

	Verbose bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:               DefaultDepth,
		Transport:           transport.KindHTTP,
		Timeout:             DefaultTimeout,
		TorStartupTimeout:   DefaultTorStartupTimeout,
		Concurrency:         DefaultConcurrency,
		BatchSize:           DefaultBatchSize,
		MaxPages:            DefaultMaxPages,
		MaxBodySize:         DefaultMaxBodySize,
		UserAgent:           DefaultUserAgent,
		OutputDir:           DefaultOutputDir,
		DownloadConcurrency: DefaultDownloadConcurrency,
		SaveToDB:            true,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for spidey, where the session
// database lives.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spidey.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if seed == "" {
			return ErrNoSeed
		}
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if _, err := transport.ParseKind(string(c.Transport)); err != nil {
		return ErrInvalidTransport
	}
	if c.Transport == transport.KindSOCKS && c.ProxyAddress == "" {
		return ErrProxyRequired
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 || c.MaxFileSize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if (len(c.SaveCategories) > 0 || c.SaveGraph) && c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}
	return nil
}

// ParseCategories converts labels such as "pdf,img" into categories.
// "all" selects every downloadable category. Duplicates are dropped.
func ParseCategories(labels []string) ([]model.Category, error) {
	seen := make(map[model.Category]bool)
	var out []model.Category
	add := func(c model.Category) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, label := range labels {
		if label == "all" {
			for _, c := range model.DownloadableCategories {
				add(c)
			}
			continue
		}
		c, ok := model.ParseCategory(label)
		if !ok || (c.Extension() == "" && c != model.CategoryImages) {
			return nil, &CategoryError{Label: label}
		}
		add(c)
	}
	return out, nil
}
