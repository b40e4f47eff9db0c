package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spidey/internal/classify"
	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
)

var (
	// ErrEmptySeed is returned when the session has no seed URL.
	ErrEmptySeed = errors.New("seed URL is empty")
	// ErrNegativeDepth is returned when the session depth is below zero.
	ErrNegativeDepth = errors.New("crawl depth must not be negative")
)

// Fetcher retrieves the raw bytes behind a URL. An empty url yields
// (nil, nil). Implementations live in the transport package.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Spider walks pages from a seed, classifying every page it fetches into
// a Scrape appended to the session.
//
// Traversal is depth-first over an explicit work stack of (url, remaining
// depth) pairs. A URL is marked visited before it is fetched, so each URL
// is fetched at most once per session even when it is reachable from many
// parents or sits on a cycle.
type Spider struct {
	fetcher    Fetcher
	classifier *classify.Classifier
	extractor  *Extractor

	// stayInternal is used to build the default classifier.
	stayInternal bool

	// concurrency is the number of stack entries processed in parallel.
	// 1 means strictly sequential.
	concurrency int

	// maxPages caps fetches per session. 0 means unlimited.
	maxPages int

	// ignorePatterns are URL path globs never recursed into.
	ignorePatterns []string

	// followPatterns, when set, restrict recursion to matching paths.
	followPatterns []string

	// onScrape is called after every appended Scrape.
	onScrape func(*model.Scrape)

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithStayInternal restricts classification to the host of each page.
// It is ignored when WithClassifier is also given.
func WithStayInternal(stayInternal bool) SpiderOption {
	return func(s *Spider) {
		s.stayInternal = stayInternal
	}
}

// WithClassifier sets the classifier used by the extractor.
func WithClassifier(c *classify.Classifier) SpiderOption {
	return func(s *Spider) {
		s.classifier = c
	}
}

// WithConcurrency sets how many sibling URLs are fetched in parallel.
// Values below 1 are treated as 1.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = max(n, 1)
	}
}

// WithMaxPages caps the number of pages fetched in one session.
// 0 disables the cap.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = max(maxPages, 0)
	}
}

// WithIgnorePatterns sets URL path patterns to skip during recursion.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// The seed is always fetched; patterns only filter discovered links.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during recursion.
// If set, only links matching at least one pattern are crawled.
// Empty slice means all links are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithOnScrape registers a callback invoked after each page is recorded.
// With concurrency above 1 it may be called from several goroutines.
func WithOnScrape(fn func(*model.Scrape)) SpiderOption {
	return func(s *Spider) {
		s.onScrape = fn
	}
}

// WithLogger sets the logger. Transport failures are logged at warn level,
// skipped and dropped URLs at debug level.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that retrieves pages through fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     fetcher,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = classify.New(s.stayInternal, classify.WithLogger(s.logger))
	}
	s.extractor = NewExtractor(s.classifier)
	return s
}

// crawlItem is one entry of the work stack.
type crawlItem struct {
	url       string
	remaining int
}

// Crawl traverses from session.Seed up to session.Depth link hops and
// appends one Scrape per fetched page to the session.
//
// Fetch failures are not errors: the page is recorded with every category
// empty and the crawl goes on. Crawl returns ctx.Err() if the context is
// cancelled; pages recorded up to that point stay in the session.
func (s *Spider) Crawl(ctx context.Context, session *model.Session) error {
	if session.Depth < 0 {
		return ErrNegativeDepth
	}
	seed := normalizeSeed(session.Seed)
	if seed == "" {
		return ErrEmptySeed
	}
	session.Seed = seed

	s.logger.Info("crawl started",
		"session", session.Name,
		"seed", seed,
		"depth", session.Depth,
		"stay_internal", s.classifier.StayInternal())

	var fetched atomic.Int64
	stack := []crawlItem{{url: seed, remaining: session.Depth}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.limitReached(&fetched) {
			s.logger.Info("page limit reached", "max_pages", s.maxPages)
			break
		}

		// Pop up to concurrency entries; batch[0] is the top of the stack.
		n := min(s.concurrency, len(stack))
		batch := make([]crawlItem, n)
		for i := range n {
			batch[i] = stack[len(stack)-1-i]
		}
		stack = stack[:len(stack)-n]

		children := make([][]crawlItem, n)
		var g errgroup.Group
		for i, item := range batch {
			g.Go(func() error {
				children[i] = s.visit(ctx, session, item, &fetched)
				return nil
			})
		}
		_ = g.Wait()

		// Push so that the children of batch[0] end up on top.
		for i := n - 1; i >= 0; i-- {
			stack = append(stack, children[i]...)
		}
	}

	s.logger.Info("crawl finished",
		"session", session.Name,
		"pages", len(session.Results()),
		"visited", session.VisitedCount())
	return ctx.Err()
}

// visit processes one work item and returns the items to push.
func (s *Spider) visit(ctx context.Context, session *model.Session, item crawlItem, fetched *atomic.Int64) []crawlItem {
	if ctx.Err() != nil {
		return nil
	}
	// Reserve a page slot before marking, so the visited set only holds
	// URLs that are actually fetched.
	if s.maxPages > 0 && fetched.Add(1) > int64(s.maxPages) {
		fetched.Add(-1)
		return nil
	}
	if !session.MarkVisited(item.url) {
		if s.maxPages > 0 {
			fetched.Add(-1)
		}
		s.logger.Debug("already visited", "url", item.url)
		return nil
	}

	content, fetchErr := s.fetcher.Fetch(ctx, item.url)
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("fetch failed",
			"url", item.url,
			"error", fetchErr,
			spideylog.Failure(model.FailureTransport))
		content = nil
	}

	doc, err := Parse(content, "")
	if err != nil {
		s.logger.Debug("unparseable page", "url", item.url, "error", err)
		doc = nil
	}

	scrape := s.extractor.Extract(item.url, doc)
	if fetchErr != nil {
		scrape.FetchError = fetchErr.Error()
	}
	session.Append(scrape)
	if s.onScrape != nil {
		s.onScrape(scrape)
	}

	s.logger.Debug("page recorded",
		"url", item.url,
		"title", doc.Title(),
		"links", scrape.Links.Len(),
		"remaining", item.remaining)

	if item.remaining == 0 {
		return nil
	}

	// Reverse order so the lexically first link is popped first.
	links := scrape.Links.Sorted()
	slices.Reverse(links)

	next := make([]crawlItem, 0, len(links))
	for _, link := range links {
		if session.Visited(link) {
			continue
		}
		if !s.shouldCrawl(link) {
			s.logger.Debug("filtered by pattern", "url", link)
			continue
		}
		next = append(next, crawlItem{url: link, remaining: item.remaining - 1})
	}
	return next
}

func (s *Spider) limitReached(fetched *atomic.Int64) bool {
	return s.maxPages > 0 && fetched.Load() >= int64(s.maxPages)
}

// normalizeSeed trims the seed and prefixes http:// when it carries no
// scheme, so "example.com" crawls http://example.com.
func normalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return ""
	}
	if !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}
	return seed
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 && len(s.followPatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare globs like "logout*" apply to the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		return err == nil && matched
	}
	return false
}
