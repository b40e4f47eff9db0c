package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/urlnorm"
)

// Opener streams the body behind a URL. transport.Fetcher implements it.
type Opener interface {
	Open(ctx context.Context, url string) (*http.Response, error)
}

// DefaultDownloadConcurrency is the number of files fetched in parallel
// for one page.
const DefaultDownloadConcurrency = 4

// Downloader saves the files referenced by a Scrape under
// <outDir>/<root>/<category>/<page>/.
type Downloader struct {
	opener      Opener
	outDir      string
	concurrency int
	maxFileSize int64
	logger      *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadConcurrency sets how many files of one page are fetched at once.
func WithDownloadConcurrency(n int) DownloaderOption {
	return func(d *Downloader) {
		d.concurrency = max(n, 1)
	}
}

// WithMaxFileSize truncates each saved file at n bytes. 0 means no limit.
func WithMaxFileSize(n int64) DownloaderOption {
	return func(d *Downloader) {
		d.maxFileSize = max(n, 0)
	}
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDownloader returns a Downloader writing below outDir.
func NewDownloader(opener Opener, outDir string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		opener:      opener,
		outDir:      outDir,
		concurrency: DefaultDownloadConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Save downloads urls found on page into the directory for category and
// returns one Download per URL in input order. root names the crawl, usually
// its seed URL; root and page are slugified.
//
// A failed item is recorded with Error set and logged with
// failure=persistence; the remaining items are still attempted.
func (d *Downloader) Save(ctx context.Context, root string, category model.Category, page string, urls []string) []model.Download {
	results := make([]model.Download, len(urls))
	if len(urls) == 0 {
		return results
	}

	dir := filepath.Join(d.outDir, Slugify(root), string(category), Slugify(page))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		for i, u := range urls {
			results[i] = d.failed(page, category, u, "", fmt.Errorf("create directory: %w", err))
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = d.saveOne(gctx, dir, page, category, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Downloader) saveOne(ctx context.Context, dir, page string, category model.Category, rawURL string) model.Download {
	target := filepath.Join(dir, fileName(category, rawURL))

	resp, err := d.opener.Open(ctx, rawURL)
	if err != nil {
		return d.failed(page, category, rawURL, target, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(target) //nolint:gosec // target is built from slugified components
	if err != nil {
		return d.failed(page, category, rawURL, target, fmt.Errorf("create file: %w", err))
	}

	var body io.Reader = resp.Body
	if d.maxFileSize > 0 {
		body = io.LimitReader(body, d.maxFileSize)
	}

	hasher := sha3.New256()
	size, copyErr := io.Copy(io.MultiWriter(out, hasher), body)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(target) //nolint:errcheck // partial file is useless
		return d.failed(page, category, rawURL, target, fmt.Errorf("write file: %w", copyErr))
	}
	if closeErr != nil {
		return d.failed(page, category, rawURL, target, fmt.Errorf("close file: %w", closeErr))
	}

	dl := model.Download{
		Source:    page,
		Category:  category,
		URL:       rawURL,
		Path:      target,
		Size:      size,
		Digest:    hex.EncodeToString(hasher.Sum(nil)),
		Timestamp: time.Now(),
	}
	if category == model.CategoryImages && hasEXIFContainer(rawURL) {
		dl.Metadata = readEXIF(target)
	}

	d.logger.Debug("saved", "url", rawURL, "path", target, "bytes", size)
	return dl
}

func (d *Downloader) failed(page string, category model.Category, rawURL, target string, err error) model.Download {
	d.logger.Warn("download failed",
		"url", rawURL,
		"category", category,
		"path", target,
		"error", err,
		spideylog.Failure(model.FailurePersistence))
	return model.Download{
		Source:    page,
		Category:  category,
		URL:       rawURL,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// fileName names the file saved for rawURL. Images keep their last path
// segment behind a random prefix, since many share names like "logo.png";
// every other category uses the slug of the whole URL plus its extension.
func fileName(category model.Category, rawURL string) string {
	if category == model.CategoryImages {
		last := ""
		if u, err := url.Parse(rawURL); err == nil {
			last = path.Base(u.Path)
		}
		if last == "" || last == "." || last == "/" {
			last = "image"
		}
		return uuid.NewString() + "_" + safeFileName(last)
	}
	return Slugify(rawURL) + urlnorm.Extension(rawURL)
}
