package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/nao1215/spidey/internal/config"
	"github.com/nao1215/spidey/internal/crawler"
	"github.com/nao1215/spidey/internal/database"
	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/pipeline"
	"github.com/nao1215/spidey/internal/report"
	"github.com/nao1215/spidey/internal/storage"
	"github.com/nao1215/spidey/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl one or more seed URLs and classify what they link to",
		Long: `Crawl fetches each seed URL, extracts every link from the page and follows
them up to --depth hops. Each fetched page is recorded with its URLs sorted
into categories: links, files, img, mp3, mp4, html, txt, pdf, csv and xml.

A page that cannot be fetched is recorded with every category empty and the
crawl goes on.

Examples:
  # Crawl only the seed page
  spidey crawl https://example.com

  # Follow links two hops deep without leaving the site
  spidey crawl -d 2 -i https://example.com

  # Save PDFs and images found on each page below ./out
  spidey crawl --save pdf,img --out ./out https://example.com

  # Write a CSV link graph for every page
  spidey crawl --graph --out ./out https://example.com

  # Crawl an onion service through an embedded Tor daemon
  spidey crawl --transport tor http://exampleonionaddress.onion

  # Crawl through an existing SOCKS5 proxy and print JSON
  spidey crawl --transport socks --proxy 127.0.0.1:9050 -j https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl parameters
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Number of link hops to follow from the seed (0 crawls only the seed)")
	cmd.Flags().BoolP("stay-internal", "i", false,
		"Only follow and record URLs on the same host as the page")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per seed (0 means no limit)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of pages fetched at once per seed")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled at once")
	cmd.Flags().String("name", "",
		"Session name (default: the start time)")

	// Transport flags
	cmd.Flags().String("transport", string(transport.KindHTTP),
		"Transport to fetch with: http, socks or tor")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address for --transport socks (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with each request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from a page")

	// Persistence flags
	cmd.Flags().StringSlice("save", nil,
		"Categories to download: img, mp3, mp4, html, txt, pdf, csv, xml or all")
	cmd.Flags().Bool("graph", false,
		"Write a CSV link graph for every page")
	cmd.Flags().String("out", config.DefaultOutputDir,
		"Directory that saved files and graphs are written below")
	cmd.Flags().Int64("max-file-size", 0,
		"Truncate each saved file at this many bytes (0 means no limit)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the crawl in the session history")
	cmd.Flags().String("db-dir", "",
		"Directory of the session history database (default: XDG data directory)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spidey in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not show progress on stderr")

	return cmd
}

// crawlOutput holds where a crawl writes its report and progress.
type crawlOutput struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := spideylog.NewLogger(cmd.ErrOrStderr(), getLogOptions(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	return runCrawl(ctx, cfg, logger, crawlOutput{
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		quiet:  quiet,
	})
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogOptions reads the global logging flags.
func getLogOptions(cmd *cobra.Command) spideylog.Options {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // defaults to false
	}
	return spideylog.Options{Verbose: getVerboseFlag(cmd), JSON: jsonLogs}
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.StayInternal, err = flags.GetBool("stay-internal"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Name, err = flags.GetString("name"); err != nil {
		return nil, err
	}

	kind, err := flags.GetString("transport")
	if err != nil {
		return nil, err
	}
	if cfg.Transport, err = transport.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, kind)
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	labels, err := flags.GetStringSlice("save")
	if err != nil {
		return nil, err
	}
	if cfg.SaveCategories, err = config.ParseCategories(labels); err != nil {
		return nil, err
	}
	if cfg.SaveGraph, err = flags.GetBool("graph"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("out"); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize, err = flags.GetInt64("max-file-size"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Seeds = args

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. An explicit path that does
// not exist is an error; otherwise a missing file yields an empty File.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return cf, nil
}

// runCrawl crawls every seed in cfg and reports each finished session.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, output crawlOutput) error {
	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"depth", cfg.Depth,
		"transport", cfg.Transport,
		"batch", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	var db *database.SessionDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	reportOut, closeReport, err := openReportOutput(cfg.ReportFile, output.out)
	if err != nil {
		return err
	}
	defer closeReport()
	writer := report.NewSyncWriter(newReportWriter(cfg, reportOut))

	fetchers := newFetcherPool(cfg, logger)
	defer fetchers.Close()

	progress := newProgress(output.errOut, output.quiet)
	progress.Start()
	defer progress.Stop()

	factory := func(seed string) (*pipeline.Pipeline, *pipeline.Run, error) {
		var site config.SiteConfig
		if cfg.SiteConfigs != nil {
			site = cfg.SiteConfigs.GetSiteConfig(seed)
		}
		seedCfg := cfg.Apply(site)
		if err := seedCfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("configuration for %s: %w", seed, err)
		}

		fetcher, err := fetchers.Get(ctx, seedCfg.Transport, site.Cookie, site.Headers)
		if err != nil {
			return nil, nil, fmt.Errorf("transport for %s: %w", seed, err)
		}

		spider := crawler.NewSpider(fetcher,
			crawler.WithStayInternal(seedCfg.StayInternal),
			crawler.WithConcurrency(seedCfg.Concurrency),
			crawler.WithMaxPages(seedCfg.MaxPages),
			crawler.WithIgnorePatterns(site.IgnorePatterns),
			crawler.WithFollowPatterns(site.FollowPatterns),
			crawler.WithOnScrape(progress.Scraped),
			crawler.WithLogger(logger),
		)

		pcfg := pipeline.DefaultPipelineConfig{
			Spider:     spider,
			OutDir:     seedCfg.OutputDir,
			SaveGraph:  seedCfg.SaveGraph,
			Categories: seedCfg.SaveCategories,
			Writer:     writer,
		}
		if len(seedCfg.SaveCategories) > 0 {
			pcfg.Downloader = storage.NewDownloader(fetcher, seedCfg.OutputDir,
				storage.WithDownloadConcurrency(seedCfg.DownloadConcurrency),
				storage.WithMaxFileSize(seedCfg.MaxFileSize),
				storage.WithDownloadLogger(logger),
			)
		}
		if db != nil {
			pcfg.Store = db
		}

		session := model.NewSession(seed, seedCfg.Depth, seedCfg.StayInternal)
		session.Transport = string(seedCfg.Transport)
		if cfg.Name != "" {
			session.Name = cfg.Name
		}

		p := pipeline.DefaultPipeline(pcfg, pipeline.WithLogger(logger))
		return p, pipeline.NewRun(session), nil
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var (
		mu     sync.Mutex
		failed []string
		pages  int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(run *pipeline.Run, _ int) {
		mu.Lock()
		defer mu.Unlock()

		pages += len(run.Session.Results())
		if run.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", run.Session.Seed, run.Err))
		}
	})
	progress.Stop()

	if !output.quiet {
		fmt.Fprintf(output.errOut, "Crawled %d page(s) from %d seed(s) in %s\n",
			pages, len(cfg.Seeds), time.Since(startTime).Round(time.Millisecond))
	}

	if batchErr != nil {
		return batchErr
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d crawl(s) failed:\n  %s",
			len(failed), len(cfg.Seeds), strings.Join(failed, "\n  "))
	}
	return nil
}

// openReportOutput returns the report destination: path when set,
// otherwise stdout. The returned func closes the file.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain session cookies in URLs, so keep them owner-only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // report already written
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// fetcherPool shares one Fetcher between seeds with the same transport,
// cookie and headers, so that a single embedded Tor daemon serves them all.
type fetcherPool struct {
	mu       sync.Mutex
	cfg      *config.Config
	logger   *slog.Logger
	fetchers map[string]*transport.Fetcher
}

func newFetcherPool(cfg *config.Config, logger *slog.Logger) *fetcherPool {
	return &fetcherPool{
		cfg:      cfg,
		logger:   logger,
		fetchers: make(map[string]*transport.Fetcher),
	}
}

// Get returns the Fetcher for the given settings, building it on first use.
func (fp *fetcherPool) Get(ctx context.Context, kind transport.Kind, cookie string, headers map[string]string) (*transport.Fetcher, error) {
	key := fetcherKey(kind, cookie, headers)

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if f, ok := fp.fetchers[key]; ok {
		return f, nil
	}

	f, err := transport.New(ctx, transport.Settings{
		Kind:              kind,
		ProxyAddress:      fp.cfg.ProxyAddress,
		TorStartupTimeout: fp.cfg.TorStartupTimeout,
		Timeout:           fp.cfg.Timeout,
		UserAgent:         fp.cfg.UserAgent,
		MaxBodySize:       fp.cfg.MaxBodySize,
		Cookie:            cookie,
		Headers:           headers,
		Logger:            fp.logger,
	})
	if err != nil {
		return nil, err
	}
	fp.fetchers[key] = f
	return f, nil
}

// Close releases every Fetcher, stopping embedded Tor daemons.
func (fp *fetcherPool) Close() {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	for key, f := range fp.fetchers {
		if err := f.Close(); err != nil {
			fp.logger.Error("failed to close transport", "kind", f.Kind(), "error", err)
		}
		delete(fp.fetchers, key)
	}
}

func fetcherKey(kind transport.Kind, cookie string, headers map[string]string) string {
	var sb strings.Builder
	sb.WriteString(string(kind))
	sb.WriteString("\x00")
	sb.WriteString(cookie)
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		sb.WriteString("\x00")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(headers[k])
	}
	return sb.String()
}

// progress shows a spinner with the number of pages fetched so far.
type progress struct {
	spinner *spinner.Spinner
	pages   atomic.Int64
	stopped atomic.Bool
}

func newProgress(w io.Writer, quiet bool) *progress {
	p := &progress{}
	if quiet {
		return p
	}
	opt := spinner.WithWriter(w)
	if f, ok := w.(*os.File); ok {
		opt = spinner.WithWriterFile(f)
	}
	p.spinner = spinner.New(spinner.CharSets[9], 100*time.Millisecond, opt)
	p.spinner.Suffix = " crawling..."
	return p
}

// Start shows the spinner.
func (p *progress) Start() {
	if p.spinner != nil {
		p.spinner.Start()
	}
}

// Stop hides the spinner. It is safe to call more than once.
func (p *progress) Stop() {
	if p.spinner != nil && p.stopped.CompareAndSwap(false, true) {
		p.spinner.Stop()
	}
}

// Scraped counts a fetched page. It is called from crawl goroutines.
func (p *progress) Scraped(scrape *model.Scrape) {
	n := p.pages.Add(1)
	if p.spinner == nil || p.stopped.Load() {
		return
	}
	p.spinner.Lock()
	p.spinner.Suffix = fmt.Sprintf(" crawled %d page(s), last: %s", n, scrape.Source)
	p.spinner.Unlock()
}
