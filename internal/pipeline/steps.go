package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/spidey/internal/crawler"
	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/report"
	"github.com/nao1215/spidey/internal/storage"
)

// CrawlStep traverses the site from the session seed.
type CrawlStep struct {
	spider *crawler.Spider
}

// NewCrawlStep creates a crawl step backed by spider.
func NewCrawlStep(spider *crawler.Spider) *CrawlStep {
	return &CrawlStep{spider: spider}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls and stamps the session end time, also when the crawl was
// cancelled part way.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	defer run.Session.Finish()
	return s.spider.Crawl(ctx, run.Session)
}

// GraphStep writes the link graph CSV of every page that has links.
type GraphStep struct {
	outDir string
	logger *slog.Logger
}

// GraphStepOption configures a GraphStep.
type GraphStepOption func(*GraphStep)

// WithGraphLogger sets a custom logger for the graph step.
func WithGraphLogger(logger *slog.Logger) GraphStepOption {
	return func(s *GraphStep) {
		s.logger = logger
	}
}

// NewGraphStep creates a graph step writing below outDir.
func NewGraphStep(outDir string, opts ...GraphStepOption) *GraphStep {
	s := &GraphStep{
		outDir: outDir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *GraphStep) Name() string {
	return "graph"
}

// Do writes one graph file per page, an empty one for pages without
// links. A page that cannot be written is logged and skipped.
func (s *GraphStep) Do(ctx context.Context, run *Run) error {
	for _, scrape := range run.Session.Results() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := storage.WriteGraph(s.outDir, run.Session.Seed, scrape)
		if err != nil {
			s.logger.Warn("graph not written",
				"page", scrape.Source,
				"error", err,
				spideylog.Failure(model.FailurePersistence))
			continue
		}
		run.AddGraph(path)
	}
	return nil
}

// DownloadStep saves the members of the selected categories to disk.
type DownloadStep struct {
	downloader *storage.Downloader
	categories []model.Category
}

// NewDownloadStep creates a download step for categories.
func NewDownloadStep(downloader *storage.Downloader, categories []model.Category) *DownloadStep {
	return &DownloadStep{
		downloader: downloader,
		categories: categories,
	}
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download"
}

// Do saves every URL of the selected categories, page by page. Failed
// items are recorded in the Run and do not stop the step.
func (s *DownloadStep) Do(ctx context.Context, run *Run) error {
	for _, scrape := range run.Session.Results() {
		for _, c := range s.categories {
			if err := ctx.Err(); err != nil {
				return err
			}
			urls := scrape.Set(c).Sorted()
			if len(urls) == 0 {
				continue
			}
			run.AddDownloads(s.downloader.Save(ctx, run.Session.Seed, c, scrape.Source, urls)...)
		}
	}
	return nil
}

// SessionStore persists sessions. database.SessionDB implements it.
type SessionStore interface {
	SaveSession(ctx context.Context, session *model.Session) (int64, error)
	SaveDownloads(ctx context.Context, sessionID int64, downloads []model.Download) error
}

// DatabaseStep stores the session and its downloads.
type DatabaseStep struct {
	store SessionStore
}

// NewDatabaseStep creates a database step.
func NewDatabaseStep(store SessionStore) *DatabaseStep {
	return &DatabaseStep{store: store}
}

// Name returns the step name.
func (s *DatabaseStep) Name() string {
	return "database"
}

// Do saves the session, then its downloads.
func (s *DatabaseStep) Do(ctx context.Context, run *Run) error {
	id, err := s.store.SaveSession(ctx, run.Session)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	run.SessionID = id

	if err := s.store.SaveDownloads(ctx, id, run.Downloads); err != nil {
		return fmt.Errorf("save downloads: %w", err)
	}
	return nil
}

// ReportStep renders the run with a report writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a report step.
func NewReportStep(writer report.Writer) *ReportStep {
	return &ReportStep{writer: writer}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, run *Run) error {
	if _, err := s.writer.Write(run.Report()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// DefaultPipelineConfig selects the steps of DefaultPipeline. Nil or empty
// fields leave their step out; the crawl step is always present.
type DefaultPipelineConfig struct {
	Spider *crawler.Spider

	// OutDir enables the graph step when SaveGraph is set.
	OutDir    string
	SaveGraph bool

	// Downloader and Categories enable the download step.
	Downloader *storage.Downloader
	Categories []model.Category

	// Store enables the database step.
	Store SessionStore

	// Writer enables the report step.
	Writer report.Writer
}

// DefaultPipeline creates a pipeline with the steps cfg enables, in the
// order crawl, graph, download, database, report.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddStep(NewCrawlStep(cfg.Spider))

	if cfg.SaveGraph && cfg.OutDir != "" {
		p.AddStep(NewGraphStep(cfg.OutDir, WithGraphLogger(p.logger)))
	}
	if cfg.Downloader != nil && len(cfg.Categories) > 0 {
		p.AddStep(NewDownloadStep(cfg.Downloader, cfg.Categories))
	}
	if cfg.Store != nil {
		p.AddStep(NewDatabaseStep(cfg.Store))
	}
	if cfg.Writer != nil {
		p.AddStep(NewReportStep(cfg.Writer))
	}
	return p
}
