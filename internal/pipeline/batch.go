package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spidey/internal/model"
)

// DefaultBatchConcurrency is the number of seeds crawled at once.
const DefaultBatchConcurrency = 4

// Factory builds the pipeline and run for one seed. Per-site settings
// such as depth or cookies are applied here, so every seed gets its own
// pipeline instance.
type Factory func(seed string) (*Pipeline, *Run, error)

// BatchProcessor crawls several seeds concurrently.
type BatchProcessor struct {
	factory Factory

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls seeds concurrently and returns one Run per seed in
// input order. A failed seed keeps its Run with Err set and does not stop
// the others. The error is ctx.Err() when cancellation kept some seeds
// from starting; their Runs are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*Run, error) {
	results := make([]*Run, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(run *Run, index int) {
		results[index] = run
	})
	return results, err
}

// ProcessBatchWithCallback crawls seeds and calls callback with each
// finished Run and the index of its seed. callback runs on the crawl's
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(run *Run, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			p, run, err := bp.factory(seed)
			if err != nil {
				run = NewRun(model.NewSession(seed, 0, false))
				run.Err = err
				bp.logger.Warn("crawl setup failed", "seed", seed, "error", err)
				callback(run, i)
				return nil
			}

			if err := p.Execute(ctx, run); err != nil {
				bp.logger.Warn("crawl failed", "seed", seed, "error", err)
			} else {
				bp.logger.Info("crawl completed", "seed", seed)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return err
}
