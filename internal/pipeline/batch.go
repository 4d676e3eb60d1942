package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/model"
)

// Job is one crawl in a batch, usually one configured source.
type Job struct {
	// Name labels the job in logs and results.
	Name string

	// Config is the fully resolved crawl configuration.
	Config *config.Config
}

// RunFunc executes a single crawl job.
// crawler.Run wrapped in a closure is the production implementation.
type RunFunc func(ctx context.Context, job Job) (*model.RunSummary, error)

// Result is the outcome of one job.
type Result struct {
	// Job is the job that produced the result.
	Job Job

	// Summary is nil when the run failed before crawling.
	Summary *model.RunSummary

	// Err is the error returned by the run, if any.
	Err error

	// PipelineErr is the error from the post-run steps, if any.
	PipelineErr error

	// Skipped is true when the batch was cancelled before the job started.
	Skipped bool
}

// BatchProcessor runs several crawl jobs and the post-run pipeline for
// each of them.
//
// The default concurrency is 1. Raising it is only safe when the jobs
// write to different corpus files, because deduplication state is loaded
// once per run.
type BatchProcessor struct {
	// run executes one job.
	run RunFunc

	// pipelineFactory creates a fresh pipeline for each finished job.
	pipelineFactory func(job Job) *Pipeline

	// concurrency is the maximum number of jobs running at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed jobs in input order.
	results []*Result
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory may be nil when no post-run steps are needed.
func NewBatchProcessor(run RunFunc, pipelineFactory func(job Job) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		run:             run,
		pipelineFactory: pipelineFactory,
		concurrency:     1,
		results:         make([]*Result, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every job and returns one Result per job in input
// order.
//
// A failing job never stops the others. Cancellation interrupts the
// running jobs (they still produce partial summaries, which go through
// the pipeline) and skips the ones not yet started; the context error is
// then returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]*Result, error) {
	err := bp.ProcessBatchWithCallback(ctx, jobs, nil)
	return bp.results, err
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked as each
// job completes. With concurrency above 1 the callback must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []Job,
	callback func(result *Result, index int),
) error {
	bp.logger.Info("starting batch",
		"total_jobs", len(jobs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				bp.store(i, &Result{Job: job, Err: gctx.Err(), Skipped: true}, callback)
				return gctx.Err()
			default:
			}

			bp.logger.Info("running job",
				"job", job.Name,
				"index", i+1,
				"total", len(jobs),
			)

			result := bp.runJob(gctx, job)
			bp.store(i, result, callback)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch complete",
		"total_jobs", len(jobs),
		"elapsed", time.Since(startTime),
	)

	return err
}

// runJob executes one job and its pipeline.
func (bp *BatchProcessor) runJob(ctx context.Context, job Job) *Result {
	result := &Result{Job: job}

	summary, err := bp.run(ctx, job)
	result.Summary = summary
	result.Err = err
	if err != nil {
		bp.logger.Error("job failed",
			"job", job.Name,
			"error", err,
		)
	}

	if summary == nil || bp.pipelineFactory == nil {
		return result
	}

	// Interrupted runs are still recorded.
	p := bp.pipelineFactory(job)
	result.PipelineErr = p.Execute(context.WithoutCancel(ctx), summary)

	bp.logger.Info("job completed",
		"job", job.Name,
		"saved", summary.Saved,
		"rejected", summary.Rejected(),
		"interrupted", summary.Interrupted,
	)

	return result
}

// store saves a result and invokes the callback.
func (bp *BatchProcessor) store(i int, result *Result, callback func(*Result, int)) {
	bp.mu.Lock()
	bp.results[i] = result
	bp.mu.Unlock()

	if callback != nil {
		callback(result, i)
	}
}
