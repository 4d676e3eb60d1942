package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/crawler"
	"github.com/nao1215/corpuscrawl/internal/database"
	"github.com/nao1215/corpuscrawl/internal/metrics"
	"github.com/nao1215/corpuscrawl/internal/model"
	"github.com/nao1215/corpuscrawl/internal/pipeline"
	"github.com/nao1215/corpuscrawl/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl seed URLs and append page text to the corpus",
		Long: `Crawl fetches pages breadth-first starting from the seed URLs, extracts
their visible text and appends one {"url", "content"} JSON object per page
to the output file.

URLs already present in the output file are skipped in append mode, pages
shorter than --min-content characters are discarded, and links are only
followed into --allow-domain domains when any are given.

Without seed URLs, the named --source is crawled. Without both, every
source of the configuration file is crawled, one run per source.

Examples:
  # Crawl one page and the pages it links to, up to 5 pages
  corpuscrawl crawl https://realpython.com/python-web-scraping-practical-introduction/

  # Stay on one site and collect up to 50 pages
  corpuscrawl crawl -a realpython.com -p 50 https://realpython.com/

  # Start a fresh corpus file
  corpuscrawl crawl --append=false -o corpus.jsonl https://go.dev/doc/

  # Crawl a source from .corpuscrawl and print a markdown report
  corpuscrawl crawl -s realpython --report markdown

  # Crawl every configured source and export metrics
  corpuscrawl crawl --metrics-file /var/lib/node_exporter/corpuscrawl.prom`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputPath,
		"NDJSON corpus file to write")
	cmd.Flags().Bool("append", true,
		"Keep existing records and skip their URLs (false truncates the file)")

	// Traversal flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages saved per run")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum number of link hops from a seed")
	cmd.Flags().StringSliceP("allow-domain", "a", nil,
		"Only follow links into this domain (repeatable)")
	cmd.Flags().String("domain-match", config.DefaultDomainMatch,
		"How allowed domains match hosts: suffix, substring or exact")
	cmd.Flags().Bool("follow-links", true,
		"Follow links found on saved pages")
	cmd.Flags().StringSlice("ignore", nil,
		"Skip discovered URLs whose path matches this glob (repeatable)")
	cmd.Flags().StringSlice("follow", nil,
		"Only follow discovered URLs whose path matches this glob (repeatable)")

	// Fetch flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Absolute timeout for each page fetch")
	cmd.Flags().Int("min-content", config.DefaultMinContentLength,
		"Minimum number of text characters a page needs to be saved")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"Fetch through this SOCKS5 proxy (host:port), e.g. 127.0.0.1:9050 for Tor")

	// Configuration file
	cmd.Flags().StringP("source", "s", "",
		"Named source from the configuration file")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .corpuscrawl in current or home directory)")

	// Run output flags
	cmd.Flags().String("report", "",
		"Print a run report: text, json or markdown")
	cmd.Flags().String("report-file", "",
		"Write the run report to this file, or one file per run into this directory")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics in text format to this file after the crawl")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	jobs, err := buildJobs(cmd, args)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := job.Config.Validate(); err != nil {
			return fmt.Errorf("configuration error for %s: %w", job.Name, err)
		}
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, finishing current page...")
			cancel()
		case <-ctx.Done():
		}
	}()

	printReport := cmd.Flags().Changed("report")
	return runCrawl(ctx, cmd.OutOrStdout(), jobs, printReport, logger)
}

// buildJobs resolves the command line and the configuration file into one
// job per crawl run.
func buildJobs(cmd *cobra.Command, args []string) ([]pipeline.Job, error) {
	base := config.NewConfig()

	var err error
	base.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := base.ConfigFilePath != ""
	configPath := config.FindConfigFile(base.ConfigFilePath)

	if configPath != "" {
		base.Sources, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, base.ConfigFilePath)
	} else {
		base.Sources = &config.File{
			Sources: make(map[string]config.SourceConfig),
		}
	}

	// The defaults section applies to ad-hoc seeds as well as to sources.
	// Its seeds are only used when nothing else names a seed.
	defaults := base.Sources.Defaults
	defaults.Seeds = nil
	defaults.ApplyTo(base)

	sourceName, err := cmd.Flags().GetString("source")
	if err != nil {
		return nil, err
	}

	var names []string
	switch {
	case len(args) > 0:
		cfg := base.Clone()
		if sourceName != "" {
			if err := applySource(cfg, sourceName); err != nil {
				return nil, err
			}
		}
		cfg.SeedURLs = args
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
		return []pipeline.Job{{Name: jobName(cfg), Config: cfg}}, nil
	case sourceName != "":
		names = []string{sourceName}
	default:
		names = base.Sources.Names()
	}

	if len(names) == 0 {
		if len(base.Sources.Defaults.Seeds) > 0 {
			cfg := base.Clone()
			cfg.SeedURLs = slices.Clone(base.Sources.Defaults.Seeds)
			if err := applyFlags(cmd, cfg); err != nil {
				return nil, err
			}
			return []pipeline.Job{{Name: jobName(cfg), Config: cfg}}, nil
		}
		return nil, fmt.Errorf("%w (give seed URLs as arguments or configure sources with 'corpuscrawl init')", config.ErrNoSeed)
	}

	jobs := make([]pipeline.Job, 0, len(names))
	for _, name := range names {
		cfg := base.Clone()
		if err := applySource(cfg, name); err != nil {
			return nil, err
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
		jobs = append(jobs, pipeline.Job{Name: name, Config: cfg})
	}
	return jobs, nil
}

// applySource overlays the named source of cfg.Sources onto cfg.
func applySource(cfg *config.Config, name string) error {
	sc, err := cfg.Sources.GetSourceConfig(name)
	if err != nil {
		return err
	}
	sc.ApplyTo(cfg)
	cfg.SourceName = name
	return nil
}

// jobName labels an ad-hoc job with its first seed.
func jobName(cfg *config.Config) string {
	if cfg.SourceName != "" {
		return cfg.SourceName
	}
	if len(cfg.SeedURLs) > 0 {
		return cfg.SeedURLs[0]
	}
	return "adhoc"
}

// applyFlags copies the flags the user set explicitly onto cfg.
// Flags left at their default never override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("output") {
		if cfg.OutputPath, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("append") {
		if cfg.AppendMode, err = flags.GetBool("append"); err != nil {
			return err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if flags.Changed("max-depth") {
		if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return err
		}
	}
	if flags.Changed("allow-domain") {
		if cfg.AllowedDomains, err = flags.GetStringSlice("allow-domain"); err != nil {
			return err
		}
	}
	if flags.Changed("domain-match") {
		if cfg.DomainMatch, err = flags.GetString("domain-match"); err != nil {
			return err
		}
	}
	if flags.Changed("follow-links") {
		if cfg.FollowLinks, err = flags.GetBool("follow-links"); err != nil {
			return err
		}
	}
	if flags.Changed("ignore") {
		if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
			return err
		}
	}
	if flags.Changed("follow") {
		if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("min-content") {
		if cfg.MinContentLength, err = flags.GetInt("min-content"); err != nil {
			return err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}

	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return err
	}
	if flags.Changed("report") {
		if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
			return err
		}
	}

	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noHistory
	cfg.Verbose = getVerboseFlag(cmd)

	return nil
}

// runCrawl runs every job through the batch processor and prints one line
// per finished run to out.
//
// Run-wide settings (history database, report, metrics file) are taken
// from the first job. Per-page failures never make it fail; an output file
// that cannot be opened or written does. A history database that cannot be
// opened is logged and skipped.
func runCrawl(ctx context.Context, out io.Writer, jobs []pipeline.Job, printReport bool, logger *slog.Logger, runOpts ...crawler.RunOption) error {
	if len(jobs) == 0 {
		return config.ErrNoSeed
	}
	settings := jobs[0].Config

	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}

	var db *database.CrawlDB
	if settings.SaveToDB {
		db, err = database.Open(settings.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("history database unavailable, runs will not be recorded",
				"dir", settings.DBDir, "error", err)
			db = nil
		} else {
			defer db.Close()
			logger.Debug("history database opened", "path", db.Path())
		}
	}

	var stdoutReport report.Writer
	if printReport {
		stdoutReport, err = report.NewWriter(settings.ReportFormat, out, getVersion(), settings.Verbose)
		if err != nil {
			return err
		}
	}

	run := func(ctx context.Context, job pipeline.Job) (*model.RunSummary, error) {
		opts := []crawler.RunOption{
			crawler.WithRunLogger(logger.With("job", job.Name)),
			crawler.WithSpiderOptions(crawler.WithRecorder(collector.ForSource(job.Config.SourceName))),
		}
		opts = append(opts, runOpts...)
		return crawler.Run(ctx, job.Config, opts...)
	}

	factory := func(_ pipeline.Job) *pipeline.Pipeline {
		p := pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)
		if db != nil {
			p.AddStep(pipeline.NewHistoryStep(db))
		}
		p.AddStep(pipeline.NewMetricsStep(collector))
		if stdoutReport != nil {
			p.AddStep(pipeline.NewReportStep(stdoutReport))
		}
		if settings.ReportFile != "" {
			p.AddStep(pipeline.NewReportFileStep(settings.ReportFile, settings.ReportFormat, getVersion(),
				pipeline.WithPerRunFileNames(len(jobs) > 1)))
		}
		return p
	}

	bp := pipeline.NewBatchProcessor(run, factory, pipeline.WithBatchLogger(logger))

	startTime := time.Now()
	var fatal []error
	batchErr := bp.ProcessBatchWithCallback(ctx, jobs, func(result *pipeline.Result, index int) {
		if result.Skipped {
			return
		}
		if result.Summary != nil {
			status := ""
			if result.Summary.Interrupted {
				status = " (interrupted)"
			}
			fmt.Fprintf(out, "[%d/%d] %s: saved %d page(s) to %s%s\n",
				index+1, len(jobs), result.Job.Name, result.Summary.Saved, result.Summary.OutputPath, status)
		}
		if result.PipelineErr != nil {
			logger.Warn("post-run steps failed", "job", result.Job.Name, "error", result.PipelineErr)
		}
		if result.Err != nil {
			fatal = append(fatal, fmt.Errorf("%s: %w", result.Job.Name, result.Err))
		}
	})

	if len(jobs) > 1 {
		fmt.Fprintf(out, "Crawled %d source(s) in %s\n", len(jobs), time.Since(startTime).Round(time.Millisecond))
	}

	if settings.MetricsFile != "" {
		if err := collector.WriteTextfile(settings.MetricsFile); err != nil {
			logger.Error("failed to write metrics file", "error", err)
		}
	}

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		fatal = append(fatal, batchErr)
	}
	return errors.Join(fatal...)
}
