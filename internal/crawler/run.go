package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/corpus"
	"github.com/nao1215/corpuscrawl/internal/model"
)

// Run executes one crawl described by cfg.
//
// It opens the corpus file once (append or truncate), loads the persisted
// URLs when cfg.AppendMode is set, builds the HTTP fetcher and filters from
// cfg and runs a Spider over cfg.SeedURLs. Extra options are applied after
// the ones derived from cfg, so tests can replace the fetcher with
// WithFetcher.
//
// A corpus open or load failure is returned as *corpus.OutputOpenError
// before any fetch. A malformed cfg.Proxy fails before any fetch as well.
func Run(ctx context.Context, cfg *config.Config, opts ...RunOption) (*model.RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ro := &runOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(ro)
	}

	domains, err := NewDomainPolicy(cfg.AllowedDomains, cfg.DomainMatch)
	if err != nil {
		return nil, err
	}

	writer, err := corpus.Open(cfg.OutputPath, cfg.AppendMode)
	if err != nil {
		return nil, err
	}

	dedup := NewDedupStore()
	if cfg.AppendMode {
		n, err := dedup.Load(cfg.OutputPath)
		if err != nil {
			_ = writer.Close()
			return nil, &corpus.OutputOpenError{Path: cfg.OutputPath, Err: err}
		}
		ro.logger.Debug("loaded persisted URLs", "output", cfg.OutputPath, "count", n)
	}

	fetcher := ro.fetcher
	if fetcher == nil {
		fetcherOpts := []FetcherOption{
			WithTimeout(cfg.Timeout),
			WithUserAgent(cfg.UserAgent),
			WithCookie(cfg.Cookie),
			WithHeaders(cfg.Headers),
			WithMaxBodySize(cfg.MaxBodySize),
		}
		if cfg.Proxy != "" {
			client, err := NewSOCKS5Client(cfg.Proxy)
			if err != nil {
				_ = writer.Close()
				return nil, err
			}
			fetcherOpts = append(fetcherOpts, WithHTTPClient(client))
			ro.logger.Debug("fetching through SOCKS5 proxy", "proxy", cfg.Proxy)
		}
		fetcher = NewHTTPFetcher(fetcherOpts...)
	}

	spiderOpts := []SpiderOption{
		WithMaxPages(cfg.MaxPages),
		WithMaxDepth(cfg.MaxDepth),
		WithMinContentLength(cfg.MinContentLength),
		WithFollowLinks(cfg.FollowLinks),
		WithDomainPolicy(domains),
		WithPathFilter(NewPathFilter(cfg.IgnorePatterns, cfg.FollowPatterns)),
		WithDedupStore(dedup),
		WithLogger(ro.logger),
		WithSource(cfg.SourceName),
	}
	spiderOpts = append(spiderOpts, ro.spiderOpts...)

	spider := NewSpider(fetcher, writer, spiderOpts...)
	summary, crawlErr := spider.Crawl(ctx, cfg.SeedURLs)
	if summary != nil {
		summary.OutputPath = cfg.OutputPath
	}

	if closeErr := writer.Close(); closeErr != nil {
		crawlErr = errors.Join(crawlErr, fmt.Errorf("failed to close output file: %w", closeErr))
	}

	return summary, crawlErr
}

// runOptions collects RunOption values.
type runOptions struct {
	fetcher    Fetcher
	logger     *slog.Logger
	spiderOpts []SpiderOption
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithFetcher replaces the HTTP fetcher built from the configuration.
func WithFetcher(f Fetcher) RunOption {
	return func(o *runOptions) {
		o.fetcher = f
	}
}

// WithRunLogger sets the logger used by Run and the Spider.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSpiderOptions appends options to the Spider built by Run.
func WithSpiderOptions(opts ...SpiderOption) RunOption {
	return func(o *runOptions) {
		o.spiderOpts = append(o.spiderOpts, opts...)
	}
}
