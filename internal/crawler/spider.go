package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// RecordWriter persists accepted pages. *corpus.Writer implements it.
type RecordWriter interface {
	Write(record model.CrawlRecord) error
}

// Recorder observes every processed frontier entry.
// Recorders run synchronously inside the crawl loop.
type Recorder interface {
	RecordVisit(visit model.Visit)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(visit model.Visit)

// RecordVisit calls f(visit).
func (f RecorderFunc) RecordVisit(visit model.Visit) {
	f(visit)
}

// Spider crawls pages breadth-first from a set of seeds and writes the
// accepted ones to a RecordWriter.
// A Spider holds the state of a single run and must not be reused.
type Spider struct {
	// fetcher retrieves pages.
	fetcher Fetcher

	// writer receives accepted records.
	writer RecordWriter

	// maxPages caps the number of records written.
	maxPages int

	// maxDepth limits how far traversal expands from the seeds.
	// 0 means only the seeds, 1 means seeds plus the pages they link, etc.
	maxDepth int

	// minContentLength is the minimum extracted text length in characters.
	minContentLength int

	// followLinks enables link discovery on accepted pages.
	followLinks bool

	// extensions rejects binary and media URLs.
	extensions *ExtensionFilter

	// domains limits discovered links to the allowed domains.
	domains *DomainPolicy

	// paths applies ignore and follow patterns to discovered links.
	paths *PathFilter

	// dedup holds persisted and visited URLs.
	dedup *DedupStore

	// frontier is the queue of pending entries.
	frontier *Frontier

	// recorders observe each visit.
	recorders []Recorder

	// logger receives one line per processed entry.
	logger *slog.Logger

	// runID and source label the summary.
	runID  string
	source string

	// used is set once Crawl has started.
	used bool
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of records written in the run.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seeds, 1 = seeds plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMinContentLength sets the minimum extracted text length.
func WithMinContentLength(n int) SpiderOption {
	return func(s *Spider) {
		s.minContentLength = n
	}
}

// WithFollowLinks enables or disables link discovery.
func WithFollowLinks(follow bool) SpiderOption {
	return func(s *Spider) {
		s.followLinks = follow
	}
}

// WithExtensionFilter replaces the default extension denylist.
func WithExtensionFilter(f *ExtensionFilter) SpiderOption {
	return func(s *Spider) {
		if f != nil {
			s.extensions = f
		}
	}
}

// WithDomainPolicy restricts discovered links to allowed domains.
func WithDomainPolicy(p *DomainPolicy) SpiderOption {
	return func(s *Spider) {
		if p != nil {
			s.domains = p
		}
	}
}

// WithPathFilter applies ignore and follow patterns to discovered links.
func WithPathFilter(f *PathFilter) SpiderOption {
	return func(s *Spider) {
		if f != nil {
			s.paths = f
		}
	}
}

// WithDedupStore sets the store of already persisted URLs.
func WithDedupStore(d *DedupStore) SpiderOption {
	return func(s *Spider) {
		if d != nil {
			s.dedup = d
		}
	}
}

// WithRecorder adds a visit observer.
func WithRecorder(r Recorder) SpiderOption {
	return func(s *Spider) {
		if r != nil {
			s.recorders = append(s.recorders, r)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRunID sets the run identifier. A random UUID is used otherwise.
func WithRunID(id string) SpiderOption {
	return func(s *Spider) {
		s.runID = id
	}
}

// WithSource labels the run with a configured source name.
func WithSource(name string) SpiderOption {
	return func(s *Spider) {
		s.source = name
	}
}

// NewSpider creates a Spider that fetches with fetcher and writes accepted
// pages to writer.
func NewSpider(fetcher Fetcher, writer RecordWriter, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:          fetcher,
		writer:           writer,
		maxPages:         5,
		maxDepth:         2,
		minContentLength: 200,
		followLinks:      true,
		extensions:       DefaultExtensionFilter(),
		paths:            NewPathFilter(nil, nil),
		dedup:            NewDedupStore(),
		frontier:         NewFrontier(),
		recorders:        make([]Recorder, 0),
		logger:           slog.Default(),
	}

	// Unrestricted policy; cannot fail.
	s.domains, _ = NewDomainPolicy(nil, "")

	for _, opt := range opts {
		opt(s)
	}

	if s.runID == "" {
		s.runID = uuid.New().String()
	}

	return s
}

// Crawl runs the crawl loop from the given seeds.
//
// Seeds are normalized and deduplicated in order, first occurrence wins.
// Seeds with a denylisted extension never enter the frontier. The loop
// then runs until the frontier is empty, maxPages records were written, or
// ctx is done. Per-URL failures are recorded in the summary and never
// returned. An error is returned only when the writer fails, together with
// the summary of the work done so far.
func (s *Spider) Crawl(ctx context.Context, seeds []string) (*model.RunSummary, error) {
	if s.used {
		return nil, fmt.Errorf("spider already used for run %s", s.runID)
	}
	s.used = true

	summary := model.NewRunSummary(s.runID, "")
	summary.Source = s.source
	summary.MaxPages = s.maxPages
	summary.MaxDepth = s.maxDepth
	summary.Persisted = s.dedup.Loaded()

	s.seed(summary, seeds)

	s.logger.Info("crawl started",
		"run_id", s.runID,
		"seeds", len(summary.Seeds),
		"max_pages", s.maxPages,
		"max_depth", s.maxDepth,
		"persisted", summary.Persisted,
	)

	err := s.loop(ctx, summary)

	summary.Pending = s.frontier.Len()
	summary.FinishedAt = time.Now()

	s.logger.Info("crawl finished",
		"run_id", s.runID,
		"saved", summary.Saved,
		"rejected", summary.Rejected(),
		"pending", summary.Pending,
		"interrupted", summary.Interrupted,
	)

	return summary, err
}

// seed loads the seeds into the frontier.
func (s *Spider) seed(summary *model.RunSummary, seeds []string) {
	for _, raw := range seeds {
		u := Normalize(raw)
		if s.extensions.IsDisallowed(u) {
			s.reject(summary, FrontierEntry{URL: u}, model.ReasonExtension, nil)
			continue
		}
		if s.frontier.Push(FrontierEntry{URL: u, Depth: 0}) {
			summary.Seeds = append(summary.Seeds, u)
		}
	}
}

// loop processes frontier entries until a terminal condition holds.
func (s *Spider) loop(ctx context.Context, summary *model.RunSummary) error {
	for s.frontier.Len() > 0 && summary.Saved < s.maxPages {
		if ctx.Err() != nil {
			summary.Interrupted = true
			s.logger.Warn("crawl interrupted", "reason", ctx.Err())
			return nil
		}

		entry, _ := s.frontier.Pop()
		entry.URL = Normalize(entry.URL)

		if reason, ok := s.admit(entry); !ok {
			s.reject(summary, entry, reason, nil)
			continue
		}

		s.dedup.MarkVisited(entry.URL)

		resp, err := s.fetcher.Fetch(ctx, entry.URL)
		if err != nil {
			if ctx.Err() != nil {
				// The fetch was cut short by cancellation, not by the page.
				summary.Interrupted = true
				s.logger.Warn("crawl interrupted", "url", entry.URL, "reason", ctx.Err())
				return nil
			}
			s.reject(summary, entry, ReasonFor(err), err)
			continue
		}

		doc, err := Extract(resp.URL, resp.Body)
		if err != nil {
			reason := model.ReasonContentType
			if errors.Is(err, ErrInvalidPageURL) {
				reason = model.ReasonInvalidURL
			}
			s.rejectVisit(summary, model.Visit{
				URL:        entry.URL,
				Depth:      entry.Depth,
				Reason:     reason,
				StatusCode: resp.StatusCode,
			}, fmt.Errorf("failed to extract %s: %w", entry.URL, err))
			continue
		}

		length := doc.Length()
		if length == 0 || length < s.minContentLength {
			s.rejectVisit(summary, model.Visit{
				URL:           entry.URL,
				Depth:         entry.Depth,
				Reason:        model.ReasonTooShort,
				StatusCode:    resp.StatusCode,
				ContentLength: length,
			}, &ContentTooShortError{URL: entry.URL, Length: length, Min: s.minContentLength})
			continue
		}

		if err := s.writer.Write(model.CrawlRecord{URL: entry.URL, Content: doc.Text}); err != nil {
			return fmt.Errorf("failed to save %s: %w", entry.URL, err)
		}
		s.dedup.MarkSaved(entry.URL)

		s.accept(summary, model.Visit{
			URL:           entry.URL,
			Depth:         entry.Depth,
			Accepted:      true,
			StatusCode:    resp.StatusCode,
			ContentLength: length,
		}, doc.Title)

		if s.followLinks && entry.Depth < s.maxDepth {
			s.expand(entry, doc.Links)
		}
	}

	return nil
}

// admit applies the pop-time checks to an entry.
// Domain and path checks only apply to discovered entries; seeds are
// always in scope.
func (s *Spider) admit(entry FrontierEntry) (model.RejectReason, bool) {
	if _, ok := parseCrawlable(entry.URL); !ok {
		return model.ReasonInvalidURL, false
	}
	if s.dedup.Contains(entry.URL) {
		return model.ReasonDuplicate, false
	}
	if s.extensions.IsDisallowed(entry.URL) {
		return model.ReasonExtension, false
	}
	if entry.Depth > 0 {
		if !s.domains.InScope(entry.URL) {
			return model.ReasonDomain, false
		}
		if !s.paths.Allows(entry.URL) {
			return model.ReasonIgnored, false
		}
	}
	return model.ReasonNone, true
}

// expand pushes the links of an accepted page at depth+1, in document
// order, after applying the discovery-time filters.
func (s *Spider) expand(parent FrontierEntry, links []string) {
	queued := 0
	for _, link := range links {
		u := Normalize(link)
		if _, ok := parseCrawlable(u); !ok {
			continue
		}
		if s.extensions.IsDisallowed(u) || !s.domains.InScope(u) || !s.paths.Allows(u) {
			continue
		}
		if s.dedup.Contains(u) {
			continue
		}
		if s.frontier.Push(FrontierEntry{URL: u, Depth: parent.Depth + 1}) {
			queued++
		}
	}

	s.logger.Debug("links discovered",
		"url", parent.URL,
		"links", len(links),
		"queued", queued,
	)
}

// accept records an accepted visit.
func (s *Spider) accept(summary *model.RunSummary, visit model.Visit, title string) {
	summary.Record(visit)
	s.notify(visit)

	s.logger.Info("page saved",
		"url", visit.URL,
		"depth", visit.Depth,
		"title", title,
		"chars", visit.ContentLength,
		"saved", summary.Saved,
	)
}

// reject records a rejected entry that produced no response.
func (s *Spider) reject(summary *model.RunSummary, entry FrontierEntry, reason model.RejectReason, err error) {
	s.rejectVisit(summary, model.Visit{
		URL:        entry.URL,
		Depth:      entry.Depth,
		Reason:     reason,
		StatusCode: statusCodeOf(err),
	}, err)
}

// rejectVisit records a rejected visit and logs it. Fetch failures are
// logged at Warn, filter decisions at Info.
func (s *Spider) rejectVisit(summary *model.RunSummary, visit model.Visit, err error) {
	if err != nil {
		visit.Error = err.Error()
	}
	summary.Record(visit)
	s.notify(visit)

	attrs := []any{"url", visit.URL, "depth", visit.Depth, "reason", visit.Reason.String()}
	if err != nil {
		attrs = append(attrs, "error", err)
	}

	if visit.Reason.IsFetchFailure() {
		s.logger.Warn("page rejected", attrs...)
		return
	}
	s.logger.Info("page skipped", attrs...)
}

// notify passes a visit to every recorder.
func (s *Spider) notify(visit model.Visit) {
	for _, r := range s.recorders {
		r.RecordVisit(visit)
	}
}

// Frontier returns the spider's frontier. Entries still queued after a
// run are the ones cut off by the page cap or cancellation.
func (s *Spider) Frontier() *Frontier {
	return s.frontier
}
