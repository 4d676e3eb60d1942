// Package crawler implements the bounded breadth-first web crawler that
// builds the text corpus.
//
// # Architecture
//
// The Spider owns the crawl state for one run:
//
//   - Frontier: FIFO queue of (URL, depth) entries
//   - DedupStore: URLs persisted by earlier runs plus URLs visited in this run
//   - ExtensionFilter, DomainPolicy, PathFilter: immutable URL filters
//   - Fetcher: performs one HTTP GET with a fixed timeout
//   - Extract: turns HTML into visible text, a title and links
//
// Each loop iteration pops one entry, discards it if it was seen before or
// fails a filter, marks it visited, fetches and extracts it, and writes an
// accepted page to the corpus. Only accepted pages expand the frontier, and
// only while their depth is below the configured maximum. The loop ends when
// the frontier is empty, the page cap is reached, or the context is done.
//
// # Failure isolation
//
// Every per-URL failure (transport, HTTP status, content type, short
// content) is logged, recorded in the run summary and skipped. Only a
// failure of the corpus sink stops the run.
//
// # Usage
//
//	summary, err := crawler.Run(ctx, cfg, crawler.WithRunLogger(logger))
//	if err != nil {
//		return err
//	}
//	fmt.Printf("saved %d page(s)\n", summary.Saved)
package crawler
