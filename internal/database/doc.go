// Package database provides SQLite-based run history for corpuscrawl.
//
// The CrawlDB stores:
//   - One row per crawl run with its limits, counters and rejection tallies
//   - Every processed frontier entry of a run, in processing order
//
// The corpus file itself stays the source of truth for deduplication.
// The history database only answers "what happened in past runs".
// It lives in the XDG data directory and uses modernc.org/sqlite, so no
// CGO toolchain is needed.
package database
