// Package model defines the data structures shared across corpuscrawl.
//
// This package contains the following main types:
//   - CrawlRecord: One accepted page as persisted in the corpus file
//   - RejectReason: Why a frontier entry was discarded
//   - Visit: The outcome of processing a single frontier entry
//   - RunSummary: Aggregated results of one crawl run
//
// The crawler, history database and report writers all depend on these
// types, so they live in their own package to avoid import cycles.
package model
