// Package pipeline runs crawl jobs and the steps that follow each run.
//
// A Pipeline is an ordered list of Steps that receive the finished
// model.RunSummary: saving it to the history database, feeding metrics
// and rendering reports. A BatchProcessor runs several jobs (one per
// configured source) through crawler.Run and a fresh Pipeline each, with
// concurrency control using errgroup.
package pipeline
