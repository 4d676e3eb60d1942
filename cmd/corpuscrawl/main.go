// Package main provides the entry point for the corpuscrawl CLI.
//
// corpuscrawl crawls web pages breadth-first from seed URLs, extracts their
// visible text and appends it to an NDJSON corpus file for language model
// training. Every run is recorded in a local history database.
//
// Usage:
//
//	corpuscrawl crawl <seed-url>...
//	corpuscrawl crawl --source <name>
//	corpuscrawl history
//
// See --help for all available options.
package main

// main is the entry point for corpuscrawl.
func main() {
	Execute()
}
