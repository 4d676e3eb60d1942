// Package metrics exports crawl counters in the Prometheus text format.
//
// A crawl is a short-lived batch job, so metrics are not served over HTTP.
// Instead the Collector writes a textfile that node_exporter's textfile
// collector (or any scraper that reads files) can pick up.
package metrics
