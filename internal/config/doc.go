// Package config provides configuration structures and utilities for corpuscrawl.
// It defines the crawl limits, filtering policy, output settings and the
// optional YAML file of named crawl sources.
package config
