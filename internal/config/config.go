package config

import (
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "corpuscrawl"

	// DefaultOutputPath is the corpus file written when no path is given.
	DefaultOutputPath = "web_corpus.jsonl"

	// DefaultMaxPages caps the number of records saved per run.
	DefaultMaxPages = 5

	// DefaultMaxDepth is the number of link hops followed from each seed.
	// Depth 0 means only the seeds themselves are fetched.
	DefaultMaxDepth = 2

	// DefaultTimeout is the absolute timeout for a single page fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMinContentLength is the minimum number of characters of
	// visible text a page needs to be saved. Shorter pages are usually
	// login walls, redirect shells or empty templates.
	DefaultMinContentLength = 200

	// DefaultUserAgent identifies corpuscrawl in HTTP requests.
	DefaultUserAgent = "corpuscrawl/1.0 (+https://github.com/nao1215/corpuscrawl)"

	// DefaultMaxBodySize limits the response body read for one page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultDomainMatch is the domain policy used when none is configured.
	DefaultDomainMatch = DomainMatchSuffix
)

// Domain match modes accepted by DomainMatch.
const (
	// DomainMatchSuffix accepts a host equal to an allowed domain or ending
	// with "." followed by it.
	DomainMatchSuffix = "suffix"

	// DomainMatchSubstring accepts any host containing an allowed domain.
	// notexample.com matches example.com in this mode.
	DomainMatchSubstring = "substring"

	// DomainMatchExact accepts only hosts equal to an allowed domain.
	// Subdomains are out of scope in this mode.
	DomainMatchExact = "exact"
)

// Report formats accepted by ReportFormat.
const (
	ReportFormatText     = "text"
	ReportFormatJSON     = "json"
	ReportFormatMarkdown = "markdown"
)

// Config holds all configuration options for one crawl run.
// It is populated from CLI flags and the optional config file, validated
// once, and treated as read-only for the rest of the run.
type Config struct {
	// SeedURLs are the starting URLs in the order given.
	SeedURLs []string

	// OutputPath is the NDJSON corpus file.
	OutputPath string

	// MaxPages is the maximum number of records written in one run.
	MaxPages int

	// MaxDepth bounds how far traversal expands from the seeds.
	MaxDepth int

	// AllowedDomains restricts link expansion to these domains.
	// An empty slice means unrestricted.
	AllowedDomains []string

	// DomainMatch selects how AllowedDomains are compared with hosts.
	DomainMatch string

	// AppendMode keeps existing corpus records and skips their URLs.
	// When false the output file is truncated at start.
	AppendMode bool

	// FollowLinks enables link discovery on accepted pages.
	FollowLinks bool

	// IgnorePatterns are URL path glob patterns never crawled
	// (e.g. "/admin/*", "/tag/*").
	IgnorePatterns []string

	// FollowPatterns restrict crawling to matching URL paths when set.
	FollowPatterns []string

	// Timeout is the absolute timeout for each fetch.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Cookie is sent as the Cookie header when non-empty.
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string

	// Proxy is a SOCKS5 proxy address (host:port) all fetches go through.
	// Empty means direct connections.
	Proxy string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// MinContentLength is the minimum extracted text length in characters.
	MinContentLength int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path of the YAML config file, if any.
	ConfigFilePath string

	// Sources holds the named sources loaded from the config file.
	Sources *File

	// SourceName is the source this configuration was built for.
	// Empty for ad-hoc seeds given on the command line.
	SourceName string

	// ReportFormat selects the run report format (text, json, markdown).
	ReportFormat string

	// ReportFile receives the run report instead of stdout when set.
	ReportFile string

	// MetricsFile receives run metrics in Prometheus text format when set.
	MetricsFile string

	// DBDir is the directory of the crawl history database.
	DBDir string

	// SaveToDB records every run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SeedURLs:         make([]string, 0),
		OutputPath:       DefaultOutputPath,
		MaxPages:         DefaultMaxPages,
		MaxDepth:         DefaultMaxDepth,
		AllowedDomains:   make([]string, 0),
		IgnorePatterns:   make([]string, 0),
		FollowPatterns:   make([]string, 0),
		DomainMatch:      DefaultDomainMatch,
		AppendMode:       true,
		FollowLinks:      true,
		Timeout:          DefaultTimeout,
		UserAgent:        DefaultUserAgent,
		Headers:          make(map[string]string),
		MaxBodySize:      DefaultMaxBodySize,
		MinContentLength: DefaultMinContentLength,
		ReportFormat:     ReportFormatText,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
	}
}

// Clone returns a deep copy of the configuration.
// Per-source configurations are derived from a clone of the base config.
func (c *Config) Clone() *Config {
	cp := *c
	cp.SeedURLs = slices.Clone(c.SeedURLs)
	cp.AllowedDomains = slices.Clone(c.AllowedDomains)
	cp.IgnorePatterns = slices.Clone(c.IgnorePatterns)
	cp.FollowPatterns = slices.Clone(c.FollowPatterns)
	cp.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		cp.Headers[k] = v
	}
	return &cp
}

// Unrestricted reports whether link expansion may leave the seed domains.
func (c *Config) Unrestricted() bool {
	return len(c.AllowedDomains) == 0
}

// XDGDataDir returns the XDG data directory for corpuscrawl.
// On Linux: ~/.local/share/corpuscrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for corpuscrawl.
// On Linux: ~/.config/corpuscrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return ErrNoSeed
	}

	for _, seed := range c.SeedURLs {
		if !isCrawlableURL(seed) {
			return &InvalidSeedError{URL: seed}
		}
	}

	if c.OutputPath == "" {
		return ErrNoOutput
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.DomainMatch {
	case DomainMatchSuffix, DomainMatchSubstring, DomainMatchExact:
	default:
		return ErrInvalidDomainMatch
	}

	if c.MinContentLength < 0 {
		return ErrInvalidMinContentLength
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.Proxy != "" {
		if _, _, err := net.SplitHostPort(c.Proxy); err != nil {
			return ErrInvalidProxy
		}
	}

	switch c.ReportFormat {
	case ReportFormatText, ReportFormatJSON, ReportFormatMarkdown:
	default:
		return ErrInvalidReportFormat
	}

	return nil
}

// isCrawlableURL reports whether raw is an absolute http(s) URL with a host.
func isCrawlableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
