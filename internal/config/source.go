package config

import (
	"fmt"
	"maps"
	"slices"
)

// SourceConfig describes one named crawl source in the config file.
// Zero values mean "not set" and fall back to the defaults section.
type SourceConfig struct {
	// Seeds are the starting URLs of the source.
	Seeds []string `yaml:"seeds,omitempty"`

	// AllowedDomains restricts link expansion for this source.
	AllowedDomains []string `yaml:"allowedDomains,omitempty"`

	// Output overrides the corpus file path.
	Output string `yaml:"output,omitempty"`

	// MaxPages overrides the page cap.
	MaxPages int `yaml:"maxPages,omitempty"`

	// MaxDepth overrides the depth bound. A pointer because 0 is meaningful.
	MaxDepth *int `yaml:"maxDepth,omitempty"`

	// Append overrides the append mode.
	Append *bool `yaml:"append,omitempty"`

	// FollowLinks overrides link discovery.
	FollowLinks *bool `yaml:"followLinks,omitempty"`

	// IgnorePatterns are URL path glob patterns to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// DomainMatch overrides the domain policy ("suffix", "substring" or "exact").
	DomainMatch string `yaml:"domainMatch,omitempty"`

	// MinContentLength overrides the minimum extracted text length.
	MinContentLength int `yaml:"minContentLength,omitempty"`

	// Cookie is an HTTP cookie sent with every request to this source.
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Proxy is a SOCKS5 proxy address (host:port) for this source.
	Proxy string `yaml:"proxy,omitempty"`
}

// File represents the structure of the .corpuscrawl configuration file.
type File struct {
	// Defaults apply to every source unless overridden.
	Defaults SourceConfig `yaml:"defaults,omitempty"`

	// Sources maps source names to their configuration.
	Sources map[string]SourceConfig `yaml:"sources,omitempty"`
}

// Names returns the configured source names in sorted order.
func (cf *File) Names() []string {
	if cf == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(cf.Sources))
}

// GetSourceConfig returns the configuration for a named source merged
// with the defaults section.
func (cf *File) GetSourceConfig(name string) (SourceConfig, error) {
	if cf == nil {
		return SourceConfig{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	source, ok := cf.Sources[name]
	if !ok {
		return SourceConfig{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	return mergeSourceConfig(cf.Defaults, source), nil
}

// mergeSourceConfig overlays the non-zero fields of override on defaults.
func mergeSourceConfig(defaults, override SourceConfig) SourceConfig {
	result := defaults

	if len(override.Seeds) > 0 {
		result.Seeds = override.Seeds
	}
	if len(override.AllowedDomains) > 0 {
		result.AllowedDomains = override.AllowedDomains
	}
	if override.Output != "" {
		result.Output = override.Output
	}
	if override.MaxPages != 0 {
		result.MaxPages = override.MaxPages
	}
	if override.MaxDepth != nil {
		result.MaxDepth = override.MaxDepth
	}
	if override.Append != nil {
		result.Append = override.Append
	}
	if override.FollowLinks != nil {
		result.FollowLinks = override.FollowLinks
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		result.FollowPatterns = override.FollowPatterns
	}
	if override.DomainMatch != "" {
		result.DomainMatch = override.DomainMatch
	}
	if override.MinContentLength != 0 {
		result.MinContentLength = override.MinContentLength
	}
	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.Proxy != "" {
		result.Proxy = override.Proxy
	}
	if len(override.Headers) > 0 {
		merged := make(map[string]string, len(defaults.Headers)+len(override.Headers))
		maps.Copy(merged, defaults.Headers)
		maps.Copy(merged, override.Headers)
		result.Headers = merged
	}

	return result
}

// ApplyTo copies the set fields of the source configuration onto cfg.
func (sc SourceConfig) ApplyTo(cfg *Config) {
	if len(sc.Seeds) > 0 {
		cfg.SeedURLs = slices.Clone(sc.Seeds)
	}
	if len(sc.AllowedDomains) > 0 {
		cfg.AllowedDomains = slices.Clone(sc.AllowedDomains)
	}
	if sc.Output != "" {
		cfg.OutputPath = sc.Output
	}
	if sc.MaxPages != 0 {
		cfg.MaxPages = sc.MaxPages
	}
	if sc.MaxDepth != nil {
		cfg.MaxDepth = *sc.MaxDepth
	}
	if sc.Append != nil {
		cfg.AppendMode = *sc.Append
	}
	if sc.FollowLinks != nil {
		cfg.FollowLinks = *sc.FollowLinks
	}
	if len(sc.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = slices.Clone(sc.IgnorePatterns)
	}
	if len(sc.FollowPatterns) > 0 {
		cfg.FollowPatterns = slices.Clone(sc.FollowPatterns)
	}
	if sc.DomainMatch != "" {
		cfg.DomainMatch = sc.DomainMatch
	}
	if sc.MinContentLength != 0 {
		cfg.MinContentLength = sc.MinContentLength
	}
	if sc.Cookie != "" {
		cfg.Cookie = sc.Cookie
	}
	if sc.Proxy != "" {
		cfg.Proxy = sc.Proxy
	}
	if len(sc.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		maps.Copy(cfg.Headers, sc.Headers)
	}
}
