package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL or source is given.
	ErrNoSeed = errors.New("no seed specified: provide one or more URLs or use --source")

	// ErrNoOutput is returned when the corpus output path is empty.
	ErrNoOutput = errors.New("no output file specified")

	// ErrInvalidMaxPages is returned when max pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when max depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDomainMatch is returned for an unknown domain match mode.
	ErrInvalidDomainMatch = errors.New("invalid domain match: must be \"suffix\", \"substring\" or \"exact\"")

	// ErrInvalidMinContentLength is returned when the minimum content length is negative.
	ErrInvalidMinContentLength = errors.New("invalid min content length: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxy is returned when the proxy address is not host:port.
	ErrInvalidProxy = errors.New("invalid proxy address: expected host:port")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrInvalidSeed is matched by InvalidSeedError via errors.Is.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrUnknownSource is returned when --source names a source missing from the config file.
	ErrUnknownSource = errors.New("unknown source")
)

// InvalidSeedError reports a seed that is not an absolute http(s) URL.
type InvalidSeedError struct {
	URL string
}

// Error implements the error interface.
func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed URL %q: must be an absolute http or https URL", e.URL)
}

// Is makes errors.Is(err, ErrInvalidSeed) succeed.
func (e *InvalidSeedError) Is(target error) bool {
	return target == ErrInvalidSeed
}
