package corpus

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is returned by ParseLine for lines that are not a
// valid corpus record. ReadURLs and Scan skip such lines.
var ErrMalformedRecord = errors.New("malformed corpus record")

// OutputOpenError is returned when the corpus file cannot be opened or
// created. It is fatal to a crawl run.
type OutputOpenError struct {
	// Path is the corpus file path.
	Path string

	// Err is the underlying filesystem error.
	Err error
}

// Error implements the error interface.
func (e *OutputOpenError) Error() string {
	return fmt.Sprintf("failed to open output file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OutputOpenError) Unwrap() error {
	return e.Err
}
