package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/corpuscrawl/internal/corpus"
	"github.com/nao1215/corpuscrawl/internal/model"
)

var (
	// ErrUnknownDomainMatch is returned by NewDomainPolicy for an unknown mode.
	ErrUnknownDomainMatch = errors.New("unknown domain match mode")

	// ErrInvalidPageURL is returned by Extract when the final page URL
	// cannot be parsed.
	ErrInvalidPageURL = errors.New("invalid page URL")
)

// OutputOpenError is returned when the corpus file cannot be opened.
// It is the only error that aborts a run before any fetch.
type OutputOpenError = corpus.OutputOpenError

// TransportError reports a connection failure, timeout or body read error.
type TransportError struct {
	// URL is the requested URL.
	URL string

	// Err is the underlying network error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the response status.
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ContentTypeError reports a response that is not HTML.
type ContentTypeError struct {
	// URL is the requested URL.
	URL string

	// ContentType is the Content-Type header value received.
	ContentType string

	// StatusCode is the response status.
	StatusCode int
}

// Error implements the error interface.
func (e *ContentTypeError) Error() string {
	contentType := e.ContentType
	if contentType == "" {
		contentType = "(none)"
	}
	return fmt.Sprintf("content type %s from %s is not HTML", contentType, e.URL)
}

// ContentTooShortError reports a page whose visible text is below the
// minimum length.
type ContentTooShortError struct {
	// URL is the page URL.
	URL string

	// Length is the extracted text length in characters.
	Length int

	// Min is the configured minimum.
	Min int
}

// Error implements the error interface.
func (e *ContentTooShortError) Error() string {
	return fmt.Sprintf("content of %s too short: %d < %d characters", e.URL, e.Length, e.Min)
}

// ReasonFor maps a fetch or extraction error to its rejection reason.
// Unknown errors are treated as transport failures.
func ReasonFor(err error) model.RejectReason {
	var (
		statusErr      *HTTPStatusError
		contentTypeErr *ContentTypeError
		tooShortErr    *ContentTooShortError
	)

	switch {
	case errors.As(err, &statusErr):
		return model.ReasonHTTPStatus
	case errors.As(err, &contentTypeErr):
		return model.ReasonContentType
	case errors.As(err, &tooShortErr):
		return model.ReasonTooShort
	case errors.Is(err, ErrInvalidPageURL):
		return model.ReasonInvalidURL
	default:
		return model.ReasonTransport
	}
}

// statusCodeOf returns the HTTP status carried by err, or zero.
func statusCodeOf(err error) int {
	var (
		statusErr      *HTTPStatusError
		contentTypeErr *ContentTypeError
	)

	switch {
	case errors.As(err, &statusErr):
		return statusErr.StatusCode
	case errors.As(err, &contentTypeErr):
		return contentTypeErr.StatusCode
	default:
		return 0
	}
}
