package model

import "fmt"

// RejectReason explains why a frontier entry was discarded.
// ReasonNone is the zero value and marks an accepted entry.
type RejectReason int

const (
	// ReasonNone means the entry was accepted.
	ReasonNone RejectReason = iota

	// ReasonDuplicate means the URL was already visited in this run or
	// already present in the corpus from an earlier run.
	ReasonDuplicate

	// ReasonExtension means the URL path ends in a denylisted extension.
	ReasonExtension

	// ReasonDomain means the URL host is outside the allowed domains.
	ReasonDomain

	// ReasonIgnored means the URL path matched an ignore pattern or none
	// of the follow patterns.
	ReasonIgnored

	// ReasonInvalidURL means the URL could not be parsed or has no host.
	ReasonInvalidURL

	// ReasonTransport covers connection failures and timeouts.
	ReasonTransport

	// ReasonHTTPStatus means the server answered with a non-2xx status.
	ReasonHTTPStatus

	// ReasonContentType means the response was not HTML.
	ReasonContentType

	// ReasonTooShort means the extracted text was below the minimum length.
	ReasonTooShort
)

// reasonNames maps each reason to its stable wire name.
// The names are stored in the history database and in JSON reports.
var reasonNames = map[RejectReason]string{
	ReasonNone:        "none",
	ReasonDuplicate:   "duplicate",
	ReasonExtension:   "extension",
	ReasonDomain:      "domain",
	ReasonIgnored:     "ignored",
	ReasonInvalidURL:  "invalid_url",
	ReasonTransport:   "transport",
	ReasonHTTPStatus:  "http_status",
	ReasonContentType: "content_type",
	ReasonTooShort:    "too_short",
}

// AllRejectReasons lists every rejection reason in display order.
func AllRejectReasons() []RejectReason {
	return []RejectReason{
		ReasonDuplicate,
		ReasonExtension,
		ReasonDomain,
		ReasonIgnored,
		ReasonInvalidURL,
		ReasonTransport,
		ReasonHTTPStatus,
		ReasonContentType,
		ReasonTooShort,
	}
}

// String returns the wire name of the reason.
func (r RejectReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so reasons can be used
// as JSON object keys.
func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RejectReason) UnmarshalText(text []byte) error {
	reason, err := ParseRejectReason(string(text))
	if err != nil {
		return err
	}
	*r = reason
	return nil
}

// ParseRejectReason converts a wire name back into a RejectReason.
func ParseRejectReason(s string) (RejectReason, error) {
	for reason, name := range reasonNames {
		if name == s {
			return reason, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown reject reason %q", s)
}

// IsFetchFailure reports whether the reason was produced after a network
// request was attempted. Such URLs stay eligible for a future run.
func (r RejectReason) IsFetchFailure() bool {
	switch r {
	case ReasonTransport, ReasonHTTPStatus, ReasonContentType, ReasonTooShort:
		return true
	default:
		return false
	}
}
