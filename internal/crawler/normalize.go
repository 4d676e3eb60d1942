package crawler

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL for comparison and storage.
//
// Everything from the first '#' is dropped, then trailing slashes are
// removed. Scheme and host case are kept as given, so the corpus stores
// URLs as they were discovered. Normalize is idempotent.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/")
}

// parseCrawlable parses a normalized URL and reports whether it is an
// absolute http(s) URL with a host.
func parseCrawlable(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}
