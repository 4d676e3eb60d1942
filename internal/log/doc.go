// Package log provides secure logging built on top of the standard slog package.
//
// The SecureHandler wraps any slog.Handler and sanitizes attributes before
// they are written:
//   - Sensitive keys (cookie, authorization, token, password, ...) are masked
//   - Values that look like secrets (bearer tokens, JWTs, private keys) are masked
//   - URL values keep their shape but sensitive query parameters are redacted
//
// Crawl logs contain every URL the crawler touched, and seed URLs copied from
// a browser often carry session or API tokens in the query string.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("page rejected", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=***REDACTED***
package log
