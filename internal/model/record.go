package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingURL is returned when a corpus line has no usable url field.
var ErrMissingURL = errors.New("record has no url")

// CrawlRecord is the unit persisted to the corpus file, one JSON object
// per line. Only url and content are ever written.
type CrawlRecord struct {
	// URL is the normalized page URL (no fragment, no trailing slash).
	URL string `json:"url"`

	// Content is the visible text of the page, newline separated.
	Content string `json:"content"`
}

// Marshal encodes the record as a single JSON line without a trailing
// newline. HTML characters are not escaped so the corpus stays readable.
func (r CrawlRecord) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseRecord decodes one corpus line.
//
// The line must be a JSON object whose url field is a non-empty string.
// A content field, when present, must also be a string. Unknown fields are
// ignored so hand-edited corpus files still load.
func ParseRecord(line []byte) (CrawlRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return CrawlRecord{}, err
	}

	rawURL, ok := fields["url"]
	if !ok {
		return CrawlRecord{}, ErrMissingURL
	}

	var rec CrawlRecord
	if err := json.Unmarshal(rawURL, &rec.URL); err != nil {
		return CrawlRecord{}, fmt.Errorf("url field: %w", err)
	}
	if rec.URL == "" {
		return CrawlRecord{}, ErrMissingURL
	}

	if rawContent, ok := fields["content"]; ok {
		if err := json.Unmarshal(rawContent, &rec.Content); err != nil {
			return CrawlRecord{}, fmt.Errorf("content field: %w", err)
		}
	}

	return rec, nil
}
