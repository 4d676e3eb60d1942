package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// ParseLine parses one corpus line.
// Blank lines, invalid JSON and records without a string "url" are
// reported as ErrMalformedRecord.
func ParseLine(line []byte) (model.CrawlRecord, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.CrawlRecord{}, ErrMalformedRecord
	}

	record, err := model.ParseRecord(line)
	if err != nil {
		return model.CrawlRecord{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return record, nil
}

// Scan calls fn for every well-formed record in r, in file order.
// Malformed lines are skipped. An error returned by fn stops the scan
// and is returned unchanged.
func Scan(r io.Reader, fn func(model.CrawlRecord) error) error {
	reader := bufio.NewReader(r)

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			record, err := ParseLine(line)
			if err == nil {
				if err := fn(record); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read corpus: %w", readErr)
		}
	}
}

// ReadURLs returns the set of URLs recorded in the corpus file at path.
// A missing file yields an empty set. Malformed lines are skipped.
func ReadURLs(path string) (map[string]struct{}, error) {
	urls := make(map[string]struct{})

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return urls, nil
		}
		return nil, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer file.Close()

	err = Scan(file, func(record model.CrawlRecord) error {
		urls[record.URL] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// Stats summarizes the contents of a corpus file.
type Stats struct {
	// Records is the number of well-formed records.
	Records int

	// Malformed is the number of skipped non-blank lines.
	Malformed int

	// UniqueURLs is the number of distinct URLs.
	UniqueURLs int

	// Characters is the total content length in characters.
	Characters int
}

// ReadStats scans the corpus file at path and counts its records.
// A missing file yields zero stats.
func ReadStats(path string) (Stats, error) {
	var stats Stats

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer file.Close()

	seen := make(map[string]struct{})
	reader := bufio.NewReader(file)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			record, err := ParseLine(line)
			if err != nil {
				stats.Malformed++
			} else {
				stats.Records++
				stats.Characters += len([]rune(record.Content))
				seen[record.URL] = struct{}{}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return stats, fmt.Errorf("failed to read corpus: %w", readErr)
		}
	}

	stats.UniqueURLs = len(seen)
	return stats, nil
}
