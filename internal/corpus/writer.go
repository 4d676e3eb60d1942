package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// Writer appends records to a corpus file, one JSON object per line.
//
// The file mode (append or truncate) is chosen once in Open. Every Write
// issues a single write system call for the full line, so records are
// never interleaved and a crash loses at most the record being written.
type Writer struct {
	// path is the corpus file path.
	path string

	// file is the open corpus file.
	file *os.File

	// written counts records written through this Writer.
	written int

	// mu serializes writes. The crawler writes from one goroutine, but the
	// dataset and CLI helpers may share a Writer.
	mu sync.Mutex
}

// Open opens the corpus file for writing.
// When appendMode is true existing records are kept and new ones are
// appended; otherwise the file is truncated. Missing parent directories
// are created. Failures are reported as *OutputOpenError.
func Open(path string, appendMode bool) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &OutputOpenError{Path: path, Err: err}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(filepath.Clean(path), flags, 0o600)
	if err != nil {
		return nil, &OutputOpenError{Path: path, Err: err}
	}

	return &Writer{path: path, file: file}, nil
}

// Write appends one record as a single line.
func (w *Writer) Write(record model.CrawlRecord) error {
	data, err := record.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", record.URL, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("failed to write record for %s: %w", record.URL, os.ErrClosed)
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", record.URL, err)
	}
	w.written++
	return nil
}

// Written returns the number of records written through this Writer.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Path returns the corpus file path.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the corpus file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
