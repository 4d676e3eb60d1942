package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// TestWriter tests appending records to a corpus file.
func TestWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes one JSON object per line", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "corpus.jsonl")
		w, err := Open(path, true)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		records := []model.CrawlRecord{
			{URL: "http://a.test", Content: "first page"},
			{URL: "http://a.test/b", Content: "line one\nline two <b>&</b>"},
		}
		for _, r := range records {
			if err := w.Write(r); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}
		if w.Written() != 2 {
			t.Errorf("expected 2 written, got %d", w.Written())
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
		}
		if lines[0] != `{"url":"http://a.test","content":"first page"}` {
			t.Errorf("unexpected first line: %s", lines[0])
		}
		if !strings.Contains(lines[1], "<b>&</b>") {
			t.Errorf("expected HTML characters to stay unescaped: %s", lines[1])
		}
	})

	t.Run("append mode keeps existing lines", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "corpus.jsonl")
		existing := `{"url":"http://old.test","content":"old"}` + "\n"
		if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
			t.Fatal(err)
		}

		w, err := Open(path, true)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := w.Write(model.CrawlRecord{URL: "http://new.test", Content: "new"}); err != nil {
			t.Fatal(err)
		}
		_ = w.Close()

		urls, err := ReadURLs(path)
		if err != nil {
			t.Fatalf("ReadURLs failed: %v", err)
		}
		if len(urls) != 2 {
			t.Errorf("expected 2 URLs, got %d", len(urls))
		}
	})

	t.Run("truncate mode drops existing lines", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "corpus.jsonl")
		existing := `{"url":"http://old.test","content":"old"}` + "\n"
		if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
			t.Fatal(err)
		}

		w, err := Open(path, false)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := w.Write(model.CrawlRecord{URL: "http://new.test", Content: "new"}); err != nil {
			t.Fatal(err)
		}
		_ = w.Close()

		urls, err := ReadURLs(path)
		if err != nil {
			t.Fatalf("ReadURLs failed: %v", err)
		}
		if _, ok := urls["http://old.test"]; ok {
			t.Error("expected old record to be truncated")
		}
		if _, ok := urls["http://new.test"]; !ok {
			t.Error("expected new record to be present")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "dir", "corpus.jsonl")
		w, err := Open(path, true)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer w.Close()

		if w.Path() != path {
			t.Errorf("Path() = %q, want %q", w.Path(), path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("write after close fails", func(t *testing.T) {
		t.Parallel()

		w, err := Open(filepath.Join(t.TempDir(), "corpus.jsonl"), true)
		if err != nil {
			t.Fatal(err)
		}
		_ = w.Close()
		if err := w.Close(); err != nil {
			t.Errorf("second Close should be a no-op, got %v", err)
		}
		if err := w.Write(model.CrawlRecord{URL: "http://a.test"}); !errors.Is(err, os.ErrClosed) {
			t.Errorf("expected os.ErrClosed, got %v", err)
		}
	})
}

// TestOpenError tests that open failures are reported as OutputOpenError.
func TestOpenError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory cannot be opened as the corpus file.
	_, err := Open(dir, true)
	if err == nil {
		t.Fatal("expected error opening a directory")
	}

	var openErr *OutputOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OutputOpenError, got %T", err)
	}
	if openErr.Path != dir {
		t.Errorf("Path = %q, want %q", openErr.Path, dir)
	}
	if openErr.Unwrap() == nil {
		t.Error("expected wrapped cause")
	}
}

// TestReadURLs tests loading the persisted URL set.
func TestReadURLs(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields empty set", func(t *testing.T) {
		t.Parallel()

		urls, err := ReadURLs(filepath.Join(t.TempDir(), "absent.jsonl"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(urls) != 0 {
			t.Errorf("expected empty set, got %d", len(urls))
		}
	})

	t.Run("malformed lines are skipped", func(t *testing.T) {
		t.Parallel()

		content := strings.Join([]string{
			`{"url":"http://a.test","content":"ok"}`,
			`not json at all`,
			``,
			`{"content":"no url"}`,
			`{"url":42,"content":"wrong type"}`,
			`{"url":"http://b.test","content":7}`,
			`{"url":"http://c.test"}`,
			`{"url":"http://d.test","content":"partial`,
		}, "\n")

		path := filepath.Join(t.TempDir(), "corpus.jsonl")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		urls, err := ReadURLs(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(urls) != 2 {
			t.Errorf("expected 2 URLs, got %d: %v", len(urls), urls)
		}
		for _, want := range []string{"http://a.test", "http://c.test"} {
			if _, ok := urls[want]; !ok {
				t.Errorf("expected %s in set", want)
			}
		}
	})
}

// TestParseLine tests single line parsing.
func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		wantErr bool
		wantURL string
	}{
		{name: "valid record", line: `{"url":"http://a.test","content":"x"}`, wantURL: "http://a.test"},
		{name: "trailing whitespace", line: "{\"url\":\"http://a.test\"}\r\n", wantURL: "http://a.test"},
		{name: "blank line", line: "   ", wantErr: true},
		{name: "JSON array", line: `["http://a.test"]`, wantErr: true},
		{name: "null url", line: `{"url":null}`, wantErr: true},
		{name: "empty url", line: `{"url":""}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := ParseLine([]byte(tt.line))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecord) {
					t.Errorf("expected ErrMalformedRecord, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if record.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", record.URL, tt.wantURL)
			}
		})
	}
}

// TestScan tests that callback errors stop the scan.
func TestScan(t *testing.T) {
	t.Parallel()

	input := `{"url":"http://a.test"}` + "\n" + `{"url":"http://b.test"}` + "\n"
	stop := errors.New("stop")

	var seen []string
	err := Scan(strings.NewReader(input), func(r model.CrawlRecord) error {
		seen = append(seen, r.URL)
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected stop error, got %v", err)
	}
	if len(seen) != 1 {
		t.Errorf("expected scan to stop after first record, saw %v", seen)
	}
}

// TestReadStats tests corpus statistics.
func TestReadStats(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		`{"url":"http://a.test","content":"héllo"}`,
		`{"url":"http://a.test","content":"again"}`,
		`garbage`,
		`{"url":"http://b.test","content":"ok"}`,
	}, "\n") + "\n"

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	stats, err := ReadStats(path)
	if err != nil {
		t.Fatalf("ReadStats failed: %v", err)
	}
	if stats.Records != 3 {
		t.Errorf("Records = %d, want 3", stats.Records)
	}
	if stats.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", stats.Malformed)
	}
	if stats.UniqueURLs != 2 {
		t.Errorf("UniqueURLs = %d, want 2", stats.UniqueURLs)
	}
	if stats.Characters != 12 {
		t.Errorf("Characters = %d, want 12", stats.Characters)
	}
}
