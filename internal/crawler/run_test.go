package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/corpus"
	"github.com/nao1215/corpuscrawl/internal/model"
)

// TestRun tests a full crawl against a local HTTP server.
func TestRun(t *testing.T) {
	t.Parallel()

	article := strings.Repeat("Go is an open source programming language. ", 10)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Home</title><script>track()</script></head><body>
<p>%s</p>
<a href="/docs/">Docs</a>
<a href="/logo.png">Logo</a>
<a href="/api">API</a>
<a href="/empty">Empty</a>
</body></html>`, article)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Docs</h1><p>%s</p></body></html>`, article)
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`)) //nolint:errcheck
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Login required</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/logo.png", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("denylisted URL was requested")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	output := filepath.Join(t.TempDir(), "out", "corpus.jsonl")

	cfg := config.NewConfig()
	cfg.SeedURLs = []string{server.URL + "/"}
	cfg.OutputPath = output
	cfg.MaxPages = 10
	cfg.MaxDepth = 1
	cfg.AppendMode = false
	cfg.SourceName = "local"

	summary, err := Run(context.Background(), cfg, WithRunLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Saved != 2 {
		t.Errorf("Saved = %d, want 2 (visits: %+v)", summary.Saved, summary.Visits)
	}
	if summary.Source != "local" || summary.OutputPath != output {
		t.Errorf("unexpected summary labels: source=%q output=%q", summary.Source, summary.OutputPath)
	}
	if summary.Rejections[model.ReasonContentType] != 1 || summary.Rejections[model.ReasonTooShort] != 1 {
		t.Errorf("unexpected rejections: %v", summary.Rejections)
	}
	if summary.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}

	urls, err := corpus.ReadURLs(output)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{server.URL, server.URL + "/docs"} {
		if _, ok := urls[want]; !ok {
			t.Errorf("expected %s in corpus, got %v", want, urls)
		}
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "track()") {
		t.Error("script content leaked into the corpus")
	}
}

// TestRunOutputOpenError tests that an unusable output path is fatal in
// both write modes.
func TestRunOutputOpenError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		appendMode bool
	}{
		{"truncate mode", false},
		{"append mode", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			fetcher := newStubFetcher(nil)

			cfg := config.NewConfig()
			cfg.SeedURLs = []string{"http://a.test"}
			cfg.OutputPath = dir // a directory cannot be opened for writing
			cfg.AppendMode = tt.appendMode

			_, err := Run(context.Background(), cfg, WithFetcher(fetcher), WithRunLogger(quietLogger()))

			var openErr *OutputOpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("expected *OutputOpenError, got %T: %v", err, err)
			}
			if openErr.Path != dir {
				t.Errorf("Path = %q, want %q", openErr.Path, dir)
			}
			if len(fetcher.Calls()) != 0 {
				t.Errorf("no fetch may happen after an open failure, got %v", fetcher.Calls())
			}
		})
	}
}

// TestRunInvalidConfig tests that configuration errors are reported.
func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	_, err := Run(context.Background(), cfg)
	if !errors.Is(err, config.ErrNoSeed) {
		t.Errorf("expected ErrNoSeed, got %v", err)
	}
}

// TestRunSpiderOptions tests that extra spider options reach the Spider.
func TestRunSpiderOptions(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher(map[string]stubPage{
		"http://a.test": {text: longText(300)},
	})

	cfg := config.NewConfig()
	cfg.SeedURLs = []string{"http://a.test"}
	cfg.OutputPath = filepath.Join(t.TempDir(), "corpus.jsonl")

	var seen []model.Visit
	summary, err := Run(context.Background(), cfg,
		WithFetcher(fetcher),
		WithRunLogger(quietLogger()),
		WithSpiderOptions(
			WithRunID("fixed-id"),
			WithRecorder(RecorderFunc(func(v model.Visit) { seen = append(seen, v) })),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	if summary.RunID != "fixed-id" {
		t.Errorf("RunID = %q, want fixed-id", summary.RunID)
	}
	if len(seen) != 1 || !seen[0].Accepted {
		t.Errorf("unexpected recorded visits: %+v", seen)
	}
}
