package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*CrawlDB, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := Open(tmpDir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

// newTestSummary builds a finished run summary with two visits.
func newTestSummary(id string, started time.Time) *model.RunSummary {
	s := model.NewRunSummary(id, "corpus.jsonl")
	s.Source = "docs"
	s.StartedAt = started
	s.FinishedAt = started.Add(3 * time.Second)
	s.Seeds = []string{"https://a.test"}
	s.MaxPages = 5
	s.MaxDepth = 2
	s.Persisted = 1
	s.Pending = 4
	s.Record(model.Visit{URL: "https://a.test", Depth: 0, Accepted: true, StatusCode: 200, ContentLength: 512})
	s.Record(model.Visit{
		URL:        "https://a.test/missing",
		Depth:      1,
		Reason:     model.ReasonHTTPStatus,
		StatusCode: 404,
		Error:      "unexpected status 404",
	})
	return s
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()

		dbDir := filepath.Join(tmpDir, "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, FileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("expected path %s, got %s", dbPath, db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "nonexistent-db")

		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}

		_, err := Open(dbDir, opts)
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected error to mention missing database, got %q", err.Error())
		}

		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "existing-db")

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}

		ctx := context.Background()
		summary := newTestSummary("run-1", time.Now())
		if err := db1.SaveRun(ctx, summary); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database with CreateIfNotExists=false: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetRun(ctx, "run-1"); err != nil {
			t.Errorf("expected run to persist, got %v", err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// TestSaveAndGetRun tests the run round trip.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	summary := newTestSummary("run-1", started)
	summary.Interrupted = true

	if err := db.SaveRun(ctx, summary); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if got.RunID != "run-1" || got.Source != "docs" || got.OutputPath != "corpus.jsonl" {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started %v, got %v", started, got.StartedAt)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", got.Duration())
	}
	if len(got.Seeds) != 1 || got.Seeds[0] != "https://a.test" {
		t.Errorf("unexpected seeds: %v", got.Seeds)
	}
	if got.MaxPages != 5 || got.MaxDepth != 2 || got.Persisted != 1 || got.Pending != 4 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.Saved != 1 {
		t.Errorf("expected 1 saved, got %d", got.Saved)
	}
	if !got.Interrupted {
		t.Error("expected interrupted flag to persist")
	}
	if got.Rejections[model.ReasonHTTPStatus] != 1 {
		t.Errorf("expected one http_status rejection, got %v", got.Rejections)
	}

	if len(got.Visits) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(got.Visits))
	}
	if !got.Visits[0].Accepted || got.Visits[0].ContentLength != 512 {
		t.Errorf("unexpected first visit: %+v", got.Visits[0])
	}
	second := got.Visits[1]
	if second.Accepted || second.Reason != model.ReasonHTTPStatus || second.StatusCode != 404 || second.Depth != 1 {
		t.Errorf("unexpected second visit: %+v", second)
	}
	if second.Error != "unexpected status 404" {
		t.Errorf("expected error detail to persist, got %q", second.Error)
	}
}

// TestSaveRunReplaces tests that saving a run twice keeps one copy.
func TestSaveRunReplaces(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	summary := newTestSummary("run-1", time.Now())
	if err := db.SaveRun(ctx, summary); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	summary.Record(model.Visit{URL: "https://a.test/b", Depth: 1, Accepted: true})
	if err := db.SaveRun(ctx, summary); err != nil {
		t.Fatalf("failed to save run again: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if len(got.Visits) != 3 {
		t.Errorf("expected 3 visits after replace, got %d", len(got.Visits))
	}
	if got.Saved != 2 {
		t.Errorf("expected 2 saved after replace, got %d", got.Saved)
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

// TestSaveRunInvalid tests rejected inputs.
func TestSaveRunInvalid(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := db.SaveRun(ctx, nil); err == nil {
		t.Error("expected error for nil summary")
	}
	if err := db.SaveRun(ctx, model.NewRunSummary("", "out.jsonl")); err == nil {
		t.Error("expected error for missing run ID")
	}
}

// TestGetRunNotFound tests the missing run error.
func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestListRuns tests ordering and limits.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveRun(ctx, newTestSummary(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[2].ID != "old" {
		t.Errorf("expected newest first, got %s..%s", runs[0].ID, runs[2].ID)
	}
	if runs[0].Saved != 1 || runs[0].Rejected != 1 {
		t.Errorf("unexpected counts: saved=%d rejected=%d", runs[0].Saved, runs[0].Rejected)
	}
	if runs[0].Source != "docs" {
		t.Errorf("expected source docs, got %q", runs[0].Source)
	}

	limited, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

// TestLastVisit tests the cross-run visit lookup.
func TestLastVisit(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newTestSummary("first", base)
	if err := db.SaveRun(ctx, first); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	second := model.NewRunSummary("second", "corpus.jsonl")
	second.StartedAt = base.Add(time.Hour)
	second.FinishedAt = second.StartedAt.Add(time.Second)
	second.Record(model.Visit{URL: "https://a.test/missing", Depth: 0, Accepted: true, StatusCode: 200})
	if err := db.SaveRun(ctx, second); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	v, ok, err := db.LastVisit(ctx, "https://a.test/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a visit")
	}
	if !v.Accepted {
		t.Errorf("expected the newer accepted visit, got %+v", v)
	}

	_, ok, err = db.LastVisit(ctx, "https://never.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no visit for unknown URL")
	}
}

// TestParseTimestamp tests the supported timestamp formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "stored format", input: "2026-01-02T03:04:05.000000006Z"},
		{name: "sqlite default", input: "2026-01-02 03:04:05"},
		{name: "rfc3339", input: "2026-01-02T03:04:05+09:00"},
		{name: "garbage", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v, zero expected %v", tt.input, got, tt.zero)
			}
		})
	}
}
