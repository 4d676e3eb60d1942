package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/corpuscrawl/internal/model"
)

// FileName is the name of the history database inside the data directory.
const FileName = "corpuscrawl.db"

// ErrRunNotFound is returned by GetRun when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB stores the history of crawl runs in SQLite.
// Each run is one row in runs, and every processed frontier entry is one
// row in visits.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		output_path TEXT NOT NULL,
		seeds TEXT NOT NULL,
		max_pages INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		persisted INTEGER NOT NULL DEFAULT 0,
		saved INTEGER NOT NULL DEFAULT 0,
		pending INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		rejections TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);

	-- Every processed frontier entry of a run, in processing order
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		accepted INTEGER NOT NULL,
		reason TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		content_length INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);
	CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run summary and its visits in a single transaction.
// Saving the same run ID twice replaces the earlier copy.
func (cdb *CrawlDB) SaveRun(ctx context.Context, summary *model.RunSummary) (err error) {
	if summary == nil {
		return errors.New("summary is nil")
	}
	if summary.RunID == "" {
		return errors.New("summary has no run ID")
	}

	seedsJSON, err := json.Marshal(summary.Seeds)
	if err != nil {
		return fmt.Errorf("failed to serialize seeds: %w", err)
	}
	rejectionsJSON, err := json.Marshal(summary.Rejections)
	if err != nil {
		return fmt.Errorf("failed to serialize rejections: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM visits WHERE run_id = ?`, summary.RunID); err != nil {
		return fmt.Errorf("failed to clear visits: %w", err)
	}

	query := `
	INSERT INTO runs (id, source, started_at, finished_at, output_path, seeds,
		max_pages, max_depth, persisted, saved, pending, interrupted, rejections)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source = excluded.source,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		output_path = excluded.output_path,
		seeds = excluded.seeds,
		max_pages = excluded.max_pages,
		max_depth = excluded.max_depth,
		persisted = excluded.persisted,
		saved = excluded.saved,
		pending = excluded.pending,
		interrupted = excluded.interrupted,
		rejections = excluded.rejections
	`
	_, err = tx.ExecContext(ctx, query,
		summary.RunID,
		summary.Source,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		summary.OutputPath,
		string(seedsJSON),
		summary.MaxPages,
		summary.MaxDepth,
		summary.Persisted,
		summary.Saved,
		summary.Pending,
		summary.Interrupted,
		string(rejectionsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO visits (run_id, seq, url, depth, accepted, reason, status_code, content_length, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range summary.Visits {
		_, err = stmt.ExecContext(ctx,
			summary.RunID,
			i,
			v.URL,
			v.Depth,
			v.Accepted,
			v.Reason.String(),
			v.StatusCode,
			v.ContentLength,
			v.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save visit %s: %w", v.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunMetadata contains summary information about a stored run.
// This is used for listing history without loading every visit.
type RunMetadata struct {
	// ID is the run ID.
	ID string

	// Source is the configured source name, empty for ad-hoc seeds.
	Source string

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// OutputPath is the corpus file the run appended to.
	OutputPath string

	// Saved is the number of records written.
	Saved int

	// Rejected is the total number of rejected entries.
	Rejected int

	// Interrupted is true when the run was cancelled.
	Interrupted bool
}

// ListRuns returns the most recent runs first.
// A limit of zero or less returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, source, started_at, finished_at, output_path, saved, interrupted, rejections
	FROM runs
	ORDER BY started_at DESC, id
	`
	args := make([]interface{}, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var startedAt, finishedAt, rejectionsJSON string

		if err := rows.Scan(
			&meta.ID,
			&meta.Source,
			&startedAt,
			&finishedAt,
			&meta.OutputPath,
			&meta.Saved,
			&meta.Interrupted,
			&rejectionsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt)

		rejections, err := parseRejections(rejectionsJSON)
		if err == nil {
			for _, n := range rejections {
				meta.Rejected += n
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun loads a complete run summary including its visits.
// It returns ErrRunNotFound when the ID is unknown.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	query := `
	SELECT id, source, started_at, finished_at, output_path, seeds,
		max_pages, max_depth, persisted, saved, pending, interrupted, rejections
	FROM runs
	WHERE id = ?
	`

	summary := &model.RunSummary{}
	var startedAt, finishedAt, seedsJSON, rejectionsJSON string

	err := cdb.db.QueryRowContext(ctx, query, id).Scan(
		&summary.RunID,
		&summary.Source,
		&startedAt,
		&finishedAt,
		&summary.OutputPath,
		&seedsJSON,
		&summary.MaxPages,
		&summary.MaxDepth,
		&summary.Persisted,
		&summary.Saved,
		&summary.Pending,
		&summary.Interrupted,
		&rejectionsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	summary.StartedAt = parseTimestamp(startedAt)
	summary.FinishedAt = parseTimestamp(finishedAt)

	if err := json.Unmarshal([]byte(seedsJSON), &summary.Seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seeds: %w", err)
	}
	if summary.Seeds == nil {
		summary.Seeds = make([]string, 0)
	}

	summary.Rejections, err = parseRejections(rejectionsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rejections: %w", err)
	}

	summary.Visits, err = cdb.visits(ctx, id)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// visits loads the visits of a run in processing order.
func (cdb *CrawlDB) visits(ctx context.Context, runID string) ([]model.Visit, error) {
	query := `
	SELECT url, depth, accepted, reason, status_code, content_length, error
	FROM visits
	WHERE run_id = ?
	ORDER BY seq
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	results := make([]model.Visit, 0)
	for rows.Next() {
		var v model.Visit
		var reason string

		if err := rows.Scan(
			&v.URL,
			&v.Depth,
			&v.Accepted,
			&reason,
			&v.StatusCode,
			&v.ContentLength,
			&v.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}

		// Unknown names from a newer schema degrade to ReasonNone.
		v.Reason, _ = model.ParseRejectReason(reason) //nolint:errcheck
		results = append(results, v)
	}

	return results, rows.Err()
}

// LastVisit returns the most recent stored visit of a URL across all runs.
// The boolean is false when the URL was never visited.
func (cdb *CrawlDB) LastVisit(ctx context.Context, url string) (model.Visit, bool, error) {
	query := `
	SELECT v.url, v.depth, v.accepted, v.reason, v.status_code, v.content_length, v.error
	FROM visits v
	JOIN runs r ON r.id = v.run_id
	WHERE v.url = ?
	ORDER BY r.started_at DESC, v.seq DESC
	LIMIT 1
	`

	var v model.Visit
	var reason string
	err := cdb.db.QueryRowContext(ctx, query, url).Scan(
		&v.URL,
		&v.Depth,
		&v.Accepted,
		&reason,
		&v.StatusCode,
		&v.ContentLength,
		&v.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Visit{}, false, nil
	}
	if err != nil {
		return model.Visit{}, false, fmt.Errorf("failed to get last visit: %w", err)
	}

	v.Reason, _ = model.ParseRejectReason(reason) //nolint:errcheck
	return v, true, nil
}

// parseRejections decodes the rejections column.
func parseRejections(s string) (map[model.RejectReason]int, error) {
	rejections := make(map[model.RejectReason]int)
	if s == "" {
		return rejections, nil
	}
	if err := json.Unmarshal([]byte(s), &rejections); err != nil {
		return make(map[model.RejectReason]int), err
	}
	return rejections, nil
}

// formatTimestamp stores times in UTC with nanosecond precision so runs
// sort correctly as text.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02T15:04:05.000000000Z", // formatTimestamp
	"2006-01-02 15:04:05",            // SQLite default datetime format
	"2006-01-02T15:04:05Z",           // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",            // ISO 8601 without timezone
	time.RFC3339,                     // Full RFC3339 format
	time.RFC3339Nano,                 // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999",        // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
