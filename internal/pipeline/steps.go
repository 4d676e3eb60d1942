package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/corpuscrawl/internal/model"
	"github.com/nao1215/corpuscrawl/internal/report"
)

// RunStore persists finished runs. *database.CrawlDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, summary *model.RunSummary) error
}

// RunObserver receives finished runs. *metrics.Collector implements it.
type RunObserver interface {
	ObserveRun(summary *model.RunSummary)
}

// HistoryStep saves the run to the history database.
type HistoryStep struct {
	store RunStore
}

// NewHistoryStep creates a HistoryStep.
func NewHistoryStep(store RunStore) *HistoryStep {
	return &HistoryStep{store: store}
}

// Do saves the summary.
func (s *HistoryStep) Do(ctx context.Context, summary *model.RunSummary) error {
	if err := s.store.SaveRun(ctx, summary); err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}
	return nil
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// MetricsStep feeds run-level metrics.
type MetricsStep struct {
	observer RunObserver
}

// NewMetricsStep creates a MetricsStep.
func NewMetricsStep(observer RunObserver) *MetricsStep {
	return &MetricsStep{observer: observer}
}

// Do records the summary.
func (s *MetricsStep) Do(_ context.Context, summary *model.RunSummary) error {
	s.observer.ObserveRun(summary)
	return nil
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// ReportStep renders the run with a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a ReportStep that writes to w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, summary *model.RunSummary) error {
	if _, err := s.writer.Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// ReportFileStep renders each run into its own file.
// The file name is <dir>/<run id>.<ext>, so batches of sources never
// overwrite each other's reports. A plain file path is used as is unless
// per-run names are enabled, which turns it into <name>-<run id><ext>.
type ReportFileStep struct {
	path    string
	format  string
	version string
	perRun  bool
}

// ReportFileOption configures a ReportFileStep.
type ReportFileOption func(*ReportFileStep)

// WithPerRunFileNames appends the run ID to a plain file path. Batches of
// more than one source enable it.
func WithPerRunFileNames(enabled bool) ReportFileOption {
	return func(s *ReportFileStep) {
		s.perRun = enabled
	}
}

// NewReportFileStep creates a ReportFileStep. When path names an existing
// directory or ends in a separator, one file per run is written inside it;
// otherwise path is used as is.
func NewReportFileStep(path, format, version string, opts ...ReportFileOption) *ReportFileStep {
	s := &ReportFileStep{path: path, format: format, version: version}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do writes the report file.
func (s *ReportFileStep) Do(_ context.Context, summary *model.RunSummary) (err error) {
	target := s.target(summary)
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(target) //nolint:gosec // path comes from the user's own flag
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()

	return writeReport(f, s.format, s.version, summary)
}

// Name returns the step name.
func (s *ReportFileStep) Name() string {
	return "report-file"
}

// target resolves the output path for a run.
func (s *ReportFileStep) target(summary *model.RunSummary) string {
	if s.path == "" {
		return summary.RunID + extension(s.format)
	}
	if strings.HasSuffix(s.path, string(filepath.Separator)) {
		return filepath.Join(s.path, summary.RunID+extension(s.format))
	}
	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		return filepath.Join(s.path, summary.RunID+extension(s.format))
	}
	if s.perRun {
		ext := filepath.Ext(s.path)
		if ext == "" {
			ext = extension(s.format)
		}
		return strings.TrimSuffix(s.path, filepath.Ext(s.path)) + "-" + summary.RunID + ext
	}
	return s.path
}

// writeReport renders summary in format to w.
func writeReport(w io.Writer, format, version string, summary *model.RunSummary) error {
	rw, err := report.NewWriter(format, w, version, true)
	if err != nil {
		return err
	}
	if _, err := rw.Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// extension returns the file extension for a report format.
func extension(format string) string {
	switch strings.ToLower(format) {
	case report.FormatJSON:
		return ".json"
	case report.FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}
