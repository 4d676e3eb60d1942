package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether zero rejection counts are shown.
	showEmpty bool

	// verbose lists every rejected URL with its error detail.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeRejections(&sb, summary)
	w.writeSaved(&sb, summary)
	if w.verbose {
		w.writeRejected(&sb, summary)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the run information block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CORPUSCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run ID:      %s\n", summary.RunID))
	if summary.Source != "" {
		sb.WriteString(fmt.Sprintf("Source:      %s\n", summary.Source))
	}
	sb.WriteString(fmt.Sprintf("Started:     %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", summary.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Output:      %s\n", summary.OutputPath))
	sb.WriteString(fmt.Sprintf("Seeds:       %s\n", strings.Join(summary.Seeds, ", ")))
	sb.WriteString(fmt.Sprintf("Limits:      %d pages, depth %d\n", summary.MaxPages, summary.MaxDepth))
	sb.WriteString(fmt.Sprintf("Saved:       %d\n", summary.Saved))
	sb.WriteString(fmt.Sprintf("Persisted:   %d\n", summary.Persisted))
	sb.WriteString(fmt.Sprintf("Pending:     %d\n", summary.Pending))
	sb.WriteString(fmt.Sprintf("Status:      %s\n", statusText(summary)))
	sb.WriteString("\n")
}

// writeRejections writes the per-reason rejection counts.
func (w *SimpleWriter) writeRejections(sb *strings.Builder, summary *model.RunSummary) {
	if summary.Rejected() == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "REJECTIONS")

	for _, reason := range model.AllRejectReasons() {
		n := summary.Rejections[reason]
		if n == 0 && !w.showEmpty {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-13s %d\n", reason.String()+":", n))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %-13s %d\n", "TOTAL:", summary.Rejected()))
	sb.WriteString("\n")
}

// writeSaved lists the pages written to the corpus.
func (w *SimpleWriter) writeSaved(sb *strings.Builder, summary *model.RunSummary) {
	urls := summary.AcceptedURLs()
	if len(urls) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "SAVED PAGES")

	if len(urls) == 0 {
		sb.WriteString("  No pages saved\n")
	}
	for _, u := range urls {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", u))
	}
	sb.WriteString("\n")
}

// writeRejected lists every rejected entry with its detail.
func (w *SimpleWriter) writeRejected(sb *strings.Builder, summary *model.RunSummary) {
	visits := rejectedVisits(summary)
	if len(visits) == 0 {
		return
	}

	writeSection(sb, "REJECTED URLS")

	for _, v := range visits {
		sb.WriteString(fmt.Sprintf("  [-] %s (%s, depth %d)\n", v.URL, v.Reason, v.Depth))
		if v.Error != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", v.Error))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by corpuscrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
