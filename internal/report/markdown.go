package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeRejections(md, summary)
	w.writeSaved(md, summary)
	w.writeRejected(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	source := summary.Source
	if source == "" {
		source = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + summary.RunID + "`"},
			{"Source", source},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration().String()},
			{"Output", "`" + summary.OutputPath + "`"},
			{"Max Pages", strconv.Itoa(summary.MaxPages)},
			{"Max Depth", strconv.Itoa(summary.MaxDepth)},
			{"Saved", strconv.Itoa(summary.Saved)},
			{"Already Persisted", strconv.Itoa(summary.Persisted)},
			{"Pending", strconv.Itoa(summary.Pending)},
			{"Status", statusText(summary)},
		},
	})
	md.PlainText("")

	if len(summary.Seeds) > 0 {
		md.H2("Seeds")
		md.PlainText("")
		md.BulletList(summary.Seeds...)
		md.PlainText("")
	}

	switch {
	case summary.Interrupted:
		md.Warningf("The run was interrupted. %d frontier entries were left unprocessed.", summary.Pending)
	case summary.Saved == 0:
		md.Cautionf("No pages were saved. %d entries were rejected.", summary.Rejected())
	default:
		md.Tip("The run finished normally.")
	}
	md.PlainText("")
}

// writeRejections writes the per-reason table and a pie chart.
func (w *MarkdownWriter) writeRejections(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Rejections")
	md.PlainText("")

	if summary.Rejected() == 0 {
		md.PlainText("No entries were rejected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(summary.Rejections)+1)
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Rejections by Reason"),
		piechart.WithShowData(true),
	)
	for _, reason := range model.AllRejectReasons() {
		n := summary.Rejections[reason]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{reason.String(), strconv.Itoa(n)})
		chart.LabelAndIntValue(reason.String(), uint64(n))
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.Rejected()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSaved lists the saved pages.
func (w *MarkdownWriter) writeSaved(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Saved Pages")
	md.PlainText("")

	rows := make([][]string, 0, summary.Saved)
	for _, v := range summary.Visits {
		if !v.Accepted {
			continue
		}
		rows = append(rows, []string{v.URL, strconv.Itoa(v.Depth), strconv.Itoa(v.ContentLength)})
	}

	if len(rows) == 0 {
		md.PlainText("No pages were saved.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Characters"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRejected lists rejected entries with their details.
func (w *MarkdownWriter) writeRejected(md *markdown.Markdown, summary *model.RunSummary) {
	visits := rejectedVisits(summary)
	if len(visits) == 0 {
		return
	}

	md.H2("Rejected URLs")
	md.PlainText("")

	rows := make([][]string, len(visits))
	for i, v := range visits {
		detail := v.Error
		if detail == "" {
			detail = "-"
		}
		rows[i] = []string{
			truncateString(v.URL, 80),
			v.Reason.String(),
			strconv.Itoa(v.Depth),
			escapePipes(truncateString(detail, 60)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason", "Depth", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [corpuscrawl](https://github.com/nao1215/corpuscrawl)*")
}

// escapePipes keeps table cells from splitting on literal pipes.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
