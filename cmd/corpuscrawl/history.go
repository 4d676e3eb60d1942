package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/database"
	"github.com/nao1215/corpuscrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not set.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command reads the runs recorded by 'corpuscrawl crawl'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past crawl runs",
		Long: `History lists the crawl runs recorded in the history database, most
recent first.

With a run ID, the full report of that run is printed, including every
processed URL and why it was saved or rejected. With --url, the last
recorded visit of one URL is shown.

Examples:
  # List the last 20 runs
  corpuscrawl history

  # List every run
  corpuscrawl history --limit 0

  # Show one run as markdown
  corpuscrawl history 3f0c9a4e-... --report markdown

  # Show what happened to a URL the last time it was crawled
  corpuscrawl history --url https://realpython.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("url", "",
		"Show the last recorded visit of this URL")
	cmd.Flags().String("report", report.FormatText,
		"Report format for a single run: text, json or markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	visitURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("report")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening database
	if len(args) > 0 && visitURL != "" {
		return errors.New("a run ID and --url cannot be used together")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case visitURL != "":
		return showLastVisit(ctx, out, db, visitURL)
	case len(args) > 0:
		return showRun(ctx, out, db, args[0], format)
	default:
		return listRuns(ctx, out, db, limit)
	}
}

// listRuns prints a table of recorded runs.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'corpuscrawl crawl <seed-url>' to start collecting pages.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-16s  %5s  %8s  %s\n", "ID", "Started", "Source", "Saved", "Rejected", "Output")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))

	for _, run := range runs {
		source := run.Source
		if source == "" {
			source = "-"
		}
		saved := fmt.Sprintf("%d", run.Saved)
		if run.Interrupted {
			saved += "*"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-16s  %5s  %8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			truncate(source, 16),
			saved,
			run.Rejected,
			run.OutputPath,
		)
	}

	fmt.Fprintln(out, "\n* interrupted run")
	fmt.Fprintln(out, "Use 'corpuscrawl history <run-id>' to see every URL of a run.")

	return nil
}

// showRun prints the full report of one run.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, id, format string) error {
	summary, err := db.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			return fmt.Errorf("no run with ID %s (use 'corpuscrawl history' to list runs)", id)
		}
		return fmt.Errorf("failed to load run: %w", err)
	}

	// A stored run is always shown with its rejected URLs.
	w, err := report.NewWriter(format, out, getVersion(), true)
	if err != nil {
		return err
	}
	_, err = w.Write(summary)
	return err
}

// showLastVisit prints the most recent visit of a URL.
func showLastVisit(ctx context.Context, out io.Writer, db *database.CrawlDB, url string) error {
	visit, ok, err := db.LastVisit(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to look up URL: %w", err)
	}
	if !ok {
		fmt.Fprintf(out, "%s has never been crawled.\n", url)
		return nil
	}

	fmt.Fprintf(out, "URL:    %s\n", visit.URL)
	fmt.Fprintf(out, "Depth:  %d\n", visit.Depth)
	if visit.Accepted {
		fmt.Fprintf(out, "Result: saved (%d characters)\n", visit.ContentLength)
	} else {
		fmt.Fprintf(out, "Result: rejected (%s)\n", visit.Reason)
	}
	if visit.StatusCode != 0 {
		fmt.Fprintf(out, "Status: %d\n", visit.StatusCode)
	}
	if visit.Error != "" {
		fmt.Fprintf(out, "Error:  %s\n", visit.Error)
	}
	return nil
}

// truncate shortens s to maxLen runes, marking the cut with "~".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "~"
}
