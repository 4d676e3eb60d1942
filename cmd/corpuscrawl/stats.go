package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/config"
	"github.com/nao1215/corpuscrawl/internal/corpus"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [corpus-file]",
		Short: "Summarize a corpus file",
		Long: `Stats counts the records of an NDJSON corpus file.

Malformed lines are the lines the crawler skips when it loads the file for
deduplication; they are never rewritten.

Examples:
  # Summarize web_corpus.jsonl in the current directory
  corpuscrawl stats

  # Summarize another corpus
  corpuscrawl stats data/python.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultOutputPath
			if len(args) > 0 {
				path = args[0]
			}
			return printStats(cmd.OutOrStdout(), path)
		},
	}
}

// printStats prints the statistics of the corpus file at path.
func printStats(out io.Writer, path string) error {
	stats, err := corpus.ReadStats(path)
	if err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}

	size := "missing"
	if info, err := os.Stat(path); err == nil {
		size = humanize.IBytes(uint64(info.Size())) //nolint:gosec // file sizes are never negative
	}

	fmt.Fprintf(out, "Corpus:      %s (%s)\n", path, size)
	fmt.Fprintf(out, "Records:     %s\n", humanize.Comma(int64(stats.Records)))
	fmt.Fprintf(out, "Unique URLs: %s\n", humanize.Comma(int64(stats.UniqueURLs)))
	fmt.Fprintf(out, "Characters:  %s\n", humanize.Comma(int64(stats.Characters)))
	if stats.Malformed > 0 {
		fmt.Fprintf(out, "Malformed:   %s (skipped)\n", humanize.Comma(int64(stats.Malformed)))
	}
	return nil
}
