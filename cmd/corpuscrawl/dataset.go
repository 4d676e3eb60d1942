package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/assistant"
	"github.com/nao1215/corpuscrawl/internal/dataset"
	"github.com/nao1215/corpuscrawl/internal/sandbox"
)

// NewDatasetCmd creates the dataset command and its subcommands.
func NewDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage the instruction/code dataset",
		Long: `Dataset manages an NDJSON file of {"instruction", "code"} examples used to
fine-tune code models.

Examples are deduplicated by a hash of their instruction and code, so
adding the same example twice keeps one line.`,
	}

	cmd.PersistentFlags().StringP("file", "f", dataset.DefaultPath,
		"Dataset file")

	cmd.AddCommand(newDatasetAddCmd())
	cmd.AddCommand(newDatasetExportCmd())

	return cmd
}

// newDatasetAddCmd creates the dataset add command.
func newDatasetAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <instruction> <code-file|->",
		Short: "Add an example after running it in the sandbox",
		Long: `Add runs the code in the sandbox and stores the example only when the
program succeeds. Use --no-verify to store it without running it.

Examples:
  # Verify and add an example
  corpuscrawl dataset add "Reverse a list in Python" reverse.py

  # Add from stdin without running
  cat snippet.py | corpuscrawl dataset add --no-verify "Parse a CSV file" -`,
		Args: cobra.ExactArgs(2),
		RunE: runDatasetAddCmd,
	}

	cmd.Flags().Bool("no-verify", false,
		"Store the example without running it")
	cmd.Flags().DurationP("timeout", "t", sandbox.DefaultTimeout,
		"Wall-clock limit of the verification run")

	return cmd
}

// runDatasetAddCmd executes the dataset add command.
func runDatasetAddCmd(cmd *cobra.Command, args []string) error {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	noVerify, err := cmd.Flags().GetBool("no-verify")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	code, err := readCode(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}

	ds, err := dataset.Open(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	instruction := args[0]

	if noVerify {
		added, err := ds.Append(instruction, code)
		if err != nil {
			return err
		}
		printAdded(out, ds, added)
		return nil
	}

	lang, err := languageByName(languageFromPath(args[1]))
	if err != nil {
		return err
	}
	a := &assistant.Assistant{
		Runner:  sandbox.NewRunner(sandbox.WithLanguage(lang), sandbox.WithTimeout(timeout)),
		Dataset: ds,
	}

	sub, err := a.Submit(context.Background(), instruction, code)
	if err != nil {
		return err
	}
	if !sub.Result.OK {
		printResult(out, cmd.ErrOrStderr(), sub.Result)
		return fmt.Errorf("%w: example not added", errProgramFailed)
	}
	printAdded(out, ds, sub.Saved)
	return nil
}

// printAdded reports the outcome of an append.
func printAdded(out io.Writer, ds *dataset.Dataset, added bool) {
	if added {
		fmt.Fprintf(out, "Added example to %s (%d examples)\n", ds.Path(), ds.Len())
		return
	}
	fmt.Fprintf(out, "Example already in %s\n", ds.Path())
}

// newDatasetExportCmd creates the dataset export command.
func newDatasetExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset as fine-tuning text",
		Long: `Export writes every example as

  # Task: <instruction>
  <code>

separated by blank lines. Examples with an empty instruction or code are
left out.

Examples:
  # Print to stdout
  corpuscrawl dataset export

  # Write to a file
  corpuscrawl dataset export -o finetune.txt`,
		Args: cobra.NoArgs,
		RunE: runDatasetExportCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Write to this file instead of stdout")

	return cmd
}

// runDatasetExportCmd executes the dataset export command.
func runDatasetExportCmd(cmd *cobra.Command, _ []string) (err error) {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	ds, err := dataset.Open(path)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(outputPath) //nolint:gosec // user-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", cerr)
			}
		}()
		w = f
	}

	n, err := ds.ExportFineTune(w)
	if err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d examples to %s\n", n, outputPath)
	}
	return nil
}
