package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/sandbox"
)

// errProgramFailed is returned when sandboxed code does not succeed.
// The trace has already been printed.
var errProgramFailed = errors.New("program failed")

// NewExecCmd creates the exec command.
func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <file|->",
		Short: "Run code in the sandbox",
		Long: `Exec runs a program in a separate process with a wall-clock timeout, an
empty environment (PATH only), a temporary working directory and capped
output.

On success the program output and its top-level variables are printed. On
failure the error trace is printed and the command exits with status 1.
Use "-" to read the program from standard input.

Examples:
  # Run a Python file
  corpuscrawl exec solution.py

  # Run a shell script from stdin with a 2 second limit
  echo 'echo hello' | corpuscrawl exec --language sh --timeout 2s -`,
		Args: cobra.ExactArgs(1),
		RunE: runExecCmd,
	}

	cmd.Flags().StringP("language", "l", "",
		"Language of the program: python or sh (default: from the file extension, else python)")
	cmd.Flags().DurationP("timeout", "t", sandbox.DefaultTimeout,
		"Wall-clock limit of the program")

	return cmd
}

// runExecCmd executes the exec command.
func runExecCmd(cmd *cobra.Command, args []string) error {
	langName, err := cmd.Flags().GetString("language")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	if langName == "" {
		langName = languageFromPath(args[0])
	}
	lang, err := languageByName(langName)
	if err != nil {
		return err
	}

	code, err := readCode(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	runner := sandbox.NewRunner(sandbox.WithLanguage(lang), sandbox.WithTimeout(timeout))
	res, err := runner.Run(context.Background(), code)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	if !res.OK {
		return errProgramFailed
	}
	return nil
}

// languageByName returns the sandbox language with the given name.
func languageByName(name string) (sandbox.Language, error) {
	switch strings.ToLower(name) {
	case "", "python", "py":
		return sandbox.Python(), nil
	case "sh", "shell":
		return sandbox.Shell(), nil
	default:
		return sandbox.Language{}, fmt.Errorf("unsupported language %q (supported: python, sh)", name)
	}
}

// languageFromPath guesses the language from a file extension.
func languageFromPath(path string) string {
	if filepath.Ext(path) == ".sh" {
		return "sh"
	}
	return "python"
}

// readCode reads a program from path, or from stdin when path is "-".
func readCode(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // user-provided program path is intentional
	}
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

// printResult prints a sandbox result: output and variables on success,
// the trace on failure.
func printResult(out, errOut io.Writer, res *sandbox.Result) {
	if res.Stdout != "" {
		fmt.Fprint(out, res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Fprintln(out)
		}
	}

	if !res.OK {
		fmt.Fprintln(errOut, strings.TrimRight(res.Trace, "\n"))
		return
	}

	if len(res.Namespace) > 0 {
		fmt.Fprintln(out, "\nVariables:")
		for _, name := range slices.Sorted(maps.Keys(res.Namespace)) {
			fmt.Fprintf(out, "  %s = %s\n", name, res.Namespace[name])
		}
	}
	if res.Truncated {
		fmt.Fprintln(errOut, "(output truncated)")
	}
	fmt.Fprintf(errOut, "finished in %s\n", res.Duration.Round(time.Millisecond))
}
