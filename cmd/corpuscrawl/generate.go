package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/corpuscrawl/internal/assistant"
	"github.com/nao1215/corpuscrawl/internal/dataset"
	"github.com/nao1215/corpuscrawl/internal/sandbox"
)

// endpointEnv names the environment variable holding the default
// generation endpoint.
const endpointEnv = "CORPUSCRAWL_GENERATE_URL"

// generateOptions holds the resolved flags of the generate command.
type generateOptions struct {
	run  bool
	save bool
}

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [instruction]",
		Short: "Generate code with a language model server",
		Long: `Generate sends an instruction to a text generation server and prints the
returned code. The code of the dataset file is prepended to the prompt as
context.

Python code is run in the sandbox unless --no-run is given. With --save,
examples that run successfully are added to the dataset.

Without an instruction, instructions are read line by line from standard
input until "exit", "quit" or end of input.

The server receives {"model", "prompt", "max_tokens"} as JSON and must
answer with {"text"}.

Examples:
  # Generate and run one snippet
  corpuscrawl generate --endpoint http://localhost:8000/generate "Python function that reverses a string"

  # Interactive session that grows the dataset
  CORPUSCRAWL_GENERATE_URL=http://localhost:8000/generate corpuscrawl generate --save`,
		Args: cobra.ArbitraryArgs,
		RunE: runGenerateCmd,
	}

	cmd.Flags().String("endpoint", os.Getenv(endpointEnv),
		"Generation endpoint URL (default: $"+endpointEnv+")")
	cmd.Flags().String("model", assistant.DefaultModel,
		"Model name sent to the server")
	cmd.Flags().Int("max-tokens", assistant.DefaultMaxTokens,
		"Maximum number of generated tokens")
	cmd.Flags().StringP("file", "f", dataset.DefaultPath,
		"Dataset file used as context and for --save")
	cmd.Flags().Int("context", assistant.DefaultContextLimit,
		"Characters of dataset code prepended to the prompt (negative disables)")
	cmd.Flags().Bool("no-run", false,
		"Print generated code without running it")
	cmd.Flags().Bool("save", false,
		"Add generated examples that run successfully to the dataset")
	cmd.Flags().DurationP("timeout", "t", sandbox.DefaultTimeout,
		"Wall-clock limit of each sandbox run")

	return cmd
}

// runGenerateCmd executes the generate command.
func runGenerateCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	endpoint, err := flags.GetString("endpoint")
	if err != nil {
		return err
	}
	if endpoint == "" {
		return fmt.Errorf("%w (set --endpoint or $%s)", assistant.ErrEmptyEndpoint, endpointEnv)
	}
	modelName, err := flags.GetString("model")
	if err != nil {
		return err
	}
	maxTokens, err := flags.GetInt("max-tokens")
	if err != nil {
		return err
	}
	path, err := flags.GetString("file")
	if err != nil {
		return err
	}
	contextLimit, err := flags.GetInt("context")
	if err != nil {
		return err
	}
	noRun, err := flags.GetBool("no-run")
	if err != nil {
		return err
	}
	save, err := flags.GetBool("save")
	if err != nil {
		return err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return err
	}

	ds, err := dataset.Open(path)
	if err != nil {
		return err
	}

	a := &assistant.Assistant{
		Generator: assistant.NewHTTPGenerator(endpoint,
			assistant.WithModel(modelName),
			assistant.WithMaxTokens(maxTokens),
		),
		Runner:       sandbox.NewRunner(sandbox.WithTimeout(timeout)),
		Dataset:      ds,
		ContextLimit: contextLimit,
	}
	opts := generateOptions{run: !noRun, save: save}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		return generateOnce(ctx, out, cmd.ErrOrStderr(), a, strings.Join(args, " "), opts)
	}
	return generateLoop(ctx, cmd.InOrStdin(), out, cmd.ErrOrStderr(), a, opts)
}

// generateLoop reads instructions from in until exit, quit or EOF.
// A failed instruction is reported and the loop continues.
func generateLoop(ctx context.Context, in io.Reader, out, errOut io.Writer, a *assistant.Assistant, opts generateOptions) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "instruction> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		instruction := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(instruction) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := generateOnce(ctx, out, errOut, a, instruction, opts); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}

// generateOnce generates code for one instruction and, for Python, runs
// it. Other languages are only printed.
func generateOnce(ctx context.Context, out, errOut io.Writer, a *assistant.Assistant, instruction string, opts generateOptions) error {
	language := assistant.DetectLanguage(instruction)

	code, err := a.Generate(ctx, instruction)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "--- generated code (%s) ---\n%s\n", language, code)

	if !opts.run || language != "python" {
		return nil
	}

	fmt.Fprintln(out, "--- sandbox ---")
	if !opts.save {
		res, err := a.Runner.Run(ctx, code)
		if err != nil {
			return err
		}
		printResult(out, errOut, res)
		return nil
	}

	sub, err := a.Submit(ctx, instruction, code)
	if err != nil {
		return err
	}
	printResult(out, errOut, sub.Result)
	if sub.Saved {
		fmt.Fprintln(out, "saved to dataset")
	}
	return nil
}
