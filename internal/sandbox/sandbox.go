package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout is the wall-clock limit of one run.
	DefaultTimeout = 10 * time.Second

	// DefaultOutputLimit caps each of stdout and stderr.
	DefaultOutputLimit = 64 * 1024
)

// Result is the outcome of running code.
type Result struct {
	// OK is true when the program exited with status zero in time.
	OK bool

	// Namespace maps the program's top-level names to their repr.
	// It is empty when the program failed or printed no marker line.
	Namespace map[string]string

	// Trace is the error output (or timeout message) of a failed run.
	Trace string

	// Stdout is the program output without the marker line.
	Stdout string

	// ExitCode is the process exit status, -1 when it was killed.
	ExitCode int

	// TimedOut is true when the timeout killed the program.
	TimedOut bool

	// Truncated is true when output exceeded the cap.
	Truncated bool

	// Duration is how long the program ran.
	Duration time.Duration
}

// Runner executes code in a subprocess.
type Runner struct {
	language    Language
	timeout     time.Duration
	outputLimit int
	tempDir     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLanguage sets the language. The default is Python.
func WithLanguage(lang Language) Option {
	return func(r *Runner) {
		r.language = lang
	}
}

// WithTimeout sets the wall-clock limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithOutputLimit sets the per-stream output cap in bytes.
func WithOutputLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.outputLimit = n
		}
	}
}

// WithTempDir sets the parent of the per-run working directories.
func WithTempDir(dir string) Option {
	return func(r *Runner) {
		r.tempDir = dir
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		language:    Python(),
		timeout:     DefaultTimeout,
		outputLimit: DefaultOutputLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Language returns the configured language.
func (r *Runner) Language() Language {
	return r.language
}

// Run executes code and reports how it went.
//
// Program failures (non-zero exit, timeout) are reported in the Result
// with a nil error. The error is reserved for failures to start the
// program at all, such as a missing interpreter.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	if len(r.language.Command) == 0 {
		return nil, errors.New("sandbox language has no command")
	}

	workDir, err := os.MkdirTemp(r.tempDir, "corpuscrawl-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	entry, err := r.prepare(workDir, code)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.language.Command[1:]...), entry)
	cmd := exec.CommandContext(runCtx, r.language.Command[0], args...) //nolint:gosec // running user code is the purpose
	cmd.Dir = workDir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	cmd.Stdin = nil
	isolateProcess(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stdout: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stderr: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", r.language.Command[0], err)
	}

	stdout := newCappedBuffer(r.outputLimit)
	stderr := newCappedBuffer(r.outputLimit)

	// Both pipes must be drained before Wait.
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderr, stderrPipe)
		return err
	})
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	result := &Result{
		Namespace: make(map[string]string),
		ExitCode:  cmd.ProcessState.ExitCode(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}

	out, namespace := splitNamespace(stdout.String())
	result.Stdout = out

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Trace = fmt.Sprintf("timed out after %s\n%s", r.timeout, stderr.String())
	case ctx.Err() != nil:
		result.Trace = fmt.Sprintf("cancelled: %v\n%s", ctx.Err(), stderr.String())
	case waitErr != nil:
		result.Trace = stderr.String()
		if result.Trace == "" {
			result.Trace = waitErr.Error()
		}
	case drainErr != nil:
		result.Trace = fmt.Sprintf("failed to read output: %v", drainErr)
	default:
		result.OK = true
		result.Namespace = namespace
	}

	return result, nil
}

// prepare writes the code (and harness) into workDir and returns the
// file to execute.
func (r *Runner) prepare(workDir, code string) (string, error) {
	codeFile := "code" + r.language.Extension
	if err := os.WriteFile(filepath.Join(workDir, codeFile), []byte(code), 0o600); err != nil {
		return "", fmt.Errorf("failed to write code: %w", err)
	}
	if r.language.Harness == "" {
		return codeFile, nil
	}

	harnessFile := "harness" + r.language.Extension
	if err := os.WriteFile(filepath.Join(workDir, harnessFile), []byte(r.language.Harness), 0o600); err != nil {
		return "", fmt.Errorf("failed to write harness: %w", err)
	}
	return harnessFile, nil
}

// splitNamespace removes the last marker line from out and decodes it.
// Values that are not strings are kept in their JSON form.
func splitNamespace(out string) (string, map[string]string) {
	namespace := make(map[string]string)

	idx := strings.LastIndex(out, NamespaceMarker)
	if idx < 0 || (idx > 0 && out[idx-1] != '\n') {
		return out, namespace
	}

	line := out[idx+len(NamespaceMarker):]
	rest := ""
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		rest = line[nl+1:]
		line = line[:nl]
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return out, namespace
	}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			namespace[k] = s
			continue
		}
		namespace[k] = string(v)
	}

	// The harness prints an empty line before the marker.
	head := strings.TrimSuffix(out[:idx], "\n")
	return head + rest, namespace
}

// cappedBuffer keeps the first limit bytes and discards the rest while
// still consuming the stream.
type cappedBuffer struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

// newCappedBuffer creates a cappedBuffer.
func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

// Write implements io.Writer. It never fails so the child is never
// blocked on a full pipe.
func (c *cappedBuffer) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

// String returns the captured output.
func (c *cappedBuffer) String() string {
	return c.buf.String()
}
