package sandbox

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// newShellRunner returns a Runner for /bin/sh scripts.
func newShellRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	return NewRunner(append([]Option{WithLanguage(Shell())}, opts...)...)
}

// TestRunSuccess tests a clean run with a namespace line.
func TestRunSuccess(t *testing.T) {
	t.Parallel()

	r := newShellRunner(t)
	code := `echo hello
printf '%s{"x":"1","items":[1,2]}\n' "` + NamespaceMarker + `"
`

	res, err := r.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, trace: %s", res.Trace)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if res.Stdout != "hello" {
		t.Errorf("expected marker line to be removed, got %q", res.Stdout)
	}
	if res.Namespace["x"] != "1" {
		t.Errorf("expected x=1, got %v", res.Namespace)
	}
	if res.Namespace["items"] != "[1,2]" {
		t.Errorf("expected raw JSON for non-string values, got %q", res.Namespace["items"])
	}
}

// TestRunFailure tests a non-zero exit.
func TestRunFailure(t *testing.T) {
	t.Parallel()

	r := newShellRunner(t)
	res, err := r.Run(context.Background(), "echo oops >&2\nexit 3\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Trace, "oops") {
		t.Errorf("expected stderr in trace, got %q", res.Trace)
	}
	if len(res.Namespace) != 0 {
		t.Errorf("expected empty namespace, got %v", res.Namespace)
	}
}

// TestRunTimeout tests that the timeout kills the program and its children.
func TestRunTimeout(t *testing.T) {
	t.Parallel()

	r := newShellRunner(t, WithTimeout(200*time.Millisecond))

	start := time.Now()
	res, err := r.Run(context.Background(), "sleep 5 &\nsleep 5\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("expected run to stop near the timeout, took %v", elapsed)
	}
	if res.OK || !res.TimedOut {
		t.Errorf("expected timeout, got %+v", res)
	}
	if !strings.Contains(res.Trace, "timed out") {
		t.Errorf("expected timeout trace, got %q", res.Trace)
	}
}

// TestRunCancelled tests parent context cancellation.
func TestRunCancelled(t *testing.T) {
	t.Parallel()

	r := newShellRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, "echo hi\n")
	if err != nil {
		// Starting with a cancelled context may fail before the process runs.
		return
	}
	if res.OK {
		t.Error("expected cancelled run not to be OK")
	}
}

// TestRunEnvironment tests the stripped environment and working directory.
func TestRunEnvironment(t *testing.T) {
	t.Setenv("CORPUSCRAWL_SECRET", "hunter2")

	parent := t.TempDir()
	r := newShellRunner(t, WithTempDir(parent))

	res, err := r.Run(context.Background(), `echo "[$HOME][$CORPUSCRAWL_SECRET]"
pwd
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, trace: %s", res.Trace)
	}

	out := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(out) != 2 {
		t.Fatalf("unexpected output %q", res.Stdout)
	}
	if out[0] != "[][]" {
		t.Errorf("expected empty environment, got %q", out[0])
	}
	if !strings.Contains(out[1], "corpuscrawl-sandbox-") {
		t.Errorf("expected a sandbox working directory, got %q", out[1])
	}
	if _, err := os.Stat(out[1]); !os.IsNotExist(err) {
		t.Errorf("expected working directory to be removed, got %v", err)
	}
}

// TestRunOutputLimit tests output truncation.
func TestRunOutputLimit(t *testing.T) {
	t.Parallel()

	r := newShellRunner(t, WithOutputLimit(100))
	code := `i=0
while [ $i -lt 2000 ]; do
  echo 0123456789
  i=$((i+1))
done
`

	res, err := r.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, trace: %s", res.Trace)
	}
	if len(res.Stdout) != 100 {
		t.Errorf("expected 100 bytes, got %d", len(res.Stdout))
	}
	if !res.Truncated {
		t.Error("expected truncated flag")
	}
}

// TestRunMissingInterpreter tests the start failure path.
func TestRunMissingInterpreter(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithLanguage(Language{
		Name:      "none",
		Command:   []string{"/nonexistent/interpreter"},
		Extension: ".x",
	}))

	if _, err := r.Run(context.Background(), "x"); err == nil {
		t.Error("expected error for missing interpreter")
	}

	empty := NewRunner(WithLanguage(Language{Name: "empty"}))
	if _, err := empty.Run(context.Background(), "x"); err == nil {
		t.Error("expected error for empty command")
	}
}

// TestRunPython tests the Python harness when python3 is installed.
func TestRunPython(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	r := NewRunner()

	t.Run("namespace", func(t *testing.T) {
		t.Parallel()

		res, err := r.Run(context.Background(), "x = 1 + 1\nname = 'go'\nprint('done')\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.OK {
			t.Fatalf("expected success, trace: %s", res.Trace)
		}
		if res.Namespace["x"] != "2" || res.Namespace["name"] != "'go'" {
			t.Errorf("unexpected namespace %v", res.Namespace)
		}
		if strings.TrimSpace(res.Stdout) != "done" {
			t.Errorf("unexpected stdout %q", res.Stdout)
		}
	})

	t.Run("traceback", func(t *testing.T) {
		t.Parallel()

		res, err := r.Run(context.Background(), "raise ValueError('bad input')\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.OK {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Trace, "ValueError: bad input") {
			t.Errorf("expected traceback, got %q", res.Trace)
		}
	})
}

// TestSplitNamespace tests marker parsing edge cases.
func TestSplitNamespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantOut string
		wantLen int
	}{
		{name: "no marker", in: "plain\n", wantOut: "plain\n", wantLen: 0},
		{name: "marker mid-line is ignored", in: "x " + NamespaceMarker + `{"a":"1"}` + "\n", wantOut: "x " + NamespaceMarker + `{"a":"1"}` + "\n", wantLen: 0},
		{name: "invalid JSON", in: NamespaceMarker + "{nope\n", wantOut: NamespaceMarker + "{nope\n", wantLen: 0},
		{name: "harness layout", in: "out\n\n" + NamespaceMarker + `{"a":"1","b":"2"}` + "\n", wantOut: "out\n", wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, ns := splitNamespace(tt.in)
			if out != tt.wantOut {
				t.Errorf("out = %q, want %q", out, tt.wantOut)
			}
			if len(ns) != tt.wantLen {
				t.Errorf("namespace size = %d, want %d", len(ns), tt.wantLen)
			}
		})
	}
}
