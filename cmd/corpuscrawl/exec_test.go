package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/corpuscrawl/internal/sandbox"
)

// TestExecCmd tests running programs through the sandbox.
func TestExecCmd(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	t.Run("runs a script from stdin", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		cmd := NewExecCmd()
		cmd.SetIn(strings.NewReader("echo hello from sandbox\n"))
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--language", "sh", "-"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if !strings.Contains(out.String(), "hello from sandbox") {
			t.Errorf("unexpected output: %q", out.String())
		}
	})

	t.Run("detects shell scripts by extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "fail.sh")
		if err := os.WriteFile(path, []byte("echo broken >&2\nexit 3\n"), 0600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		var errOut bytes.Buffer
		cmd := NewExecCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{path})

		err := cmd.Execute()
		if !errors.Is(err, errProgramFailed) {
			t.Fatalf("expected errProgramFailed, got %v", err)
		}
		if !strings.Contains(errOut.String(), "broken") {
			t.Errorf("expected trace on stderr, got %q", errOut.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		cmd := NewExecCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{filepath.Join(t.TempDir(), "none.py")})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error")
		}
	})
}

// TestLanguageByName tests language selection.
func TestLanguageByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "python"},
		{name: "Python", want: "python"},
		{name: "py", want: "python"},
		{name: "sh", want: "sh"},
		{name: "shell", want: "sh"},
		{name: "ruby", wantErr: true},
	}

	for _, tt := range tests {
		lang, err := languageByName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("languageByName(%q) expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("languageByName(%q) failed: %v", tt.name, err)
			continue
		}
		if lang.Name != tt.want {
			t.Errorf("languageByName(%q) = %q, want %q", tt.name, lang.Name, tt.want)
		}
	}

	if got := languageFromPath("script.sh"); got != "sh" {
		t.Errorf("languageFromPath(script.sh) = %q", got)
	}
	if got := languageFromPath("-"); got != "python" {
		t.Errorf("languageFromPath(-) = %q", got)
	}
}

// TestPrintResult tests how results are rendered.
func TestPrintResult(t *testing.T) {
	t.Parallel()

	t.Run("success lists variables in order", func(t *testing.T) {
		t.Parallel()
		var out, errOut bytes.Buffer
		printResult(&out, &errOut, &sandbox.Result{
			OK:        true,
			Stdout:    "done",
			Namespace: map[string]string{"y": "2", "x": "'a'"},
			Duration:  1500 * time.Microsecond,
		})

		got := out.String()
		if !strings.HasPrefix(got, "done\n") {
			t.Errorf("expected stdout first: %q", got)
		}
		if strings.Index(got, "x = 'a'") > strings.Index(got, "y = 2") {
			t.Errorf("variables not sorted: %q", got)
		}
		if !strings.Contains(errOut.String(), "finished in 2ms") {
			t.Errorf("unexpected stderr: %q", errOut.String())
		}
	})

	t.Run("failure prints the trace", func(t *testing.T) {
		t.Parallel()
		var out, errOut bytes.Buffer
		printResult(&out, &errOut, &sandbox.Result{Trace: "NameError: name 'z' is not defined\n"})

		if out.Len() != 0 {
			t.Errorf("expected no stdout, got %q", out.String())
		}
		if errOut.String() != "NameError: name 'z' is not defined\n" {
			t.Errorf("unexpected stderr: %q", errOut.String())
		}
	})
}
