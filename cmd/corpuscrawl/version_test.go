package main

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

// TestReadBuildDetails tests how build info fills the version output.
func TestReadBuildDetails(t *testing.T) {
	t.Parallel()

	t.Run("nil build info uses fallbacks", func(t *testing.T) {
		t.Parallel()

		d := readBuildDetails(nil)
		if d.Version != "(devel)" || d.Commit != "unknown" || d.Date != "unknown" {
			t.Errorf("unexpected fallbacks: %+v", d)
		}
		if d.GoVersion != runtime.Version() {
			t.Errorf("GoVersion = %q, want %q", d.GoVersion, runtime.Version())
		}
		if d.Module != "github.com/nao1215/corpuscrawl" {
			t.Errorf("Module = %q", d.Module)
		}
	})

	t.Run("vcs settings are read", func(t *testing.T) {
		t.Parallel()

		info := &debug.BuildInfo{
			GoVersion: "go1.25.0",
			Main:      debug.Module{Path: "example.com/fork/corpuscrawl", Version: "v1.2.3"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}

		d := readBuildDetails(info)
		if d.Version != "v1.2.3" {
			t.Errorf("Version = %q, want v1.2.3", d.Version)
		}
		if d.Commit != "0123456" {
			t.Errorf("Commit = %q, want shortened revision", d.Commit)
		}
		if d.Date != "2026-10-01T12:00:00Z" {
			t.Errorf("Date = %q", d.Date)
		}
		if !d.Modified {
			t.Error("expected Modified to be true")
		}
		if d.Module != "example.com/fork/corpuscrawl" || d.GoVersion != "go1.25.0" {
			t.Errorf("unexpected module or Go version: %+v", d)
		}
	})

	t.Run("empty main version falls back to devel", func(t *testing.T) {
		t.Parallel()

		d := readBuildDetails(&debug.BuildInfo{})
		if d.Version != "(devel)" {
			t.Errorf("Version = %q, want (devel)", d.Version)
		}
	})
}

// TestPrintVersion tests the version output layout.
func TestPrintVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printVersion(&buf, buildDetails{
		Version:   "v1.0.0",
		Commit:    "abc1234",
		Date:      "2026-10-01",
		Modified:  true,
		Module:    "github.com/nao1215/corpuscrawl",
		GoVersion: "go1.25.0",
	})

	for _, want := range []string{
		"corpuscrawl version v1.0.0",
		"commit: abc1234 (dirty)",
		"built:  2026-10-01",
		"module: github.com/nao1215/corpuscrawl",
		"go:     go1.25.0 " + runtime.GOOS + "/" + runtime.GOARCH,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %q, got %q", want, buf.String())
		}
	}
}

// TestNewVersionCmd tests the version command.
func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("expected Use to be 'version', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("expected Short to be non-empty")
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"corpuscrawl version", "commit:", "built:", "go:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
	if getVersion() == "" {
		t.Error("getVersion() returned empty string")
	}
}
