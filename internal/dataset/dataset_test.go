package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFile creates a dataset file with the given content.
func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	return path
}

// TestOpen tests loading existing datasets.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("missing file is empty", func(t *testing.T) {
		t.Parallel()

		d, err := Open(filepath.Join(t.TempDir(), "none.jsonl"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Len() != 0 {
			t.Errorf("expected empty dataset, got %d", d.Len())
		}
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, strings.Join([]string{
			`{"instruction": "add", "code": "x = 1 + 1"}`,
			`not json`,
			``,
			`{"instruction": "no code"}`,
			`{"instruction": "bad code", "code": 5}`,
			`{"instruction": "add", "code": "x = 1 + 1"}`,
			`{"instruction": "mul", "code": "y = 2 * 3"}`,
		}, "\n"))

		d, err := Open(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Len() != 2 {
			t.Errorf("expected 2 distinct records, got %d", d.Len())
		}
		if !d.Contains("mul", "y = 2 * 3") {
			t.Error("expected mul record to be indexed")
		}
	})
}

// TestAppend tests deduplicated appends.
func TestAppend(t *testing.T) {
	t.Parallel()

	t.Run("writes new records and skips duplicates", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "data.jsonl")
		d, err := Open(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		added, err := d.Append("print hello", `print("<hello>")`)
		if err != nil || !added {
			t.Fatalf("expected first append to succeed, got added=%v err=%v", added, err)
		}

		added, err = d.Append("  print hello\n", `print("<hello>")`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added {
			t.Error("expected whitespace variant to be a duplicate")
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file path
		if err != nil {
			t.Fatalf("failed to read dataset: %v", err)
		}
		want := `{"instruction":"print hello","code":"print(\"<hello>\")"}` + "\n"
		if string(data) != want {
			t.Errorf("unexpected file content:\n got %q\nwant %q", data, want)
		}
	})

	t.Run("unicode normalization", func(t *testing.T) {
		t.Parallel()

		d, err := Open(filepath.Join(t.TempDir(), "data.jsonl"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Precomposed and decomposed e-acute.
		if _, err := d.Append("caf\u00e9", "x = 1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		added, err := d.Append("cafe\u0301", "x = 1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added {
			t.Error("expected NFC-equivalent instruction to be a duplicate")
		}
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		t.Parallel()

		d, err := Open(filepath.Join(t.TempDir(), "data.jsonl"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := d.Append(" ", "x"); !errors.Is(err, ErrEmptyField) {
			t.Errorf("expected ErrEmptyField, got %v", err)
		}
		if _, err := d.Append("x", ""); !errors.Is(err, ErrEmptyField) {
			t.Errorf("expected ErrEmptyField, got %v", err)
		}
	})

	t.Run("dedup survives reopen", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "data.jsonl")
		d1, err := Open(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := d1.Append("a", "b"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		d2, err := Open(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		added, err := d2.Append("a", "b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added {
			t.Error("expected duplicate after reopen")
		}
	})
}

// TestHash tests the dedup key.
func TestHash(t *testing.T) {
	t.Parallel()

	a := Record{Instruction: "ab", Code: "c"}.Hash()
	b := Record{Instruction: "a", Code: "bc"}.Hash()
	if a == b {
		t.Error("expected field boundary to change the hash")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
}

// TestExportFineTune tests the fine-tuning text export.
func TestExportFineTune(t *testing.T) {
	t.Parallel()

	path := writeFile(t, strings.Join([]string{
		`{"instruction": " sum list ", "code": "total = sum(xs)\n"}`,
		`{"instruction": "", "code": "skipped = True"}`,
		`{"instruction": "empty code", "code": "  "}`,
		`garbage`,
		`{"instruction": "square", "code": "y = x ** 2"}`,
	}, "\n"))

	d, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	n, err := d.ExportFineTune(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 exported records, got %d", n)
	}

	want := "# Task: sum list\ntotal = sum(xs)\n\n# Task: square\ny = x ** 2\n\n"
	if buf.String() != want {
		t.Errorf("unexpected export:\n got %q\nwant %q", buf.String(), want)
	}
}

// TestLoadCode tests joining code fields.
func TestLoadCode(t *testing.T) {
	t.Parallel()

	path := writeFile(t, strings.Join([]string{
		`{"instruction": "a", "code": "x = 1"}`,
		`{"code": "y = 2"}`,
		`[1, 2]`,
		`{"instruction": "c", "code": "z = 3"}`,
	}, "\n")+"\n")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := d.LoadCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "x = 1\ny = 2\nz = 3" {
		t.Errorf("unexpected code %q", got)
	}

	records, err := d.Records()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 || records[1].Instruction != "" {
		t.Errorf("unexpected records %+v", records)
	}
}
