package dataset

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// DefaultPath is the dataset file used when none is configured.
const DefaultPath = "python_articles.jsonl"

// ErrEmptyField is returned by Append when the instruction or the code
// is blank.
var ErrEmptyField = errors.New("instruction and code must not be empty")

// Record is one dataset example.
type Record struct {
	Instruction string `json:"instruction"`
	Code        string `json:"code"`
}

// Hash returns the deduplication key of the record.
// Both fields are trimmed and NFC-normalized, so the same example typed
// with a different Unicode composition hashes identically.
func (r Record) Hash() string {
	h := sha3.New256()
	h.Write([]byte(canonical(r.Instruction))) //nolint:errcheck // hash writes never fail
	h.Write([]byte{0})                        //nolint:errcheck
	h.Write([]byte(canonical(r.Code)))        //nolint:errcheck
	return hex.EncodeToString(h.Sum(nil))
}

// canonical trims and NFC-normalizes a field.
func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Dataset is an append-only dataset file with an in-memory hash index.
type Dataset struct {
	path   string
	hashes map[string]struct{}
	mu     sync.Mutex
}

// Open loads the hash index of the dataset at path.
// A missing file is an empty dataset; malformed lines are skipped.
func Open(path string) (*Dataset, error) {
	d := &Dataset{
		path:   path,
		hashes: make(map[string]struct{}),
	}

	err := d.scan(func(r Record) {
		d.hashes[r.Hash()] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the dataset file path.
func (d *Dataset) Path() string {
	return d.path
}

// Len returns the number of distinct records.
func (d *Dataset) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hashes)
}

// Contains reports whether an equivalent record is already stored.
func (d *Dataset) Contains(instruction, code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.hashes[Record{Instruction: instruction, Code: code}.Hash()]
	return ok
}

// Append adds a record unless an equivalent one is already stored.
// It reports whether the record was written.
func (d *Dataset) Append(instruction, code string) (bool, error) {
	if strings.TrimSpace(instruction) == "" || strings.TrimSpace(code) == "" {
		return false, ErrEmptyField
	}

	rec := Record{Instruction: instruction, Code: code}
	key := rec.Hash()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.hashes[key]; ok {
		return false, nil
	}

	line, err := marshalLine(rec)
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	if dir := filepath.Dir(d.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return false, fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(d.path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return false, fmt.Errorf("failed to open dataset: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("failed to append record: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to close dataset: %w", err)
	}

	d.hashes[key] = struct{}{}
	return true, nil
}

// Records returns every well-formed record in file order.
func (d *Dataset) Records() ([]Record, error) {
	records := make([]Record, 0)
	err := d.scan(func(r Record) {
		records = append(records, r)
	})
	return records, err
}

// ExportFineTune writes the records with both fields non-empty as
// fine-tuning text:
//
//	# Task: <instruction>
//	<code>
//
// It returns the number of exported records.
func (d *Dataset) ExportFineTune(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0

	var writeErr error
	err := d.scan(func(r Record) {
		if writeErr != nil {
			return
		}
		instruction := strings.TrimSpace(r.Instruction)
		code := strings.TrimSpace(r.Code)
		if instruction == "" || code == "" {
			return
		}
		if _, err := fmt.Fprintf(bw, "# Task: %s\n%s\n\n", instruction, code); err != nil {
			writeErr = err
			return
		}
		n++
	})
	if err != nil {
		return n, err
	}
	if writeErr != nil {
		return n, fmt.Errorf("failed to write export: %w", writeErr)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("failed to write export: %w", err)
	}
	return n, nil
}

// LoadCode joins the code of every record with newlines.
// It is used as prompt context for the assistant.
func (d *Dataset) LoadCode() (string, error) {
	codes := make([]string, 0)
	err := d.scan(func(r Record) {
		codes = append(codes, r.Code)
	})
	if err != nil {
		return "", err
	}
	return strings.Join(codes, "\n"), nil
}

// scan calls fn for every line that decodes to an object with a string
// code field. A missing file yields no records.
func (d *Dataset) scan(fn func(Record)) error {
	f, err := os.Open(filepath.Clean(d.path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if rec, ok := parseLine(line); ok {
			fn(rec)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read dataset: %w", readErr)
		}
	}
}

// parseLine decodes one dataset line.
func parseLine(line []byte) (Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Record{}, false
	}
	rawCode, ok := fields["code"]
	if !ok {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(rawCode, &rec.Code); err != nil {
		return Record{}, false
	}
	if rawInstr, ok := fields["instruction"]; ok {
		if err := json.Unmarshal(rawInstr, &rec.Instruction); err != nil {
			return Record{}, false
		}
	}
	return rec, true
}

// marshalLine encodes a record as one newline-terminated JSON line.
func marshalLine(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
