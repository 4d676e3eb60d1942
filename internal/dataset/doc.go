// Package dataset manages the instruction/code dataset used to fine-tune
// the code assistant.
//
// Records are stored one JSON object per line:
//
//	{"instruction": "...", "code": "..."}
//
// Appends are deduplicated by a SHA3-256 hash of the NFC-normalized
// instruction and code, so re-submitting the same example is a no-op.
package dataset
