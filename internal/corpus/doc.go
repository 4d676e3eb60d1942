// Package corpus reads and writes the NDJSON corpus file.
//
// Each line of the corpus is one JSON object with a "url" and a "content"
// field. The Writer appends one complete line per accepted page and never
// rewrites existing lines, so a crashed run leaves a valid prefix of
// complete records. Readers skip lines that do not parse.
package corpus
