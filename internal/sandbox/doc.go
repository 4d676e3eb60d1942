// Package sandbox runs untrusted code in a separate process.
//
// Code never runs inside the corpuscrawl process. Each Run gets a fresh
// temporary working directory, an environment containing only PATH, a
// wall-clock timeout that kills the whole process group, and a cap on the
// captured output.
//
// After the code finishes, the language harness prints one marker line
// with the top-level variables as JSON; Run returns them as the
// namespace of the Result.
package sandbox
