// Package tools runs external commands for the optimizer.
//
// Ownership boundary:
// - synchronous command execution with captured stdout/stderr
//
// - spawn failure classification (missing binary, missing runtime)
//
// Exit status is reported, never interpreted. Whether a non-zero exit is a
// failure is the caller's decision.
package tools
