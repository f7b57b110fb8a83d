// Package exec provides an interface for running external commands.
package exec

import (
	"context"
)

// Result is the captured outcome of a command that ran to completion
// (successfully or not).
type Result struct {
	// Stdout is everything the process wrote to standard output.
	Stdout []byte
	// Stderr is everything the process wrote to standard error.
	Stderr []byte
	// ExitCode is the process exit status; -1 if it was killed.
	ExitCode int
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and captures stdout and stderr separately.
	// A non-zero exit status is reported through Result.ExitCode, not as an
	// error. The error is non-nil only when the process could not be started
	// or the context ended before it finished.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (Result, error)

	// LookPath reports whether the named executable can be found.
	LookPath(name string) (string, error)
}
