// Package model defines the domain types and value objects for the
// envrunner CLI.
//
// This package contains pure data structures with no external dependencies.
// Environment run outcomes (EnvResult, CommandResult) flow from the runner
// to the report layer; statuses for containerized runs are additionally
// persisted on Docker container labels and reconstructed at runtime.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
