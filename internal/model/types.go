// Package model defines the domain types for the envrunner CLI.
//
// All entities in this package are pure data structures with no external
// dependencies. They are shared between the config loader, the runner,
// the Docker integration, and the CLI output layer.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// EnvStatus represents the lifecycle state of a test environment run.
// The state transitions are:
//
//	Pending → Running → Passed | Failed | Error
//	Pending → Skipped (missing toolchain/image with skip_missing enabled)
type EnvStatus string

const (
	// StatusPending indicates the environment is selected but has not
	// started executing yet.
	StatusPending EnvStatus = "pending"

	// StatusRunning indicates the environment's commands are executing.
	StatusRunning EnvStatus = "running"

	// StatusPassed indicates every command in the environment exited 0.
	StatusPassed EnvStatus = "passed"

	// StatusFailed indicates a command exited non-zero. Commands after
	// the failing one are not executed.
	StatusFailed EnvStatus = "failed"

	// StatusError indicates the environment could not be executed at all
	// (workspace setup failed, image pull failed, command not found).
	// This is distinct from StatusFailed, where the command ran but the
	// tests or checks it invoked did not pass.
	StatusError EnvStatus = "error"

	// StatusSkipped indicates the environment was not run because its
	// interpreter or container image is unavailable and the configuration
	// enables skip_missing.
	StatusSkipped EnvStatus = "skipped"
)

// String returns the string representation of EnvStatus.
// This method satisfies the fmt.Stringer interface.
func (s EnvStatus) String() string {
	return string(s)
}

// IsValid checks whether the EnvStatus value is one of the
// predefined valid states.
func (s EnvStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final outcome. Terminal
// statuses never transition further and are safe to aggregate into a
// run summary.
func (s EnvStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	default:
		return false
	}
}

// ParseEnvStatus converts a string to an EnvStatus.
// Returns an error if the string does not match any valid status.
func ParseEnvStatus(s string) (EnvStatus, error) {
	status := EnvStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid environment status: %q (valid: pending, running, passed, failed, error, skipped)", s)
	}
	return status, nil
}

// envNameRegex validates environment names: alphanumeric, hyphens, dots,
// must start and end with alphanumeric. Dots allow version-style names
// like "go1.22".
var envNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateEnvName checks if the given name is a valid environment name.
// Valid names contain only alphanumeric characters, hyphens, and dots,
// and must start/end with an alphanumeric character. The name is used
// as a workspace directory name and a Docker label value, so the
// character set is deliberately conservative.
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	if !envNameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment name %q: must contain only alphanumeric characters, hyphens, and dots, and start/end with alphanumeric", name)
	}
	return nil
}

// CommandResult records the outcome of a single shell command executed
// within a test environment.
type CommandResult struct {
	// Command is the command string exactly as it appears in the
	// configuration file.
	Command string `json:"command"`

	// ExitStatus is the process exit status. Zero means success.
	ExitStatus int `json:"exitStatus"`

	// Output is the combined stdout and stderr of the command.
	Output string `json:"output,omitempty"`

	// Duration is the wall-clock execution time of the command.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the command exited with status zero.
func (c *CommandResult) Succeeded() bool {
	return c.ExitStatus == 0
}

// EnvResult is the aggregate outcome of running one test environment.
// It is the primary value passed from the runner to the report layer.
type EnvResult struct {
	// Name is the environment name from the configuration file.
	Name string `json:"name"`

	// Status is the terminal status of the run.
	Status EnvStatus `json:"status"`

	// Commands holds the result of each executed command, in execution
	// order. When a command fails, it is the last entry.
	Commands []CommandResult `json:"commands,omitempty"`

	// Containerized reports whether the environment ran inside a Docker
	// container rather than directly on the host.
	Containerized bool `json:"containerized"`

	// Reason carries a human-readable explanation for skipped and
	// errored environments. Empty for passed/failed runs.
	Reason string `json:"reason,omitempty"`

	// StartedAt is the UTC timestamp when the environment started.
	StartedAt time.Time `json:"startedAt"`

	// Duration is the total wall-clock time of the environment run,
	// including dependency installation.
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the environment ended in a non-passing terminal
// state that should make the overall run exit non-zero. Skipped
// environments do not count as failures.
func (r *EnvResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusError
}

// ExitCode defines the CLI process exit codes. These codes allow scripts
// and CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigNotFound indicates no envrunner configuration file was
	// found in the expected locations.
	ExitConfigNotFound ExitCode = 2

	// ExitConfigInvalid indicates the configuration file was found but
	// failed to parse or validate.
	ExitConfigInvalid ExitCode = 3

	// ExitEnvNotFound indicates an environment named on the command line
	// is not defined in the configuration.
	ExitEnvNotFound ExitCode = 4

	// ExitEnvFailed indicates at least one test environment failed.
	ExitEnvFailed ExitCode = 5

	// ExitStyleViolations indicates the style-check environment reported
	// violations.
	ExitStyleViolations ExitCode = 6

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while container mode was requested.
	ExitDockerNotRunning ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
