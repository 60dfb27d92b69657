// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Commands return errors and never print and return nil; Run decides how
// to display them.

package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jeranaias/luminous-tui/internal/luminous"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Message + "\nUsage: " + e.Usage
	}
	return e.Message
}

// ConfigError wraps a config load or validation failure.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NoticeError is a refusal by the turn controller (no model selected,
// vision mismatch, ...).
type NoticeError struct {
	Text string
}

func (e *NoticeError) Error() string {
	return e.Text
}

// ReportedError is a failure the command already printed, such as an inline
// turn error. Run only maps it to an exit code.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewCommandError creates a new CommandError.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing required argument: " + argName, Usage: usage}
}

// ErrUnknownSubcommand creates an error for an unknown subcommand.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return &UsageError{Message: fmt.Sprintf("unknown %s subcommand: %s", command, sub), Usage: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, as a JSON response in JSON mode.
func DisplayError(err error, jsonMode bool) {
	var reported *ReportedError
	if err == nil || errors.As(err, &reported) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("error", err).Print()
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr  *UsageError
		configErr *ConfigError
		clientErr *luminous.ClientError
		apiErr    *luminous.APIError
	)
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &configErr):
		return ExitConfigError
	case errors.As(err, &clientErr):
		switch clientErr.Type {
		case luminous.ErrTypeNotConfigured:
			return ExitConfigError
		case luminous.ErrTypeTimeout:
			return ExitTimeoutError
		case luminous.ErrTypeNotFound:
			return ExitNotFoundError
		default:
			return ExitNetworkError
		}
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return ExitNotFoundError
		}
		return ExitGeneralError
	}
	return ExitGeneralError
}
