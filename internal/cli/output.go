package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Workload ran but some events failed
	ExitCommandError = 2 // Bad flags, unreadable config, journal not found
)

// ExitError carries the process exit code for a command error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not an ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// output writes command results in the selected format.
type output struct {
	format string
	w      io.Writer
}

// success writes data as JSON, or as text through its String method.
func (o output) success(data fmt.Stringer) error {
	if o.format == "json" {
		return o.json(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(o.w, data.String())
	return err
}

// failure writes data and reports err through the JSON envelope in json mode.
func (o output) failure(data fmt.Stringer, err error) error {
	if o.format == "json" {
		return o.json(Response{Status: "error", Data: data, Error: err.Error()})
	}
	_, werr := fmt.Fprintln(o.w, data.String())
	return werr
}

func (o output) json(r Response) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
