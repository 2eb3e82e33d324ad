package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/engine"
	"github.com/roach88/dvaldb/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Engine refused the operation (unknown table, locked table, bad value, etc.)
	ExitCommandError = 2 // Command error (bad arguments, config, store unreachable, etc.)
)

// Error codes reported in structured output. Engine errors report their own
// code (INTERNAL, LOCKED, NOT_FOUND, CONFLICT, INVALID_VALUE).
const (
	ErrCodeGeneric         = "E001"
	ErrCodeInvalidArgs     = "E002"
	ErrCodeMigrationActive = "E003"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set once the error was written to the command's output.
	Reported bool
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text, JSON or BSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard structured response.
type CLIResponse struct {
	Status string    `json:"status" bson:"status"`                   // "ok" or "error"
	Data   any       `json:"data,omitempty" bson:"data,omitempty"`   // success payload
	Error  *CLIError `json:"error,omitempty" bson:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code" bson:"code"`
	Message string `json:"message" bson:"message"`
	Table   string `json:"table,omitempty" bson:"table,omitempty"`
	Field   string `json:"field,omitempty" bson:"field,omitempty"`
}

// Success outputs a successful result in the configured format. Text output
// prints data with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "text" {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	return f.encode(CLIResponse{Status: "ok", Data: data})
}

// Rows outputs decoded rows. Text output prints one row per line; BSON
// output writes one document per row.
func (f *OutputFormatter) Rows(rows []dval.DObj) error {
	switch f.Format {
	case "text":
		for _, row := range rows {
			fmt.Fprintln(f.Writer, dval.String(row))
		}
		return nil
	case "bson":
		for _, row := range rows {
			doc, err := dval.ToGo(row)
			if err != nil {
				return err
			}
			data, err := bson.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode BSON: %w", err)
			}
			if _, err := f.Writer.Write(data); err != nil {
				return err
			}
		}
		return nil
	}

	out := make([]any, len(rows))
	for i, row := range rows {
		g, err := dval.ToGo(row)
		if err != nil {
			return err
		}
		out[i] = g
	}
	return f.Success(out)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(e CLIError) error {
	if f.Format == "text" {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
		if f.Verbose && e.Table != "" {
			fmt.Fprintf(f.Writer, "Details: table=%s field=%s\n", e.Table, e.Field)
		}
		return nil
	}
	return f.encode(CLIResponse{Status: "error", Error: &e})
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	if f.Format == "bson" {
		data, err := bson.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode BSON: %w", err)
		}
		_, err = f.Writer.Write(data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is structured, verbose logs go to ErrWriter to avoid corrupting output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err in the configured format and returns it as an ExitError.
// Engine and schema errors exit with ExitFailure; anything else is a
// command error.
func (f *OutputFormatter) Fail(err error) error {
	cliErr, code := classify(err)
	_ = f.Error(cliErr)
	return &ExitError{Code: code, Message: cliErr.Code, Err: err, Reported: true}
}

// IsReported reports whether err was already written by a formatter.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

func classify(err error) (CLIError, int) {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return CLIError{
			Code:    string(engErr.Code),
			Message: engErr.Error(),
			Table:   engErr.Table,
			Field:   engErr.Field,
		}, ExitFailure
	}
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		code := ErrCodeGeneric
		if errors.Is(err, schema.ErrMigrationActive) {
			code = ErrCodeMigrationActive
		}
		return CLIError{Code: code, Message: err.Error(), Table: schemaErr.Table}, ExitFailure
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return CLIError{Code: ErrCodeInvalidArgs, Message: err.Error()}, ExitCommandError
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}, ExitCommandError
}
