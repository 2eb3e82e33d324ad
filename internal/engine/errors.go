package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a persistence error with structured context for diagnostics.
//
// INTERNAL errors are schema-integrity or store-invariant violations, not
// user data errors. They abort the current operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the display name of the affected table.
	Table string

	// Field is the offending column or field name.
	Field string

	// Expected and Actual describe a type or shape mismatch.
	Expected string
	Actual   string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInternal indicates a fatal integrity violation.
	ErrCodeInternal ErrorCode = "INTERNAL"

	// ErrCodeLocked indicates a destructive edit on a table holding rows.
	ErrCodeLocked ErrorCode = "LOCKED"

	// ErrCodeNotFound indicates an unknown table name.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates a name already in use.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidValue indicates caller data that does not fit a column.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Table != "" {
		ctx = append(ctx, "table="+e.Table)
	}
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if e.Expected != "" {
		ctx = append(ctx, "expected="+e.Expected)
	}
	if e.Actual != "" {
		ctx = append(ctx, "actual="+e.Actual)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsInternal returns true if err is a fatal integrity error.
// Uses errors.As to handle wrapped errors.
func IsInternal(err error) bool {
	return hasCode(err, ErrCodeInternal)
}

// IsLocked returns true if err rejected an edit on a locked table.
func IsLocked(err error) bool {
	return hasCode(err, ErrCodeLocked)
}

// IsNotFound returns true if err names an unknown table.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func internal(table, field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Table:   table,
		Field:   field,
	}
}

// decodeError reports a cell that does not parse as its declared tipe.
func decodeError(expected, cell string, cause error) *Error {
	return &Error{
		Code:     ErrCodeInternal,
		Message:  "cannot decode stored cell",
		Expected: expected,
		Actual:   fmt.Sprintf("%q", cell),
		Err:      cause,
	}
}

func notFound(table string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "no such table", Table: table}
}
