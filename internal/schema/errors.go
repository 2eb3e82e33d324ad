package schema

import (
	"errors"
	"fmt"
)

// ErrMigrationActive is returned when a second migration is opened on a table.
var ErrMigrationActive = errors.New("a migration is already active")

// ErrTableExists is returned when a table is created under a display name
// already in use.
var ErrTableExists = errors.New("table already exists")

// ErrUnknownTable is returned when a display name resolves to no table.
var ErrUnknownTable = errors.New("unknown table")

// Error describes a failed schema operation.
type Error struct {
	Table string
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsMigrationActive returns true if err reports a second concurrent migration.
// Uses errors.Is to handle wrapped errors.
func IsMigrationActive(err error) bool {
	return errors.Is(err, ErrMigrationActive)
}
