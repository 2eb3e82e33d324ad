package schema

import (
	"fmt"

	"github.com/roach88/dvaldb/internal/dval"
)

// MigrationKind is the closed set of structural changes a migration can carry.
type MigrationKind int

const (
	// ChangeColType converts a live column from one tipe to another.
	ChangeColType MigrationKind = iota + 1
)

func (k MigrationKind) String() string {
	switch k {
	case ChangeColType:
		return "ChangeColType"
	}
	return fmt.Sprintf("MigrationKind(%d)", int(k))
}

// ParseMigrationKind parses the name produced by MigrationKind.String.
func ParseMigrationKind(s string) (MigrationKind, error) {
	switch s {
	case "ChangeColType":
		return ChangeColType, nil
	}
	return 0, fmt.Errorf("unknown migration kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k MigrationKind) MarshalText() ([]byte, error) {
	switch k {
	case ChangeColType:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown migration kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MigrationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMigrationKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Expr is the source text of a conversion expression. Evaluating it belongs
// to the language evaluator.
type Expr string

// Migration is an opened, not yet applied, change to one column.
//
// Only opening is defined here. Committing or abandoning a migration, and
// running Rollback/Rollforward against old rows, are left to the evaluator
// integration; they must move ActiveMigration into PastMigrations and bump
// Version when they land.
type Migration struct {
	StartingVersion int             `json:"starting_version"`
	Kind            MigrationKind   `json:"kind"`
	Rollback        dval.Hole[Expr] `json:"rollback"`
	Rollforward     dval.Hole[Expr] `json:"rollforward"`
	Target          dval.HoleID     `json:"target"`
}

// BeginMigration opens a migration on the column addressed by target.
// It fails with ErrMigrationActive if the table already has one.
func (t Table) BeginMigration(kind MigrationKind, target, rollbackID, rollforwardID dval.HoleID) (Table, error) {
	if t.ActiveMigration != nil {
		return t, &Error{
			Table: t.DisplayName,
			Op:    "begin migration",
			Err:   ErrMigrationActive,
		}
	}
	switch kind {
	case ChangeColType:
	default:
		return t, &Error{
			Table: t.DisplayName,
			Op:    "begin migration",
			Err:   fmt.Errorf("unknown migration kind %d", int(kind)),
		}
	}
	t.ActiveMigration = &Migration{
		StartingVersion: t.Version,
		Kind:            kind,
		Rollback:        dval.Empty[Expr](rollbackID),
		Rollforward:     dval.Empty[Expr](rollforwardID),
		Target:          target,
	}
	return t, nil
}
