package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dvaldb/internal/dval"
)

// TablePrefix marks physical tables that hold user data.
const TablePrefix = "user_"

// IDColumn is the synthetic leading column present on every table.
const IDColumn = "id"

// Column is a declared (name, type) pair. Either half may still be empty
// while the user is editing.
type Column struct {
	Name dval.Hole[string]
	Type dval.Hole[dval.Tipe]
}

// Live reports whether both halves are filled.
func (c Column) Live() (string, dval.Tipe, bool) {
	name, ok := c.Name.Get()
	if !ok {
		return "", nil, false
	}
	tipe, ok := c.Type.Get()
	if !ok {
		return "", nil, false
	}
	return name, tipe, true
}

// HasID reports whether id addresses either slot of the column.
func (c Column) HasID(id dval.HoleID) bool {
	return c.Name.ID() == id || c.Type.ID() == id
}

type columnJSON struct {
	Name dval.Hole[string] `json:"name"`
	Type dval.Hole[string] `json:"type"`
}

// MarshalJSON implements json.Marshaler for Column. Tipes are stored in
// their textual form.
func (c Column) MarshalJSON() ([]byte, error) {
	out := columnJSON{Name: c.Name, Type: dval.Empty[string](c.Type.ID())}
	if tipe, ok := c.Type.Get(); ok {
		out.Type = dval.Full(c.Type.ID(), tipe.String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Column.
func (c *Column) UnmarshalJSON(data []byte) error {
	var in columnJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Name = in.Name
	c.Type = dval.Empty[dval.Tipe](in.Type.ID())
	if s, ok := in.Type.Get(); ok {
		tipe, err := dval.ParseTipe(s)
		if err != nil {
			return fmt.Errorf("column %d: %w", in.Type.ID(), err)
		}
		c.Type = dval.Full(in.Type.ID(), tipe)
	}
	return nil
}

// LiveColumn is a column whose name and type are both known.
type LiveColumn struct {
	Name string
	Type dval.Tipe
}

// Table is a user table definition.
type Table struct {
	ID              uuid.UUID   `json:"id"`
	Host            string      `json:"host"`
	DisplayName     string      `json:"display_name"`
	ActualName      string      `json:"actual_name"`
	Columns         []Column    `json:"columns"`
	Version         int         `json:"version"`
	PastMigrations  []Migration `json:"past_migrations"`
	ActiveMigration *Migration  `json:"active_migration,omitempty"`
}

// NewTable returns an empty table whose physical name is derived from the
// display name.
func NewTable(id uuid.UUID, host, displayName string) Table {
	return Table{
		ID:          id,
		Host:        host,
		DisplayName: displayName,
		ActualName:  ActualName(displayName),
	}
}

// ActualName derives the physical table name from a display name.
func ActualName(displayName string) string {
	return TablePrefix + cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(displayName)))
}

// LiveColumns returns the usable columns in definition order, without the
// synthetic id column.
func (t Table) LiveColumns() []LiveColumn {
	cols := make([]LiveColumn, 0, len(t.Columns))
	for _, c := range t.Columns {
		if name, tipe, ok := c.Live(); ok {
			cols = append(cols, LiveColumn{Name: name, Type: tipe})
		}
	}
	return cols
}

// RowColumns returns ("id", ID) followed by the live columns. This is the
// column order of every SELECT and every decoded row.
func (t Table) RowColumns() []LiveColumn {
	cols := make([]LiveColumn, 0, len(t.Columns)+1)
	cols = append(cols, LiveColumn{Name: IDColumn, Type: dval.TID})
	return append(cols, t.LiveColumns()...)
}

// ColumnType returns the declared tipe of a live column.
func (t Table) ColumnType(name string) (dval.Tipe, bool) {
	if name == IDColumn {
		return dval.TID, true
	}
	for _, c := range t.LiveColumns() {
		if c.Name == name {
			return c.Type, true
		}
	}
	return nil, false
}

// Column returns the column addressed by either of its slot ids.
func (t Table) Column(id dval.HoleID) (Column, bool) {
	for _, c := range t.Columns {
		if c.HasID(id) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNamed returns the column whose name slot holds name.
func (t Table) ColumnNamed(name string) (Column, bool) {
	for _, c := range t.Columns {
		if n, ok := c.Name.Get(); ok && n == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasMigration reports whether a migration is in flight.
func (t Table) HasMigration() bool {
	return t.ActiveMigration != nil
}
