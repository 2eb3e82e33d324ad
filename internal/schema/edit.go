package schema

import (
	"github.com/roach88/dvaldb/internal/dval"
)

// Edit is a pure transform of a table definition.
type Edit func(Table) (Table, error)

// AddColumn appends a column with both slots empty.
func (t Table) AddColumn(nameID, typeID dval.HoleID) Table {
	cols := make([]Column, 0, len(t.Columns)+1)
	cols = append(cols, t.Columns...)
	cols = append(cols, Column{
		Name: dval.Empty[string](nameID),
		Type: dval.Empty[dval.Tipe](typeID),
	})
	t.Columns = cols
	return t
}

// SetColumnName fills the empty name slot with the given id.
// Columns whose name slot is full or carries another id are untouched.
func (t Table) SetColumnName(id dval.HoleID, name string) Table {
	t.Columns = mapColumns(t.Columns, func(c Column) Column {
		if c.Name.ID() == id && !c.Name.IsFull() {
			c.Name = c.Name.Fill(name)
		}
		return c
	})
	return t
}

// SetColumnType fills the empty type slot with the given id.
func (t Table) SetColumnType(id dval.HoleID, tipe dval.Tipe) Table {
	t.Columns = mapColumns(t.Columns, func(c Column) Column {
		if c.Type.ID() == id && !c.Type.IsFull() {
			c.Type = c.Type.Fill(tipe)
		}
		return c
	})
	return t
}

// ChangeColumnName replaces the content of the full name slot with the given id.
func (t Table) ChangeColumnName(id dval.HoleID, name string) Table {
	t.Columns = mapColumns(t.Columns, func(c Column) Column {
		if c.Name.ID() == id && c.Name.IsFull() {
			c.Name = c.Name.Fill(name)
		}
		return c
	})
	return t
}

// ChangeColumnType replaces the content of the full type slot with the given id.
func (t Table) ChangeColumnType(id dval.HoleID, tipe dval.Tipe) Table {
	t.Columns = mapColumns(t.Columns, func(c Column) Column {
		if c.Type.ID() == id && c.Type.IsFull() {
			c.Type = c.Type.Fill(tipe)
		}
		return c
	})
	return t
}

func mapColumns(cols []Column, f func(Column) Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = f(c)
	}
	return out
}

// EditAddColumn returns an Edit for Table.AddColumn.
func EditAddColumn(nameID, typeID dval.HoleID) Edit {
	return func(t Table) (Table, error) { return t.AddColumn(nameID, typeID), nil }
}

// EditSetColumnName returns an Edit for Table.SetColumnName.
func EditSetColumnName(id dval.HoleID, name string) Edit {
	return func(t Table) (Table, error) { return t.SetColumnName(id, name), nil }
}

// EditSetColumnType returns an Edit for Table.SetColumnType.
func EditSetColumnType(id dval.HoleID, tipe dval.Tipe) Edit {
	return func(t Table) (Table, error) { return t.SetColumnType(id, tipe), nil }
}

// EditChangeColumnName returns an Edit for Table.ChangeColumnName.
func EditChangeColumnName(id dval.HoleID, name string) Edit {
	return func(t Table) (Table, error) { return t.ChangeColumnName(id, name), nil }
}

// EditChangeColumnType returns an Edit for Table.ChangeColumnType.
func EditChangeColumnType(id dval.HoleID, tipe dval.Tipe) Edit {
	return func(t Table) (Table, error) { return t.ChangeColumnType(id, tipe), nil }
}

// EditBeginMigration returns an Edit for Table.BeginMigration.
func EditBeginMigration(kind MigrationKind, target, rollbackID, rollforwardID dval.HoleID) Edit {
	return func(t Table) (Table, error) {
		return t.BeginMigration(kind, target, rollbackID, rollforwardID)
	}
}

// Chain applies edits in order, stopping at the first error.
func Chain(edits ...Edit) Edit {
	return func(t Table) (Table, error) {
		for _, edit := range edits {
			var err error
			if t, err = edit(t); err != nil {
				return t, err
			}
		}
		return t, nil
	}
}

// ColumnsEqual reports whether two column lists are slot-for-slot identical.
func ColumnsEqual(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !columnEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func columnEqual(a, b Column) bool {
	if a.Name != b.Name || a.Type.ID() != b.Type.ID() || a.Type.IsFull() != b.Type.IsFull() {
		return false
	}
	at, _ := a.Type.Get()
	bt, _ := b.Type.Get()
	if at == nil || bt == nil {
		return at == nil && bt == nil
	}
	return dval.TipeEqual(at, bt)
}
