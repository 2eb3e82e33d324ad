package engine

import (
	"context"
	"errors"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
	"github.com/roach88/dvaldb/internal/store"
)

// CreateTable creates the physical table of t with a leading id column and
// one column per live column, records t in the catalog and registers it.
// A table already registered under the same name fails with ErrCodeConflict.
func (e *Engine) CreateTable(ctx context.Context, t schema.Table) (schema.Table, error) {
	if err := checkColumnNames(t); err != nil {
		return schema.Table{}, err
	}

	live := t.LiveColumns()
	defs := make([]sqlquote.ColumnDef, len(live))
	for i, c := range live {
		defs[i] = sqlquote.ColumnDef{Name: c.Name, Type: c.Type}
	}
	stmt, err := sqlquote.CreateTable(e.backend.Dialect(), t.ActualName, defs)
	if err != nil {
		return schema.Table{}, &Error{Code: ErrCodeInvalidValue, Message: "unsupported column type", Table: t.DisplayName, Err: err}
	}

	err = e.registry.Create(t, func(t schema.Table) error {
		return e.backend.WithTx(ctx, func(ex store.Executor) error {
			ex = e.exec(ex)
			if err := ex.Exec(ctx, stmt); err != nil {
				return err
			}
			return e.catalog.With(ex).Save(ctx, t)
		})
	})
	if err != nil {
		if errors.Is(err, schema.ErrTableExists) {
			return schema.Table{}, &Error{Code: ErrCodeConflict, Message: "table already exists", Table: t.DisplayName}
		}
		return schema.Table{}, e.fail("create table", err)
	}

	e.holes.Advance(MaxHoleID([]schema.Table{t}))
	e.log.Infow("table created", "table", t.DisplayName, "actual_name", t.ActualName, "columns", len(live))
	return t, nil
}

// DropTable drops the physical table of the named table, removes it from the
// catalog and unregisters it. A table holding rows fails with ErrCodeLocked,
// and a table that another table's live column relates to fails with
// ErrCodeConflict.
func (e *Engine) DropTable(ctx context.Context, name string) (schema.Table, error) {
	dropped, err := e.registry.Drop(name, func(t schema.Table) error {
		for _, other := range e.registry.Tables() {
			if other.ID == t.ID {
				continue
			}
			for _, c := range other.LiveColumns() {
				if target, ok := dval.RelatedTable(c.Type); ok && e.sameTable(target, t) {
					return &Error{
						Code:    ErrCodeConflict,
						Message: "table is referenced by " + other.DisplayName + "." + c.Name,
						Table:   t.DisplayName,
					}
				}
			}
		}
		locked, err := e.IsLocked(ctx, t)
		if err != nil {
			return err
		}
		if locked {
			return &Error{Code: ErrCodeLocked, Message: "table has rows; delete them before dropping", Table: t.DisplayName}
		}
		return e.backend.WithTx(ctx, func(ex store.Executor) error {
			ex = e.exec(ex)
			if err := ex.Exec(ctx, sqlquote.DropTable(t.ActualName)); err != nil {
				return err
			}
			return e.catalog.With(ex).Delete(ctx, t.ID)
		})
	})
	if err != nil {
		if errors.Is(err, schema.ErrUnknownTable) {
			return schema.Table{}, notFound(name)
		}
		return schema.Table{}, e.fail("drop table", err)
	}

	e.log.Infow("table dropped", "table", dropped.DisplayName, "actual_name", dropped.ActualName)
	return dropped, nil
}

// sameTable reports whether a relation target name resolves to t.
func (e *Engine) sameTable(target string, t schema.Table) bool {
	related, ok := e.registry.Lookup(target)
	return ok && related.ID == t.ID
}

// EditSchema applies edit to the named table.
//
// Columns that become live are added to the physical table and renamed
// columns are renamed. Changing the type of a live column drops and re-adds
// it, which only an unlocked table allows; a locked table fails with
// ErrCodeLocked and must go through a migration instead. The physical
// changes and the catalog write commit together, and the registry keeps the
// old definition if either fails.
func (e *Engine) EditSchema(ctx context.Context, name string, edit schema.Edit) (schema.Table, error) {
	if _, ok := e.registry.Lookup(name); !ok {
		return schema.Table{}, notFound(name)
	}

	after, err := e.registry.Update(name, edit, func(before, after schema.Table) error {
		if err := checkColumnNames(after); err != nil {
			return err
		}
		stmts, err := e.planDDL(ctx, before, after)
		if err != nil {
			return err
		}
		return e.backend.WithTx(ctx, func(ex store.Executor) error {
			ex = e.exec(ex)
			for _, stmt := range stmts {
				if err := ex.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			return e.catalog.With(ex).Save(ctx, after)
		})
	})
	if err != nil {
		if errors.Is(err, schema.ErrUnknownTable) {
			return schema.Table{}, notFound(name)
		}
		return schema.Table{}, e.fail("edit schema", err)
	}

	e.holes.Advance(MaxHoleID([]schema.Table{after}))
	e.log.Infow("schema edited", "table", after.DisplayName, "version", after.Version)
	return after, nil
}

// BeginMigration opens a migration on the named table and records it in the
// catalog. It fails with schema.ErrMigrationActive if one is already open.
func (e *Engine) BeginMigration(ctx context.Context, name string, kind schema.MigrationKind, target, rollbackID, rollforwardID dval.HoleID) (schema.Table, error) {
	return e.EditSchema(ctx, name, schema.EditBeginMigration(kind, target, rollbackID, rollforwardID))
}

// planDDL returns the statements that turn the physical table of before
// into that of after. Columns are matched by the id of their type slot.
func (e *Engine) planDDL(ctx context.Context, before, after schema.Table) ([]string, error) {
	d := e.backend.Dialect()
	table := after.ActualName

	old := make(map[dval.HoleID]schema.Column, len(before.Columns))
	for _, c := range before.Columns {
		old[c.Type.ID()] = c
	}

	var stmts []string
	add := func(name string, tipe dval.Tipe) error {
		stmt, err := sqlquote.AddColumn(d, table, sqlquote.ColumnDef{Name: name, Type: tipe})
		if err != nil {
			return &Error{Code: ErrCodeInvalidValue, Message: "unsupported column type", Table: after.DisplayName, Field: name, Err: err}
		}
		stmts = append(stmts, stmt)
		return nil
	}

	seen := make(map[dval.HoleID]bool, len(after.Columns))
	for _, c := range after.Columns {
		seen[c.Type.ID()] = true
		newName, newTipe, nowLive := c.Live()
		oldName, oldTipe, wasLive := old[c.Type.ID()].Live()

		switch {
		case !wasLive && nowLive:
			if err := add(newName, newTipe); err != nil {
				return nil, err
			}
		case wasLive && !nowLive:
			stmts = append(stmts, sqlquote.DropColumn(table, oldName))
		case wasLive && nowLive && !dval.TipeEqual(oldTipe, newTipe):
			locked, err := e.IsLocked(ctx, before)
			if err != nil {
				return nil, err
			}
			if locked {
				return nil, &Error{
					Code:     ErrCodeLocked,
					Message:  "table has rows; change the column type through a migration",
					Table:    before.DisplayName,
					Field:    oldName,
					Expected: newTipe.String(),
					Actual:   oldTipe.String(),
				}
			}
			stmts = append(stmts, sqlquote.DropColumn(table, oldName))
			if err := add(newName, newTipe); err != nil {
				return nil, err
			}
		case wasLive && nowLive && oldName != newName:
			stmts = append(stmts, sqlquote.RenameColumn(table, oldName, newName))
		}
	}
	for _, c := range before.Columns {
		if name, _, live := c.Live(); live && !seen[c.Type.ID()] {
			stmts = append(stmts, sqlquote.DropColumn(table, name))
		}
	}
	return stmts, nil
}

// checkColumnNames rejects duplicate live column names and the reserved id.
func checkColumnNames(t schema.Table) error {
	seen := make(map[string]bool)
	for _, c := range t.LiveColumns() {
		if c.Name == schema.IDColumn || seen[c.Name] {
			return &Error{Code: ErrCodeConflict, Message: "duplicate column name", Table: t.DisplayName, Field: c.Name}
		}
		seen[c.Name] = true
	}
	return nil
}
