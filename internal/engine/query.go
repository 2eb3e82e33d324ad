package engine

import (
	"context"
	"strconv"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
	"github.com/roach88/dvaldb/internal/store"
)

// FetchBy returns every row of t whose column equals v. Zero rows is not an
// error.
func (e *Engine) FetchBy(ctx context.Context, t schema.Table, column string, v dval.Dval) ([]dval.DObj, error) {
	rows, err := e.fetchBy(ctx, e.exec(e.backend), t, column, v)
	if err != nil {
		return nil, e.fail("fetch", err)
	}
	return rows, nil
}

// FetchAll returns every row of t.
func (e *Engine) FetchAll(ctx context.Context, t schema.Table) ([]dval.DObj, error) {
	rows, err := e.fetch(ctx, e.exec(e.backend), rowPath{}, t, nil)
	if err != nil {
		return nil, e.fail("fetch all", err)
	}
	return rows, nil
}

// Count returns the number of rows in t.
func (e *Engine) Count(ctx context.Context, t schema.Table) (int64, error) {
	rows, err := e.exec(e.backend).Query(ctx, sqlquote.Count(t.ActualName))
	if err != nil {
		return 0, e.fail("count", err)
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, e.fail("count", internal(t.DisplayName, "", "count returned %d rows", len(rows)))
	}
	n, err := strconv.ParseInt(rows[0][0], 10, 64)
	if err != nil {
		return 0, e.fail("count", withField(decodeError(dval.TInt.String(), rows[0][0], err), t.DisplayName, ""))
	}
	return n, nil
}

// Delete removes the row whose id is fields["id"].
func (e *Engine) Delete(ctx context.Context, t schema.Table, fields dval.DObj) error {
	id, ok := fields[schema.IDColumn]
	if !ok {
		return e.fail("delete", internal(t.DisplayName, schema.IDColumn, "delete requires an id"))
	}
	stmt, err := sqlquote.Delete(t.ActualName, &sqlquote.Assignment{Column: schema.IDColumn, Value: id})
	if err != nil {
		return e.fail("delete", internal(t.DisplayName, schema.IDColumn, "%v", err))
	}
	if err := e.exec(e.backend).Exec(ctx, stmt); err != nil {
		return e.fail("delete", err)
	}
	e.log.Debugw("deleted", "table", t.DisplayName, "id", dval.String(id))
	return nil
}

// DeleteAll removes every row of t.
func (e *Engine) DeleteAll(ctx context.Context, t schema.Table) error {
	stmt, err := sqlquote.Delete(t.ActualName, nil)
	if err != nil {
		return e.fail("delete all", internal(t.DisplayName, "", "%v", err))
	}
	return e.fail("delete all", e.exec(e.backend).Exec(ctx, stmt))
}

func (e *Engine) fetchBy(ctx context.Context, ex store.Executor, t schema.Table, column string, v dval.Dval) ([]dval.DObj, error) {
	return e.fetch(ctx, ex, rowPath{}, t, &sqlquote.Assignment{Column: column, Value: v})
}

func (e *Engine) fetch(ctx context.Context, ex store.Executor, path rowPath, t schema.Table, where *sqlquote.Assignment) ([]dval.DObj, error) {
	cols := t.RowColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	stmt, err := sqlquote.Select(t.ActualName, names, where)
	if err != nil {
		field := ""
		if where != nil {
			field = where.Column
		}
		return nil, internal(t.DisplayName, field, "%v", err)
	}
	rows, err := ex.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	out := make([]dval.DObj, 0, len(rows))
	for _, row := range rows {
		obj, err := e.rowToObj(ctx, ex, path, t, cols, row)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
