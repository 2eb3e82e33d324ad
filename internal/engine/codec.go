package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
	"github.com/roach88/dvaldb/internal/store"
)

var epoch = time.Unix(0, 0).UTC()

// rowKey names one stored row.
type rowKey struct {
	table string
	id    uuid.UUID
}

// rowPath holds the rows whose decoding is in progress above the current
// cell. A relation back to one of them decodes to its bare id, so stored
// cycles terminate. Rows reached along separate branches still expand.
type rowPath map[rowKey]bool

// Decode converts one stored cell into a value of the given tipe, resolving
// relations through the engine's registry.
//
// The store returns NULL as "". For Date that is the epoch, for BelongsTo
// Null, and for HasMany and DbList the empty list. Other scalars must parse.
func (e *Engine) Decode(ctx context.Context, tipe dval.Tipe, cell string) (dval.Dval, error) {
	v, err := e.decode(ctx, e.exec(e.backend), rowPath{}, tipe, cell)
	if err != nil {
		return nil, e.fail("decode", err)
	}
	return v, nil
}

func (e *Engine) decode(ctx context.Context, ex store.Executor, path rowPath, tipe dval.Tipe, cell string) (dval.Dval, error) {
	switch t := tipe.(type) {
	case dval.Prim:
		return decodeScalar(t, cell)

	case dval.BelongsTo:
		related, err := e.relatedTable(t.Table)
		if err != nil {
			return nil, err
		}
		if cell == "" {
			return dval.DNull{}, nil
		}
		id, err := uuid.Parse(cell)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		return e.resolve(ctx, ex, path, related, id)

	case dval.HasMany:
		related, err := e.relatedTable(t.Table)
		if err != nil {
			return nil, err
		}
		if cell == "" {
			return dval.DList{}, nil
		}
		elems, err := sqlquote.ParseArray(cell)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		list := make(dval.DList, 0, len(elems))
		for _, el := range elems {
			id, err := uuid.Parse(el.Text)
			if err != nil {
				return nil, decodeError(t.String(), cell, err)
			}
			v, err := e.resolve(ctx, ex, path, related, id)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case dval.DbList:
		if cell == "" {
			return dval.DList{}, nil
		}
		elems, err := sqlquote.ParseArray(cell)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		list := make(dval.DList, 0, len(elems))
		for _, el := range elems {
			if el.Quoted {
				v, err := e.decode(ctx, ex, path, t.Elem, el.Text)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
				continue
			}
			switch el.Text {
			case "":
				continue
			case "NULL":
				list = append(list, dval.DNull{})
				continue
			}
			v, err := e.decode(ctx, ex, path, t.Elem, el.Text)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}
	return nil, internal("", "", "tipe %s is not decodable from storage", tipe)
}

// resolve fetches the related row with the given id. A missing row is Null
// and a row already on path is its id.
func (e *Engine) resolve(ctx context.Context, ex store.Executor, path rowPath, related schema.Table, id uuid.UUID) (dval.Dval, error) {
	if path[rowKey{related.ActualName, id}] {
		return dval.NewID(id), nil
	}
	rows, err := e.fetch(ctx, ex, path, related, &sqlquote.Assignment{Column: schema.IDColumn, Value: dval.NewID(id)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return dval.DNull{}, nil
	}
	return rows[0], nil
}

func decodeScalar(t dval.Prim, cell string) (dval.Dval, error) {
	switch t {
	case dval.TID:
		id, err := uuid.Parse(cell)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		return dval.NewID(id), nil
	case dval.TInt:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		return dval.DInt(n), nil
	case dval.TFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		return dval.DFloat(f), nil
	case dval.TTitle:
		return dval.DTitle(cell), nil
	case dval.TURL:
		return dval.DURL(cell), nil
	case dval.TStr:
		return dval.DStr(cell), nil
	case dval.TBool:
		switch cell {
		case "t":
			return dval.DBool(true), nil
		case "f":
			return dval.DBool(false), nil
		}
		return nil, decodeError(t.String(), cell, nil)
	case dval.TDate:
		if cell == "" {
			return dval.NewDate(epoch), nil
		}
		ts, err := sqlquote.ParseDate(cell)
		if err != nil {
			return nil, decodeError(t.String(), cell, err)
		}
		return dval.NewDate(ts), nil
	}
	return nil, internal("", "", "tipe %s is not decodable from storage", t)
}

// rowToObj zips columns and cells positionally. While the row's cells are
// decoded the row itself is on path.
func (e *Engine) rowToObj(ctx context.Context, ex store.Executor, path rowPath, t schema.Table, cols []schema.LiveColumn, row []string) (dval.DObj, error) {
	if len(cols) != len(row) {
		return nil, &Error{
			Code:     ErrCodeInternal,
			Message:  "row arity does not match declared columns",
			Table:    t.DisplayName,
			Expected: strconv.Itoa(len(cols)),
			Actual:   strconv.Itoa(len(row)),
		}
	}
	if path == nil {
		path = rowPath{}
	}
	for i, c := range cols {
		if c.Name != schema.IDColumn {
			continue
		}
		if id, err := uuid.Parse(row[i]); err == nil {
			key := rowKey{t.ActualName, id}
			if !path[key] {
				path[key] = true
				defer delete(path, key)
			}
		}
	}

	obj := make(dval.DObj, len(cols))
	for i, c := range cols {
		v, err := e.decode(ctx, ex, path, c.Type, row[i])
		if err != nil {
			return nil, withField(err, t.DisplayName, c.Name)
		}
		obj[c.Name] = v
	}
	return obj, nil
}

// relatedTable resolves a relation target. An unknown target is an
// integrity violation.
func (e *Engine) relatedTable(name string) (schema.Table, error) {
	t, ok := e.registry.Lookup(name)
	if !ok {
		return schema.Table{}, internal(name, "", "relation targets unknown table")
	}
	return t, nil
}

// withField fills in the table and field of an engine error that has none.
func withField(err error, table, field string) error {
	e, ok := err.(*Error)
	if !ok {
		return fmt.Errorf("%s.%s: %w", table, field, err)
	}
	if e.Table == "" {
		e.Table = table
	}
	if e.Field == "" {
		e.Field = field
	}
	return e
}
