package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
	"github.com/roach88/dvaldb/internal/store"
)

// Insert stores fields as a new row of t and returns its identity. Fields
// holding objects, or lists of objects, are persisted into their related
// tables first and replaced by the resulting ids. The whole graph is
// written in one transaction.
func (e *Engine) Insert(ctx context.Context, t schema.Table, fields dval.DObj) (uuid.UUID, error) {
	var id uuid.UUID
	err := e.backend.WithTx(ctx, func(ex store.Executor) error {
		var err error
		id, err = e.insert(ctx, e.exec(ex), t, fields)
		return err
	})
	if err != nil {
		return uuid.Nil, e.fail("insert", err)
	}
	return id, nil
}

// Update rewrites the row whose id is fields["id"]. Nested relations are
// handled as in Insert.
func (e *Engine) Update(ctx context.Context, t schema.Table, fields dval.DObj) error {
	err := e.backend.WithTx(ctx, func(ex store.Executor) error {
		return e.update(ctx, e.exec(ex), t, fields)
	})
	return e.fail("update", err)
}

func (e *Engine) insert(ctx context.Context, ex store.Executor, t schema.Table, fields dval.DObj) (uuid.UUID, error) {
	id := e.newID()
	row := fields.Clone()
	row[schema.IDColumn] = dval.NewID(id)

	flat, err := e.flatten(ctx, ex, t, row)
	if err != nil {
		return uuid.Nil, err
	}
	stmt, err := sqlquote.Insert(t.ActualName, assignments(flat, ""))
	if err != nil {
		return uuid.Nil, internal(t.DisplayName, "", "%v", err)
	}
	if err := ex.Exec(ctx, stmt); err != nil {
		return uuid.Nil, err
	}
	e.log.Debugw("inserted", "table", t.DisplayName, "id", id)
	return id, nil
}

func (e *Engine) update(ctx context.Context, ex store.Executor, t schema.Table, fields dval.DObj) error {
	id, ok := fields[schema.IDColumn]
	if !ok {
		return internal(t.DisplayName, schema.IDColumn, "update requires an id")
	}

	flat, err := e.flatten(ctx, ex, t, fields)
	if err != nil {
		return err
	}
	set := assignments(flat, schema.IDColumn)
	if len(set) == 0 {
		return nil
	}
	stmt, err := sqlquote.Update(t.ActualName, set, sqlquote.Assignment{Column: schema.IDColumn, Value: id})
	if err != nil {
		return internal(t.DisplayName, "", "%v", err)
	}
	if err := ex.Exec(ctx, stmt); err != nil {
		return err
	}
	e.log.Debugw("updated", "table", t.DisplayName, "id", dval.String(id))
	return nil
}

// flatten returns a copy of fields with every relational value replaced by
// the id, or id list, it was persisted under.
//
// Classification is by runtime shape, not by declared column type.
func (e *Engine) flatten(ctx context.Context, ex store.Executor, t schema.Table, fields dval.DObj) (dval.DObj, error) {
	out := make(dval.DObj, len(fields))
	for _, k := range fields.SortedKeys() {
		v := fields[k]
		if !dval.IsRelation(v) {
			out[k] = v
			continue
		}
		ids, err := e.upsertRelated(ctx, ex, t, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = ids
	}
	return out, nil
}

// upsertRelated persists the value of one relational field of t and returns
// the id, or list of ids, to store in its place.
func (e *Engine) upsertRelated(ctx context.Context, ex store.Executor, t schema.Table, field string, v dval.Dval) (dval.Dval, error) {
	tipe, ok := t.ColumnType(field)
	if !ok {
		return nil, internal(t.DisplayName, field, "field is not a declared column")
	}
	name, ok := dval.RelatedTable(tipe)
	if !ok {
		return nil, &Error{
			Code:     ErrCodeInternal,
			Message:  "relational value in a column that is not a relation",
			Table:    t.DisplayName,
			Field:    field,
			Expected: "BelongsTo or HasMany",
			Actual:   tipe.String(),
		}
	}
	related, err := e.relatedTable(name)
	if err != nil {
		return nil, withField(err, t.DisplayName, field)
	}

	switch x := v.(type) {
	case dval.DObj:
		return e.upsertObj(ctx, ex, related, x)
	case dval.DList:
		ids := make(dval.DList, len(x))
		for i, el := range x {
			obj, ok := el.(dval.DObj)
			if !ok {
				return nil, expectedObject(t.DisplayName, field, el)
			}
			id, err := e.upsertObj(ctx, ex, related, obj)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return ids, nil
	}
	return nil, expectedObject(t.DisplayName, field, v)
}

// upsertObj updates obj when it already has an id and inserts it otherwise.
func (e *Engine) upsertObj(ctx context.Context, ex store.Executor, t schema.Table, obj dval.DObj) (dval.Dval, error) {
	if id, ok := obj[schema.IDColumn]; ok {
		if err := e.update(ctx, ex, t, obj); err != nil {
			return nil, err
		}
		return id, nil
	}
	id, err := e.insert(ctx, ex, t, obj)
	if err != nil {
		return nil, err
	}
	return dval.NewID(id), nil
}

func expectedObject(table, field string, v dval.Dval) *Error {
	return &Error{
		Code:     ErrCodeInternal,
		Message:  "expected a complex object",
		Table:    table,
		Field:    field,
		Expected: dval.TObj.String(),
		Actual:   dval.TipeOf(v).String(),
	}
}

// assignments lists fields in sorted column order, leaving out skip.
func assignments(fields dval.DObj, skip string) []sqlquote.Assignment {
	out := make([]sqlquote.Assignment, 0, len(fields))
	for _, k := range fields.SortedKeys() {
		if k == skip {
			continue
		}
		out = append(out, sqlquote.Assignment{Column: k, Value: fields[k]})
	}
	return out
}
