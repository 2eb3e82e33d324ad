package engine

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
)

// Coerce converts untyped field values, as produced by dval.FromJSON, into
// values of the declared column tipes of t. Nested objects under relation
// columns are coerced against the related table. Null is accepted for every
// column.
func (e *Engine) Coerce(t schema.Table, fields dval.DObj) (dval.DObj, error) {
	out := make(dval.DObj, len(fields))
	for _, k := range fields.SortedKeys() {
		tipe, ok := t.ColumnType(k)
		if !ok {
			return nil, &Error{Code: ErrCodeInvalidValue, Message: "unknown column", Table: t.DisplayName, Field: k}
		}
		v, err := e.coerce(tipe, fields[k])
		if err != nil {
			return nil, withField(err, t.DisplayName, k)
		}
		out[k] = v
	}
	return out, nil
}

func (e *Engine) coerce(tipe dval.Tipe, v dval.Dval) (dval.Dval, error) {
	if _, ok := v.(dval.DNull); ok {
		return v, nil
	}

	switch t := tipe.(type) {
	case dval.Prim:
		return coerceScalar(t, v)

	case dval.BelongsTo:
		switch x := v.(type) {
		case dval.DObj:
			related, err := e.relatedTable(t.Table)
			if err != nil {
				return nil, err
			}
			return e.Coerce(related, x)
		case dval.DStr, dval.DID:
			return coerceScalar(dval.TID, x)
		}

	case dval.HasMany:
		list, ok := v.(dval.DList)
		if !ok {
			break
		}
		out := make(dval.DList, len(list))
		for i, el := range list {
			c, err := e.coerce(dval.BelongsTo{Table: t.Table}, el)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil

	case dval.DbList:
		list, ok := v.(dval.DList)
		if !ok {
			break
		}
		out := make(dval.DList, len(list))
		for i, el := range list {
			c, err := e.coerce(t.Elem, el)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return nil, mismatch(tipe, v)
}

func coerceScalar(t dval.Prim, v dval.Dval) (dval.Dval, error) {
	switch t {
	case dval.TAny:
		return v, nil
	case dval.TID:
		switch x := v.(type) {
		case dval.DID:
			return x, nil
		case dval.DStr:
			id, err := uuid.Parse(string(x))
			if err != nil {
				return nil, &Error{Code: ErrCodeInvalidValue, Message: "malformed id", Expected: t.String(), Actual: string(x), Err: err}
			}
			return dval.NewID(id), nil
		}
	case dval.TInt:
		switch x := v.(type) {
		case dval.DInt:
			return x, nil
		case dval.DFloat:
			if f := float64(x); f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				return dval.DInt(int64(f)), nil
			}
		}
	case dval.TFloat:
		switch x := v.(type) {
		case dval.DFloat:
			return x, nil
		case dval.DInt:
			return dval.DFloat(float64(x)), nil
		}
	case dval.TBool:
		if x, ok := v.(dval.DBool); ok {
			return x, nil
		}
	case dval.TStr:
		switch x := v.(type) {
		case dval.DStr:
			return x, nil
		case dval.DChar:
			return dval.DStr(string(rune(x))), nil
		}
	case dval.TTitle:
		switch x := v.(type) {
		case dval.DTitle:
			return x, nil
		case dval.DStr:
			return dval.DTitle(x), nil
		}
	case dval.TURL:
		switch x := v.(type) {
		case dval.DURL:
			return x, nil
		case dval.DStr:
			return dval.DURL(x), nil
		}
	case dval.TDate:
		switch x := v.(type) {
		case dval.DDate:
			return x, nil
		case dval.DStr:
			if ts, err := time.Parse(time.RFC3339Nano, string(x)); err == nil {
				return dval.NewDate(ts.UTC()), nil
			}
			ts, err := sqlquote.ParseDate(string(x))
			if err != nil {
				return nil, &Error{Code: ErrCodeInvalidValue, Message: "malformed date", Expected: t.String(), Actual: string(x), Err: err}
			}
			return dval.NewDate(ts), nil
		}
	}
	return nil, mismatch(t, v)
}

func mismatch(tipe dval.Tipe, v dval.Dval) *Error {
	return &Error{
		Code:     ErrCodeInvalidValue,
		Message:  "value does not fit column type",
		Expected: tipe.String(),
		Actual:   dval.TipeOf(v).String(),
	}
}
