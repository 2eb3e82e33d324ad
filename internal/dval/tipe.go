package dval

import (
	"fmt"
	"strings"
)

// Tipe is a sealed interface describing the shape of a Dval.
// Only Prim, BelongsTo, HasMany, and DbList implement it.
type Tipe interface {
	tipe()
	String() string
}

// Prim is a tipe tag that carries no parameters.
type Prim uint8

const (
	TAny Prim = iota
	TInt
	TFloat
	TBool
	TNull
	TChar
	TStr
	TList
	TObj
	TIncomplete
	TBlock
	TResponse
	TDB
	TID
	TDate
	TTitle
	TURL
)

var primNames = [...]string{
	TAny:        "Any",
	TInt:        "Int",
	TFloat:      "Float",
	TBool:       "Bool",
	TNull:       "Null",
	TChar:       "Char",
	TStr:        "Str",
	TList:       "List",
	TObj:        "Obj",
	TIncomplete: "Incomplete",
	TBlock:      "Block",
	TResponse:   "Response",
	TDB:         "DB",
	TID:         "ID",
	TDate:       "Date",
	TTitle:      "Title",
	TURL:        "Url",
}

func (Prim) tipe() {}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("Prim(%d)", uint8(p))
}

// BelongsTo is a single-valued reference to a row of another table.
type BelongsTo struct {
	Table string
}

func (BelongsTo) tipe() {}

func (t BelongsTo) String() string { return "BelongsTo(" + t.Table + ")" }

// HasMany is a multi-valued reference to rows of another table.
type HasMany struct {
	Table string
}

func (HasMany) tipe() {}

func (t HasMany) String() string { return "HasMany(" + t.Table + ")" }

// DbList is a stored list of scalars of the inner tipe.
type DbList struct {
	Elem Tipe
}

func (DbList) tipe() {}

func (t DbList) String() string { return "DbList(" + t.Elem.String() + ")" }

// TipeEqual reports whether a and b describe the same shape.
func TipeEqual(a, b Tipe) bool {
	switch x := a.(type) {
	case Prim:
		y, ok := b.(Prim)
		return ok && x == y
	case BelongsTo:
		y, ok := b.(BelongsTo)
		return ok && x.Table == y.Table
	case HasMany:
		y, ok := b.(HasMany)
		return ok && x.Table == y.Table
	case DbList:
		y, ok := b.(DbList)
		return ok && TipeEqual(x.Elem, y.Elem)
	}
	return false
}

// IsRelationTipe reports whether t references another table.
func IsRelationTipe(t Tipe) bool {
	switch t.(type) {
	case BelongsTo, HasMany:
		return true
	}
	return false
}

// RelatedTable returns the table a relation tipe references.
func RelatedTable(t Tipe) (string, bool) {
	switch r := t.(type) {
	case BelongsTo:
		return r.Table, true
	case HasMany:
		return r.Table, true
	}
	return "", false
}

// ParseTipe parses the textual form produced by Tipe.String.
//
// Primitive names match case-insensitively ("int", "Int"). Two editor
// shorthands are accepted as well: "[Comment]" is HasMany(Comment) and any
// other capitalised word names a BelongsTo target.
func ParseTipe(s string) (Tipe, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty tipe")
	}
	for i, name := range primNames {
		if strings.EqualFold(s, name) {
			return Prim(i), nil
		}
	}
	switch lower := strings.ToLower(s); {
	case lower == "uuid":
		return TID, nil
	case lower == "string" || lower == "text":
		return TStr, nil
	case lower == "integer":
		return TInt, nil
	case lower == "boolean":
		return TBool, nil
	}
	if inner, ok := unwrap(s, "BelongsTo(", ")"); ok {
		if inner == "" {
			return nil, fmt.Errorf("tipe %q: missing table name", s)
		}
		return BelongsTo{Table: inner}, nil
	}
	if inner, ok := unwrap(s, "HasMany(", ")"); ok {
		if inner == "" {
			return nil, fmt.Errorf("tipe %q: missing table name", s)
		}
		return HasMany{Table: inner}, nil
	}
	if inner, ok := unwrap(s, "DbList(", ")"); ok {
		elem, err := ParseTipe(inner)
		if err != nil {
			return nil, fmt.Errorf("tipe %q: %w", s, err)
		}
		return DbList{Elem: elem}, nil
	}
	if inner, ok := unwrap(s, "[", "]"); ok {
		if inner == "" {
			return nil, fmt.Errorf("tipe %q: missing table name", s)
		}
		return HasMany{Table: inner}, nil
	}
	if isTableName(s) {
		return BelongsTo{Table: s}, nil
	}
	return nil, fmt.Errorf("unknown tipe %q", s)
}

func unwrap(s, prefix, suffix string) (string, bool) {
	if len(s) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) || !strings.HasSuffix(s, suffix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix) : len(s)-len(suffix)]), true
}

// isTableName accepts identifiers starting with an upper-case ASCII letter.
func isTableName(s string) bool {
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
