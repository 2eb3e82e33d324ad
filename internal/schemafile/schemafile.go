// Package schemafile loads table definitions from CUE or YAML files.
//
// Both formats describe tables under a top-level "table" field, keyed by
// display name. Columns keep their declaration order:
//
//	table: Person: {
//		columns: {
//			name: "Str"
//			age:  int
//		}
//	}
//	table: Post: columns: {
//		title:    string
//		author:   "Person"
//		comments: "[Comment]"
//	}
//
// Column types are tipe names as accepted by dval.ParseTipe. In CUE a bare
// kind (string, int, float, bool) is accepted as well.
package schemafile

import (
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
)

// Definition is one table read from a file.
type Definition struct {
	Name    string
	Host    string
	Columns []Column
}

// Column is one declared column.
type Column struct {
	Name string
	Type dval.Tipe
}

// Table turns d into a table definition with every column live. Slot ids
// come from next, two per column.
func (d Definition) Table(id uuid.UUID, next func() dval.HoleID) schema.Table {
	t := schema.NewTable(id, d.Host, d.Name)
	for _, c := range d.Columns {
		nameID, typeID := next(), next()
		t = t.AddColumn(nameID, typeID).SetColumnName(nameID, c.Name).SetColumnType(typeID, c.Type)
	}
	return t
}

// Load reads path, choosing the format by extension.
func Load(path string) ([]Definition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path)
	case ".yaml", ".yml":
		return LoadYAML(path)
	}
	return nil, fmt.Errorf("unsupported schema file %s: want .cue, .yaml or .yml", path)
}

// Error is a definition error with source position when available.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
	Line    int
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func checkColumnName(table, name string) error {
	if name == "" || name == schema.IDColumn {
		return fmt.Errorf("table %s: column name %q is reserved or empty", table, name)
	}
	return nil
}
