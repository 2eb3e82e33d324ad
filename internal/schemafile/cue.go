package schemafile

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/dvaldb/internal/dval"
)

// LoadCUE reads table definitions from a CUE file.
func LoadCUE(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return CompileCUE(data, path)
}

// CompileCUE parses CUE source into table definitions. filename is used in
// error positions.
func CompileCUE(src []byte, filename string) ([]Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &Error{Field: "table", Message: "no tables defined", Pos: v.Pos()}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []Definition
	for iter.Next() {
		def, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func compileTable(name string, v cue.Value) (Definition, error) {
	def := Definition{Name: name}

	if hostVal := v.LookupPath(cue.ParsePath("host")); hostVal.Exists() {
		host, err := hostVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Host = host
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return def, nil
	}
	iter, err := colsVal.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		colName := iter.Label()
		if err := checkColumnName(name, colName); err != nil {
			return def, &Error{Field: "columns", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		tipe, err := extractTipe(iter.Value())
		if err != nil {
			return def, err
		}
		def.Columns = append(def.Columns, Column{Name: colName, Type: tipe})
	}
	return def, nil
}

// extractTipe accepts a tipe name string or a bare CUE kind.
func extractTipe(v cue.Value) (dval.Tipe, error) {
	if s, err := v.String(); err == nil {
		tipe, err := dval.ParseTipe(s)
		if err != nil {
			return nil, &Error{Field: "type", Message: err.Error(), Pos: v.Pos()}
		}
		return tipe, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return dval.TStr, nil
	case cue.IntKind:
		return dval.TInt, nil
	case cue.FloatKind, cue.NumberKind:
		return dval.TFloat, nil
	case cue.BoolKind:
		return dval.TBool, nil
	default:
		return nil, &Error{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
