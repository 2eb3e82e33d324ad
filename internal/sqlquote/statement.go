package sqlquote

import (
	"fmt"
	"strings"

	"github.com/roach88/dvaldb/internal/dval"
)

// Assignment is one quoted column/value pair of an INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  dval.Dval
}

// Select renders SELECT cols FROM table, with an optional equality predicate.
// A nil where renders no predicate.
func Select(table string, cols []string, where *Assignment) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(QuoteColumnList(cols))
	b.WriteString(" FROM ")
	b.WriteString(QuoteTableName(table))
	if where != nil {
		cond, err := equals(*where)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
	return b.String(), nil
}

// Count renders a row-count aggregate over table.
func Count(table string) string {
	return "SELECT COUNT(*) FROM " + QuoteTableName(table)
}

// Insert renders INSERT INTO table (cols) VALUES (vals).
func Insert(table string, row []Assignment) (string, error) {
	if len(row) == 0 {
		return "", fmt.Errorf("insert into %s: no columns", table)
	}
	cols := make([]string, len(row))
	vals := make([]string, len(row))
	for i, a := range row {
		lit, err := QuoteValue(a.Value)
		if err != nil {
			return "", fmt.Errorf("insert into %s: column %s: %w", table, a.Column, err)
		}
		cols[i] = a.Column
		vals[i] = lit
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteTableName(table), QuoteColumnList(cols), strings.Join(vals, ", ")), nil
}

// Update renders UPDATE table SET ... WHERE key = value.
func Update(table string, set []Assignment, key Assignment) (string, error) {
	if len(set) == 0 {
		return "", fmt.Errorf("update %s: no columns", table)
	}
	parts := make([]string, len(set))
	for i, a := range set {
		p, err := equals(a)
		if err != nil {
			return "", fmt.Errorf("update %s: %w", table, err)
		}
		parts[i] = p
	}
	cond, err := equals(key)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", table, err)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		QuoteTableName(table), strings.Join(parts, ", "), cond), nil
}

// Delete renders DELETE FROM table, with an optional equality predicate.
func Delete(table string, where *Assignment) (string, error) {
	stmt := "DELETE FROM " + QuoteTableName(table)
	if where == nil {
		return stmt, nil
	}
	cond, err := equals(*where)
	if err != nil {
		return "", fmt.Errorf("delete from %s: %w", table, err)
	}
	return stmt + " WHERE " + cond, nil
}

func equals(a Assignment) (string, error) {
	lit, err := QuoteValue(a.Value)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", a.Column, err)
	}
	return QuoteIdent(a.Column) + " = " + lit, nil
}
