package sqlquote

import (
	"fmt"
	"strings"

	"github.com/roach88/dvaldb/internal/dval"
)

// Dialect selects the physical column types used in DDL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a driver name onto a dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown dialect %q", s)
}

// ColumnType returns the physical type storing values of tipe t.
// Only tipes with a storage representation are accepted.
func ColumnType(d Dialect, t dval.Tipe) (string, error) {
	if d == SQLite {
		return sqliteType(t)
	}
	return postgresType(t)
}

func postgresType(t dval.Tipe) (string, error) {
	switch x := t.(type) {
	case dval.Prim:
		switch x {
		case dval.TID:
			return "uuid", nil
		case dval.TInt:
			return "bigint", nil
		case dval.TFloat:
			return "double precision", nil
		case dval.TBool:
			return "boolean", nil
		case dval.TStr, dval.TTitle, dval.TURL:
			return "text", nil
		case dval.TDate:
			return "timestamp", nil
		}
	case dval.BelongsTo:
		return "uuid", nil
	case dval.HasMany:
		return "uuid[]", nil
	case dval.DbList:
		if _, ok := x.Elem.(dval.Prim); !ok {
			break
		}
		elem, err := postgresType(x.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	}
	return "", fmt.Errorf("tipe %s has no storage representation", t)
}

func sqliteType(t dval.Tipe) (string, error) {
	switch x := t.(type) {
	case dval.Prim:
		switch x {
		case dval.TInt:
			return "INTEGER", nil
		case dval.TFloat:
			return "REAL", nil
		case dval.TID, dval.TBool, dval.TStr, dval.TTitle, dval.TURL, dval.TDate:
			return "TEXT", nil
		}
	case dval.BelongsTo, dval.HasMany:
		return "TEXT", nil
	case dval.DbList:
		if _, err := postgresType(x); err != nil {
			return "", err
		}
		return "TEXT", nil
	}
	return "", fmt.Errorf("tipe %s has no storage representation", t)
}

// ColumnDef is one physical column of a CREATE TABLE.
type ColumnDef struct {
	Name string
	Type dval.Tipe
}

// CreateTable renders CREATE TABLE IF NOT EXISTS with a leading id primary key.
func CreateTable(d Dialect, table string, cols []ColumnDef) (string, error) {
	idType, _ := ColumnType(d, dval.TID)
	parts := []string{QuoteIdent("id") + " " + idType + " PRIMARY KEY"}
	for _, c := range cols {
		ct, err := ColumnType(d, c.Type)
		if err != nil {
			return "", fmt.Errorf("create table %s: column %s: %w", table, c.Name, err)
		}
		parts = append(parts, QuoteIdent(c.Name)+" "+ct)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		QuoteTableName(table), strings.Join(parts, ", ")), nil
}

// DropTable renders DROP TABLE IF EXISTS.
func DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + QuoteTableName(table)
}

// AddColumn renders ALTER TABLE ... ADD COLUMN.
func AddColumn(d Dialect, table string, col ColumnDef) (string, error) {
	ct, err := ColumnType(d, col.Type)
	if err != nil {
		return "", fmt.Errorf("add column %s: %w", col.Name, err)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		QuoteTableName(table), QuoteIdent(col.Name), ct), nil
}

// DropColumn renders ALTER TABLE ... DROP COLUMN.
func DropColumn(table, col string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", QuoteTableName(table), QuoteIdent(col))
}

// RenameColumn renders ALTER TABLE ... RENAME COLUMN.
func RenameColumn(table, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		QuoteTableName(table), QuoteIdent(from), QuoteIdent(to))
}
