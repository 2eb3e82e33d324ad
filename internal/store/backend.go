package store

import (
	"context"
	"strings"

	"github.com/roach88/dvaldb/internal/sqlquote"
)

// Executor runs statement text. Exec is for statements without result rows;
// Query returns every row as text cells.
type Executor interface {
	Exec(ctx context.Context, stmt string) error
	Query(ctx context.Context, stmt string) ([][]string, error)
}

// Backend is an Executor with transactions and table statistics.
type Backend interface {
	Executor

	// Dialect selects physical column types for DDL.
	Dialect() sqlquote.Dialect

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Executor) error) error

	// LiveRows returns the store's live-row estimate for a physical table.
	// found is false when the store has no statistics for the table.
	LiveRows(ctx context.Context, table string) (rows int64, found bool, err error)

	// EmptyTables returns physical tables whose name starts with prefix and
	// whose live-row estimate is zero.
	EmptyTables(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// likePrefix renders a LIKE pattern matching names that start with prefix.
// Backslash is the escape character.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*PGStore)(nil)
)
