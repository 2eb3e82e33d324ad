package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/sqlquote"
)

const catalogTable = "dvaldb_tables"

// Catalog persists table definitions in the dvaldb_tables relation.
type Catalog struct {
	ex Executor
}

// NewCatalog returns a catalog that reads and writes through ex.
func NewCatalog(ex Executor) *Catalog {
	return &Catalog{ex: ex}
}

// With returns a catalog bound to another executor, typically a
// transaction, so catalog writes commit together with DDL.
func (c *Catalog) With(ex Executor) *Catalog {
	return &Catalog{ex: ex}
}

// Save inserts or replaces the definition of t.
func (c *Catalog) Save(ctx context.Context, t schema.Table) error {
	def, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", t.DisplayName, err)
	}
	values := make([]string, 0, 5)
	for _, s := range []string{t.ID.String(), t.DisplayName, t.ActualName} {
		q, err := sqlquote.QuoteStringLiteral(s)
		if err != nil {
			return fmt.Errorf("save table %s: %w", t.DisplayName, err)
		}
		values = append(values, q)
	}
	values = append(values, strconv.Itoa(t.Version))
	q, err := sqlquote.QuoteStringLiteral(string(def))
	if err != nil {
		return fmt.Errorf("save table %s: %w", t.DisplayName, err)
	}
	values = append(values, q)

	stmt := fmt.Sprintf(`INSERT INTO %s (id, display_name, actual_name, version, definition)
VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (id) DO UPDATE SET
    display_name = excluded.display_name,
    actual_name = excluded.actual_name,
    version = excluded.version,
    definition = excluded.definition`,
		catalogTable, values[0], values[1], values[2], values[3], values[4])
	if err := c.ex.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("save table %s: %w", t.DisplayName, err)
	}
	return nil
}

// Load returns every stored definition ordered by display name.
func (c *Catalog) Load(ctx context.Context) ([]schema.Table, error) {
	rows, err := c.ex.Query(ctx, "SELECT definition FROM "+catalogTable+" ORDER BY display_name")
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	tables := make([]schema.Table, 0, len(rows))
	for _, row := range rows {
		var t schema.Table
		if err := json.Unmarshal([]byte(row[0]), &t); err != nil {
			return nil, fmt.Errorf("unmarshal catalog entry: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Delete removes the definition with the given id. Deleting an absent id
// is not an error.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = '%s'", catalogTable, id.String())
	if err := c.ex.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("delete table %s: %w", id, err)
	}
	return nil
}
