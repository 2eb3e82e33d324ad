package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/dvaldb/internal/sqlquote"
)

// LiveRows implements Backend. SQLite keeps no live-row estimates, so this
// counts the table's rows exactly.
func (s *Store) LiveRows(ctx context.Context, table string) (int64, bool, error) {
	exists, err := s.tableExists(ctx, table)
	if err != nil || !exists {
		return 0, false, err
	}
	n, err := s.countRows(ctx, table)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// EmptyTables implements Backend.
func (s *Store) EmptyTables(ctx context.Context, prefix string) ([]string, error) {
	pattern, err := sqlquote.QuoteStringLiteral(likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("empty tables: %w", err)
	}
	rows, err := s.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE `+pattern+` ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("empty tables: %w", err)
	}

	empty := []string{}
	for _, row := range rows {
		n, err := s.countRows(ctx, row[0])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			empty = append(empty, row[0])
		}
	}
	return empty, nil
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	name, err := sqlquote.QuoteStringLiteral(table)
	if err != nil {
		return false, err
	}
	rows, err := s.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = "+name)
	if err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *Store) countRows(ctx context.Context, table string) (int64, error) {
	rows, err := s.Query(ctx, sqlquote.Count(table))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, fmt.Errorf("count %s: unexpected result shape", table)
	}
	n, err := strconv.ParseInt(rows[0][0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
