package engine

import (
	"context"

	"github.com/roach88/dvaldb/internal/schema"
)

// IsLocked reports whether the physical table of t holds rows according to
// the store's live-row statistics. A table the store has no statistics for
// is unlocked.
func (e *Engine) IsLocked(ctx context.Context, t schema.Table) (bool, error) {
	n, found, err := e.backend.LiveRows(ctx, t.ActualName)
	if err != nil {
		return false, err
	}
	return found && n != 0, nil
}

// FindUnlocked returns the tables whose physical table carries the user
// prefix and has exactly zero live rows. Order follows tables.
func (e *Engine) FindUnlocked(ctx context.Context, tables []schema.Table) ([]schema.Table, error) {
	names, err := e.backend.EmptyTables(ctx, schema.TablePrefix)
	if err != nil {
		return nil, err
	}
	empty := make(map[string]bool, len(names))
	for _, n := range names {
		empty[n] = true
	}

	out := []schema.Table{}
	for _, t := range tables {
		if empty[t.ActualName] {
			out = append(out, t)
		}
	}
	return out, nil
}
