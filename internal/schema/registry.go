package schema

import (
	"sort"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Registry holds every table visible in the current scope, keyed by
// case-folded display name.
//
// Thread-safety: all methods are safe for concurrent use. Update serializes
// edits per table, so a check inside an Edit and the write of its result are
// atomic with respect to other Update calls on the same table. Drop waits
// for an Update in progress on the table it removes.
type Registry struct {
	mu      sync.RWMutex
	ddl     sync.Mutex // serializes Create and Drop
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex // serializes Update
	table Table      // guarded by Registry.mu for reads, entry.mu + Registry.mu for writes
}

// NewRegistry returns a registry holding the given tables.
func NewRegistry(tables ...Table) *Registry {
	r := &Registry{entries: make(map[string]*entry, len(tables))}
	for _, t := range tables {
		r.entries[foldName(t.DisplayName)] = &entry{table: t}
	}
	return r
}

// foldName normalizes a display name for lookup.
// cases.Caser is stateful, so one is built per call.
func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}

// Lookup returns the table registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[foldName(name)]
	if !ok {
		return Table{}, false
	}
	return e.table, true
}

// Create registers t unless a table with its display name exists, in which
// case it fails with ErrTableExists. commit, when non-nil, runs first and t
// is registered only if it succeeds. Create and Drop are serialized, so the
// existence check and the registration are atomic.
func (r *Registry) Create(t Table, commit func(Table) error) error {
	r.ddl.Lock()
	defer r.ddl.Unlock()

	if _, ok := r.Lookup(t.DisplayName); ok {
		return &Error{Table: t.DisplayName, Op: "create", Err: ErrTableExists}
	}
	if commit != nil {
		if err := commit(t); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.entries[foldName(t.DisplayName)] = &entry{table: t}
	r.mu.Unlock()
	return nil
}

// Drop removes the named table. commit, when non-nil, runs with the table's
// update lock held and the table stays registered if it fails.
func (r *Registry) Drop(name string, commit func(Table) error) (Table, error) {
	r.ddl.Lock()
	defer r.ddl.Unlock()

	key := foldName(name)
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return Table{}, &Error{Table: name, Op: "drop", Err: ErrUnknownTable}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	r.mu.RLock()
	t := e.table
	r.mu.RUnlock()
	if commit != nil {
		if err := commit(t); err != nil {
			return t, err
		}
	}
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
	return t, nil
}

// Tables returns every registered table ordered by display name.
func (r *Registry) Tables() []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Table, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Update applies edit to the named table and stores the result.
//
// commit, when non-nil, runs after the edit and before the result is stored;
// if it fails the registry keeps the old table. Both run while the table's
// update lock is held, so concurrent Updates on the same table never observe
// each other's intermediate state.
func (r *Registry) Update(name string, edit Edit, commit func(before, after Table) error) (Table, error) {
	r.mu.RLock()
	e, ok := r.entries[foldName(name)]
	r.mu.RUnlock()
	if !ok {
		return Table{}, &Error{Table: name, Op: "update", Err: ErrUnknownTable}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r.mu.RLock()
	before := e.table
	r.mu.RUnlock()

	after, err := edit(before)
	if err != nil {
		return before, err
	}
	// Version counts column-list changes. Migration commit, once it exists,
	// is the other place that should advance it.
	if !ColumnsEqual(before.Columns, after.Columns) {
		after.Version = before.Version + 1
	}
	if commit != nil {
		if err := commit(before, after); err != nil {
			return before, err
		}
	}

	r.mu.Lock()
	e.table = after
	r.mu.Unlock()
	return after, nil
}
