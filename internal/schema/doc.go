// Package schema models user tables: their holed column declarations, their
// version, and the single in-flight migration a table may carry.
//
// Every edit is a pure transform from one Table value to the next. Slices are
// never mutated in place, so a Table handed out by the Registry stays valid
// while other callers edit the same table.
//
// The Registry is the only mutable state. It looks tables up by display name
// (case-folded) and applies edits with a per-table check-and-set, which is
// what keeps two callers from opening two migrations on one table.
package schema
