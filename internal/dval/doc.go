// Package dval provides the dynamic value model shared by the evaluator and
// the persistence engine.
//
// This package contains value and type definitions only. Every other internal
// package imports dval; dval imports nothing internal.
//
// Key design constraints:
//   - Dval and Tipe are sealed interfaces; only types in this package implement them
//   - Relation tipes (BelongsTo, HasMany) name their target table by display name
//   - Hole identity never changes across edits, only its payload does
//   - DObj key order is not significant; use SortedKeys for deterministic iteration
package dval
