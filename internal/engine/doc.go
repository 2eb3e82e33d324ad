// Package engine persists Dval objects into the relational store and reads
// them back.
//
// ARCHITECTURE:
//
// The engine is a synchronous request/response layer over a store.Backend.
// It does not cache rows. Table definitions live in a schema.Registry that
// is passed in explicitly and consulted whenever a relation tipe has to be
// resolved to a concrete table.
//
// Components:
//   - codec.go: stored text cell -> Dval, row -> Obj
//   - upsert.go: Obj -> flattened row, nested relations persisted first
//   - query.go: fixed-shape fetch, count and delete
//   - lock.go: live-row gate for destructive schema edits
//   - ddl.go: physical tables, schema edits, migrations, catalog writes
//   - coerce.go: untyped caller data -> values of the declared tipes
//
// Row layout:
// Every SELECT lists ("id", ID) followed by the live columns in definition
// order, and rows are decoded positionally in the same order.
//
// Relations:
// A BelongsTo column stores the related row's id. A HasMany column stores an
// array literal of ids. Reading either one fetches the related rows, one
// query per id. A dangling BelongsTo id decodes to Null.
//
// Transactions:
// Insert and Update wrap a record and all of its nested relations in one
// transaction. Schema edits apply their DDL and the catalog write in one
// transaction.
package engine
