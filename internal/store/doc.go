// Package store executes statement text against the relational store.
//
// Two backends implement Backend:
//   - Store: SQLite through database/sql and mattn/go-sqlite3
//   - PGStore: Postgres through a jackc/pgx connection pool
//
// Both return every cell as text in the store's literal encoding ('t'/'f'
// booleans, {a,b} arrays, "2006-01-02 15:04:05" dates). A NULL cell is
// returned as the empty string. Decoding text into values belongs to the
// engine.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: SQLite serializes writers anyway
//
// The Catalog persists table definitions in dvaldb_tables on either backend.
package store
