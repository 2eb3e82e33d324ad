package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/dvaldb/internal/sqlquote"
)

//go:embed catalog.sql
var catalogSQL string

// catalogUpgrades[i] moves a catalog from user_version i to i+1.
var catalogUpgrades = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_dvaldb_tables_actual_name ON dvaldb_tables(actual_name)`,
}

// catalogVersion is the user_version of a fully upgraded catalog.
var catalogVersion = len(catalogUpgrades)

// sqlitePragmas are applied on open, keyed to the value PRAGMA reports back.
var sqlitePragmas = []struct{ name, set, want string }{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Store is the SQLite backend. Every statement runs on a single connection,
// so ":memory:" databases behave like files for the life of the Store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and brings its catalog
// up to date. Opening the same path repeatedly is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := bootstrap(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func bootstrap(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range sqlitePragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(catalogSQL); err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	return upgradeCatalog(db)
}

// upgradeCatalog runs the upgrades past the stored user_version.
func upgradeCatalog(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < catalogVersion; v++ {
		if _, err := db.Exec(catalogUpgrades[v]); err != nil {
			return fmt.Errorf("upgrade catalog to v%d: %w", v+1, err)
		}
	}
	if version == catalogVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", catalogVersion)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}

// Close closes the database. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect implements Backend.
func (s *Store) Dialect() sqlquote.Dialect {
	return sqlquote.SQLite
}

// Exec implements Executor.
func (s *Store) Exec(ctx context.Context, stmt string) error {
	return sqlExecutor{s.db}.Exec(ctx, stmt)
}

// Query implements Executor.
func (s *Store) Query(ctx context.Context, stmt string) ([][]string, error) {
	return sqlExecutor{s.db}.Query(ctx, stmt)
}

// WithTx implements Backend. fn's error rolls the transaction back and is
// returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqlExecutor{tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
