package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx"
	"github.com/jackc/pgx/pgtype"
	"go.uber.org/zap"

	"github.com/roach88/dvaldb/internal/sqlquote"
)

// pgConn is satisfied by both *pgx.ConnPool and *pgx.Tx.
type pgConn interface {
	QueryEx(ctx context.Context, sql string, options *pgx.QueryExOptions, args ...interface{}) (*pgx.Rows, error)
	ExecEx(ctx context.Context, sql string, options *pgx.QueryExOptions, args ...interface{}) (pgx.CommandTag, error)
}

// simple requests the simple query protocol, which returns every column in
// text format.
var simple = &pgx.QueryExOptions{SimpleProtocol: true}

// PGStore is the Postgres backend.
type PGStore struct {
	pool *pgx.ConnPool
}

// OpenPostgres connects a pool to the database named by dsn (URI or
// key=value form) and bootstraps the catalog. A nil logger disables pgx
// logging.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PGStore, error) {
	conf, err := pgx.ParseConnectionString(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if logger != nil {
		conf.Logger = pgxLogger{logger}
		conf.LogLevel = pgx.LogLevelWarn
	}
	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{ConnConfig: conf})
	if err != nil {
		return nil, fmt.Errorf("creating pgx connection pool: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.Exec(ctx, "SELECT 1"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("opening first pgx connection: %w", err)
	}
	if err := s.Exec(ctx, catalogSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := s.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_dvaldb_tables_actual_name ON dvaldb_tables(actual_name)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *PGStore) Close() error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Dialect implements Backend.
func (s *PGStore) Dialect() sqlquote.Dialect {
	return sqlquote.Postgres
}

// Exec implements Executor.
func (s *PGStore) Exec(ctx context.Context, stmt string) error {
	return pgExecutor{s.pool}.Exec(ctx, stmt)
}

// Query implements Executor.
func (s *PGStore) Query(ctx context.Context, stmt string) ([][]string, error) {
	return pgExecutor{s.pool}.Query(ctx, stmt)
}

// WithTx implements Backend.
func (s *PGStore) WithTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.pool.BeginEx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(pgExecutor{tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LiveRows implements Backend using the statistics collector's estimate.
func (s *PGStore) LiveRows(ctx context.Context, table string) (int64, bool, error) {
	name, err := sqlquote.QuoteStringLiteral(table)
	if err != nil {
		return 0, false, err
	}
	rows, err := s.Query(ctx, "SELECT n_live_tup FROM pg_stat_user_tables WHERE relname = "+name)
	if err != nil {
		return 0, false, fmt.Errorf("live rows %s: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(rows[0][0], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("live rows %s: %w", table, err)
	}
	return n, true, nil
}

// EmptyTables implements Backend.
func (s *PGStore) EmptyTables(ctx context.Context, prefix string) ([]string, error) {
	pattern, err := sqlquote.QuoteStringLiteral(likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("empty tables: %w", err)
	}
	rows, err := s.Query(ctx, "SELECT relname FROM pg_stat_user_tables WHERE n_live_tup = 0 AND relname LIKE "+pattern+" ORDER BY relname")
	if err != nil {
		return nil, fmt.Errorf("empty tables: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row[0])
	}
	return names, nil
}

// pgExecutor adapts a pgx pool or transaction to Executor.
type pgExecutor struct {
	conn pgConn
}

func (e pgExecutor) Exec(ctx context.Context, stmt string) error {
	if _, err := e.conn.ExecEx(ctx, stmt, simple); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func (e pgExecutor) Query(ctx context.Context, stmt string) ([][]string, error) {
	rows, err := e.conn.QueryEx(ctx, stmt, simple)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	n := len(rows.FieldDescriptions())
	result := [][]string{}
	for rows.Next() {
		cells := make([]textCell, n)
		dest := make([]interface{}, n)
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, n)
		for i, c := range cells {
			row[i] = string(c)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// textCell keeps the raw text form of a column. NULL decodes to "".
type textCell string

// DecodeText implements pgtype.TextDecoder.
func (c *textCell) DecodeText(ci *pgtype.ConnInfo, src []byte) error {
	*c = textCell(src)
	return nil
}

// pgxLogger forwards pgx log events to zap.
type pgxLogger struct {
	log *zap.SugaredLogger
}

func (l pgxLogger) Log(level pgx.LogLevel, msg string, data map[string]interface{}) {
	kv := make([]interface{}, 0, 2*len(data))
	for k, v := range data {
		kv = append(kv, k, v)
	}
	switch level {
	case pgx.LogLevelError:
		l.log.Errorw(msg, kv...)
	case pgx.LogLevelWarn:
		l.log.Warnw(msg, kv...)
	case pgx.LogLevelInfo:
		l.log.Infow(msg, kv...)
	default:
		l.log.Debugw(msg, kv...)
	}
}
