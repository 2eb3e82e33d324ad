package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/dvaldb/internal/config"
	"github.com/roach88/dvaldb/internal/engine"
	"github.com/roach88/dvaldb/internal/logging"
	"github.com/roach88/dvaldb/internal/schemafile"
	"github.com/roach88/dvaldb/internal/sqlquote"
	"github.com/roach88/dvaldb/internal/store"
)

// Session is an open store with its engine.
type Session struct {
	Config  config.Config
	Engine  *engine.Engine
	Backend store.Backend
	Log     *zap.SugaredLogger
}

// OpenSession loads configuration, applies flag overrides, opens the
// configured store and loads its catalog. A configured schema file is
// applied before returning.
func OpenSession(ctx context.Context, opts *RootOptions) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.DSN = opts.DSN
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	log := logger.Sugar()

	var backend store.Backend
	switch cfg.Dialect() {
	case sqlquote.Postgres:
		backend, err = store.OpenPostgres(ctx, cfg.DSN, log)
	default:
		backend, err = store.Open(cfg.DSN)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	eng, err := engine.Open(ctx, backend, engine.WithLogger(log))
	if err != nil {
		backend.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	s := &Session{Config: cfg, Engine: eng, Backend: backend, Log: log}
	if cfg.SchemaFile != "" {
		if _, err := s.ApplySchemaFile(ctx, cfg.SchemaFile); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// ApplySchemaFile creates every table of the file that is not registered
// yet and returns the created tables' names. Existing tables are left as
// they are.
func (s *Session) ApplySchemaFile(ctx context.Context, path string) ([]string, error) {
	defs, err := schemafile.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema file", err)
	}

	var created []string
	for _, def := range defs {
		if _, ok := s.Engine.Registry().Lookup(def.Name); ok {
			s.Log.Debugw("schema file table exists", "table", def.Name)
			continue
		}
		t := def.Table(uuid.New(), s.Engine.HoleIDs().Next)
		if _, err := s.Engine.CreateTable(ctx, t); err != nil {
			return created, err
		}
		created = append(created, def.Name)
	}
	return created, nil
}

// Close releases the store.
func (s *Session) Close() error {
	_ = s.Log.Sync()
	return s.Backend.Close()
}

// withSession runs fn with the repl's session, or with a session opened
// for this command alone.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(*Session) error) error {
	if opts.session != nil {
		return fn(opts.session)
	}
	s, err := OpenSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// runWithSession runs fn in a session and reports its error through the
// command's formatter.
func runWithSession(opts *RootOptions, cmd *cobra.Command, fn func(*Session, *OutputFormatter) error) error {
	f := newFormatter(opts, cmd)
	err := withSession(opts, cmd, func(s *Session) error {
		return fn(s, f)
	})
	if err != nil {
		return f.Fail(err)
	}
	return nil
}
