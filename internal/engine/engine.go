package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/store"
)

// Engine maps Dval objects onto physical tables.
//
// Thread-safety: all methods are safe for concurrent use. Schema edits on
// one table are serialized by the registry; row operations rely on the
// store for serialization.
type Engine struct {
	backend  store.Backend
	registry *schema.Registry
	catalog  *store.Catalog
	holes    *HoleIDs
	newID    func() uuid.UUID
	log      *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithIDSource replaces uuid.New as the source of row identities.
// Tests use this with testutil.SequentialUUIDs.
func WithIDSource(next func() uuid.UUID) Option {
	return func(e *Engine) {
		e.newID = next
	}
}

// New creates an Engine over backend. A nil registry starts empty.
func New(backend store.Backend, registry *schema.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	e := &Engine{
		backend:  backend,
		registry: registry,
		catalog:  store.NewCatalog(backend),
		holes:    NewHoleIDsAt(MaxHoleID(registry.Tables())),
		newID:    uuid.New,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open creates an Engine and loads every catalogued table into a fresh
// registry.
func Open(ctx context.Context, backend store.Backend, opts ...Option) (*Engine, error) {
	tables, err := store.NewCatalog(backend).Load(ctx)
	if err != nil {
		return nil, err
	}
	e := New(backend, schema.NewRegistry(tables...), opts...)
	e.log.Debugw("catalog loaded", "tables", len(tables))
	return e, nil
}

// Registry returns the table registry used for relation resolution.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// HoleIDs returns the allocator for new editor slots.
func (e *Engine) HoleIDs() *HoleIDs {
	return e.holes
}

// Table returns the table registered under name, ignoring case.
func (e *Engine) Table(name string) (schema.Table, error) {
	t, ok := e.registry.Lookup(name)
	if !ok {
		return schema.Table{}, notFound(name)
	}
	return t, nil
}

// fail logs fatal-tier errors before they are returned.
func (e *Engine) fail(op string, err error) error {
	if IsInternal(err) {
		e.log.Errorw(op+" failed", "error", err)
	}
	return err
}

// exec returns ex wrapped so that every statement is logged.
func (e *Engine) exec(ex store.Executor) store.Executor {
	return loggingExecutor{ex: ex, log: e.log}
}

type loggingExecutor struct {
	ex  store.Executor
	log *zap.SugaredLogger
}

func (l loggingExecutor) Exec(ctx context.Context, stmt string) error {
	l.log.Debugw("exec", "sql", stmt)
	return l.ex.Exec(ctx, stmt)
}

func (l loggingExecutor) Query(ctx context.Context, stmt string) ([][]string, error) {
	l.log.Debugw("query", "sql", stmt)
	return l.ex.Query(ctx, stmt)
}
