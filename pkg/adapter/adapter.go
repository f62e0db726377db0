// Package adapter assembles the public contract of dbridge: one Adapter
// instance per target database, wiring the connection pool, dialect
// translator, query executor, transaction manager, and schema introspector
// behind a uniform interface.
//
// Concrete driver implementations live in pkg/adapters/ subdirectories and
// register themselves on import:
//
//	import _ "github.com/dataforge-labs/dbridge/pkg/adapters/sqlite"
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
	"github.com/dataforge-labs/dbridge/pkg/pool"
	"github.com/dataforge-labs/dbridge/pkg/query"
	"github.com/dataforge-labs/dbridge/pkg/schema"
	"github.com/dataforge-labs/dbridge/pkg/spi"
	"github.com/dataforge-labs/dbridge/pkg/translate"
	"github.com/dataforge-labs/dbridge/pkg/tx"
)

// Statement is one generic statement for ExecuteQuery/ExecuteTransaction.
type Statement struct {
	Template string
	Params   []translate.Param
	Fetch    core.FetchMode
}

// Option configures an Adapter at Open time.
type Option func(*Adapter)

// WithLogger sets the structured logger used by every component.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithPoolConfig overrides the pool sizing parsed from the connection string.
func WithPoolConfig(cfg core.PoolConfig) Option {
	return func(a *Adapter) {
		cfg.Normalize()
		a.cfg.Pool = cfg
	}
}

// Adapter is one uniform access point to one target database. Each instance
// owns its own pool; there are no process-wide singletons.
type Adapter struct {
	cfg    core.ConnConfig
	cat    *dialect.Catalog
	driver spi.Driver
	logger *slog.Logger

	mu        sync.Mutex
	db        *sql.DB
	pool      *pool.Pool
	exec      *query.Executor
	txm       *tx.Manager
	schema    *schema.Manager
	connected bool
}

// Open parses the connection string, resolves the dialect catalog and the
// registered driver, and returns an unconnected adapter. All validation
// happens here; Connect only performs I/O.
func Open(connString string, opts ...Option) (*Adapter, error) {
	cfg, err := ParseURL(connString)
	if err != nil {
		return nil, err
	}
	return OpenConfig(cfg, opts...)
}

// OpenConfig is Open for callers that already hold a parsed configuration,
// such as the config-file loader.
func OpenConfig(cfg core.ConnConfig, opts ...Option) (*Adapter, error) {
	cfg.Pool.Normalize()
	cat, err := dialect.Lookup(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	drv, ok := Get(cfg.Dialect)
	if !ok {
		return nil, &UnknownDialectError{Dialect: cfg.Dialect, Available: ListDrivers()}
	}
	a := &Adapter{
		cfg:    cfg,
		cat:    cat,
		driver: drv,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dialect returns the dialect name this adapter serves.
func (a *Adapter) Dialect() string { return a.cat.Name }

// SupportsFeature reports whether the selected backend has the named
// capability. Unknown names report false.
func (a *Adapter) SupportsFeature(name string) bool { return a.cat.Supports(name) }

// Connect establishes the physical connection pool and verifies liveness.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}

	driverName, dsn, err := a.driver.BuildDSN(a.cfg)
	if err != nil {
		return err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return &dberr.ConnectionError{Kind: dberr.ConnRefused, Err: err}
	}
	// The dbridge pool owns connection lifecycle; database/sql must neither
	// hold idle connections nor recycle behind our back.
	db.SetMaxOpenConns(a.cfg.Pool.MaxSize)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return a.driver.NormalizeError(err)
	}

	a.logger.Debug("connecting",
		slog.String("dialect", a.cat.Name),
		slog.String("host", a.cfg.Host),
		slog.String("database", a.cfg.Database))

	p := pool.New(a.cfg.Pool, func(ctx context.Context) (*sql.Conn, error) {
		return db.Conn(ctx)
	}, a.logger)
	if err := p.Start(ctx); err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	a.pool = p
	a.exec = query.New(p, a.driver.NormalizeError, a.logger)
	a.txm = tx.NewManager(p, a.cat, a.exec, a.logger)
	a.schema = schema.NewManager(a.cat, a.driver, a.runner, a.logger)
	a.connected = true
	return nil
}

// Close drains the pool and releases all resources. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}
	a.connected = false
	err := a.pool.Close()
	if cerr := a.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Ping verifies a pooled connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	h, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Release(h)
	if err := h.Conn().PingContext(ctx); err != nil {
		a.pool.MarkBroken(h)
		return &dberr.ConnectionError{Kind: dberr.ConnLost, Err: err}
	}
	return nil
}

// ExecuteQuery translates and runs one parameterized statement on a pooled
// handle, returning the normalized result.
func (a *Adapter) ExecuteQuery(ctx context.Context, template string, params []translate.Param, fetch core.FetchMode) (*core.QueryResult, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	stmt, args, err := translate.Translate(a.cat, template, params)
	if err != nil {
		return nil, err
	}
	h, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer a.pool.Release(h)
	return a.exec.Execute(ctx, h, stmt, args, fetch)
}

// ExecuteTransaction runs every statement in one transaction, committing only
// if all succeed. Any failure rolls the whole batch back.
func (a *Adapter) ExecuteTransaction(ctx context.Context, stmts []Statement) ([]*core.QueryResult, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	t, err := a.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*core.QueryResult, 0, len(stmts))
	for _, s := range stmts {
		res, execErr := t.Execute(ctx, s.Template, s.Params, s.Fetch)
		if execErr != nil {
			_ = t.Rollback()
			return nil, execErr
		}
		results = append(results, res)
	}
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

// Begin starts an explicit transaction for callers that need savepoint
// control beyond the all-or-nothing batch.
func (a *Adapter) Begin(ctx context.Context) (*tx.Tx, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	return a.txm.Begin(ctx)
}

// GetTableSchema reads and normalizes the backend metadata for one table.
func (a *Adapter) GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	return a.schema.GetTableSchema(ctx, table)
}

// TableExists reports whether the named table exists.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := a.requireConnected(); err != nil {
		return false, err
	}
	return a.schema.TableExists(ctx, table)
}

// CreateTable generates dialect-correct DDL for ts and executes it.
// Idempotent: an existing table is left untouched.
func (a *Adapter) CreateTable(ctx context.Context, ts *core.TableSchema) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	return a.schema.CreateTable(ctx, ts)
}

// DropTable removes a table; a no-op when absent unless strict is set.
func (a *Adapter) DropTable(ctx context.Context, table string, strict bool) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	return a.schema.DropTable(ctx, table, strict)
}

// Stats returns the pool conservation counters.
func (a *Adapter) Stats() pool.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return pool.Stats{}
	}
	return a.pool.Stats()
}

// runner executes native SQL for the schema manager on a short-lived handle.
func (a *Adapter) runner(ctx context.Context, nativeSQL string, args []any, fetch core.FetchMode) (*core.QueryResult, error) {
	h, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer a.pool.Release(h)
	stmt := translate.Statement{Dialect: a.cat.Name, NativeSQL: nativeSQL, ParamCount: len(args)}
	return a.exec.Execute(ctx, h, stmt, args, fetch)
}

// acquire checks out a handle, permitting one internal retry when opening a
// fresh physical connection fails transiently. The retry applies to
// acquisition only; statements are never re-run.
func (a *Adapter) acquire(ctx context.Context) (*pool.Handle, error) {
	h, err := a.pool.Acquire(ctx)
	if err == nil {
		return h, nil
	}
	var ce *dberr.ConnectionError
	if errors.As(err, &ce) && ctx.Err() == nil {
		a.logger.Debug("retrying acquisition after connection error", slog.String("error", err.Error()))
		return a.pool.Acquire(ctx)
	}
	return nil, err
}

func (a *Adapter) requireConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("adapter not connected; call Connect first")
	}
	return nil
}
