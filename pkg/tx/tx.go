// Package tx provides transaction and savepoint control on top of the pool
// and executor. A transaction pins exactly one handle for its full lifetime
// and returns it exactly once, on commit or rollback, whichever happens.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
	"github.com/dataforge-labs/dbridge/pkg/pool"
	"github.com/dataforge-labs/dbridge/pkg/query"
	"github.com/dataforge-labs/dbridge/pkg/translate"
)

// State is the transaction lifecycle state. Terminal states never transition.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
	// StateRolledBackImplicit is reached when the connection dies mid
	// transaction; the backend has already discarded all writes.
	StateRolledBackImplicit
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolledback"
	case StateRolledBackImplicit:
		return "rolledback_implicit"
	default:
		return "unknown"
	}
}

// Manager begins transactions against one pool and dialect.
type Manager struct {
	pool   *pool.Pool
	cat    *dialect.Catalog
	exec   *query.Executor
	logger *slog.Logger
}

// NewManager wires a transaction manager. All collaborators are passed
// explicitly; the manager holds no hidden global state.
func NewManager(p *pool.Pool, cat *dialect.Catalog, exec *query.Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{pool: p, cat: cat, exec: exec, logger: logger}
}

// Begin acquires a handle exclusively for the transaction's lifetime and
// opens a backend transaction on it.
func (m *Manager) Begin(ctx context.Context) (*Tx, error) {
	h, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sqlTx, err := h.Conn().BeginTx(ctx, nil)
	if err != nil {
		m.pool.Discard(h)
		return nil, &dberr.TransactionError{Kind: dberr.TxBegin, Msg: "begin failed", Err: err}
	}
	m.logger.Debug("transaction begun", slog.String("handle", h.ID().String()))
	return &Tx{m: m, h: h, tx: sqlTx, state: StateActive}, nil
}

// Tx is one open transaction pinned to one handle.
type Tx struct {
	m  *Manager
	h  *pool.Handle
	tx *sql.Tx

	mu         sync.Mutex
	state      State
	released   bool
	savepoints []string
}

// State returns the current lifecycle state.
func (t *Tx) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Execute translates and runs one statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, template string, params []translate.Param, fetch core.FetchMode) (*core.QueryResult, error) {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return nil, &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "execute on " + t.state.String() + " transaction"}
	}
	t.mu.Unlock()

	stmt, args, err := translate.Translate(t.m.cat, template, params)
	if err != nil {
		return nil, err
	}
	res, err := t.m.exec.ExecuteTx(ctx, t.h, t.tx, stmt, args, fetch)
	if err != nil {
		if dberr.IsConnectionLost(err) {
			// The executor already marked the handle broken; the backend
			// rolled the transaction back implicitly.
			t.mu.Lock()
			t.state = StateRolledBackImplicit
			t.releaseLocked()
			t.mu.Unlock()
		}
		return nil, err
	}
	return res, nil
}

// Commit finishes the transaction. A second call on a terminal transaction
// returns an invalid-state error; the handle has already gone back to the
// pool exactly once.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "commit on " + t.state.String() + " transaction"}
	}
	err := t.tx.Commit()
	if err != nil {
		// A refused COMMIT still terminates the backend transaction. The
		// connection is only discarded when it actually died.
		t.state = StateRolledBackImplicit
		if query.IsConnLost(err) {
			t.m.pool.MarkBroken(t.h)
		}
		t.releaseLocked()
		return &dberr.TransactionError{Kind: dberr.TxCommit, Msg: "commit failed", Err: err}
	}
	t.state = StateCommitted
	t.releaseLocked()
	t.m.logger.Debug("transaction committed", slog.String("handle", t.h.ID().String()))
	return nil
}

// Rollback aborts the transaction. Rolling back an already-terminal
// transaction is a no-op so deferred rollbacks are always safe.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return nil
	}
	err := t.tx.Rollback()
	if err != nil {
		t.state = StateRolledBackImplicit
		t.m.pool.MarkBroken(t.h)
		t.releaseLocked()
		return &dberr.TransactionError{Kind: dberr.TxRollback, Msg: "rollback failed", Err: err}
	}
	t.state = StateRolledBack
	t.releaseLocked()
	t.m.logger.Debug("transaction rolled back", slog.String("handle", t.h.ID().String()))
	return nil
}

// Savepoint creates a named savepoint. Supported only where the dialect
// advertises the savepoints feature.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "savepoint on " + t.state.String() + " transaction"}
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+t.m.cat.QuoteIdentifier(name)); err != nil {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "savepoint " + name, Err: err}
	}
	t.savepoints = append(t.savepoints, name)
	return nil
}

// RollbackToSavepoint undoes work back to the named savepoint, which stays
// on the stack; savepoints created after it are dropped.
func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.findSavepointLocked(name)
	if idx < 0 {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "unknown savepoint " + name}
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+t.m.cat.QuoteIdentifier(name)); err != nil {
		return &dberr.TransactionError{Kind: dberr.TxRollback, Msg: "rollback to savepoint " + name, Err: err}
	}
	t.savepoints = t.savepoints[:idx+1]
	return nil
}

// ReleaseSavepoint drops the named savepoint and any created after it.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := t.checkSavepoint(name); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.findSavepointLocked(name)
	if idx < 0 {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "unknown savepoint " + name}
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+t.m.cat.QuoteIdentifier(name)); err != nil {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: "release savepoint " + name, Err: err}
	}
	t.savepoints = t.savepoints[:idx]
	return nil
}

func (t *Tx) checkSavepoint(name string) error {
	if !t.m.cat.Supports(dialect.FeatureSavepoints) {
		return &dberr.UnsupportedFeatureError{Dialect: t.m.cat.Name, Feature: dialect.FeatureSavepoints}
	}
	if !validSavepointName(name) {
		return &dberr.TransactionError{Kind: dberr.TxInvalidState, Msg: fmt.Sprintf("invalid savepoint name %q", name)}
	}
	return nil
}

func (t *Tx) findSavepointLocked(name string) int {
	for i := len(t.savepoints) - 1; i >= 0; i-- {
		if t.savepoints[i] == name {
			return i
		}
	}
	return -1
}

// releaseLocked returns the pinned handle exactly once. Broken handles were
// already discarded by the pool; Release on them is a no-op.
func (t *Tx) releaseLocked() {
	if t.released {
		return
	}
	t.released = true
	t.m.pool.Release(t.h)
}

func validSavepointName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') {
			continue
		}
		return false
	}
	return true
}
