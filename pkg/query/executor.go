// Package query executes translated statements against checked-out pool
// handles and normalizes backend rows into the common QueryResult shape.
package query

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/pool"
	"github.com/dataforge-labs/dbridge/pkg/translate"
)

// Normalizer maps a backend-specific error to the dberr taxonomy. Each
// driver package supplies its own.
type Normalizer func(err error) error

// Executor runs statements on handles it is given. It never acquires or
// releases handles itself; ownership stays with the caller so transactions
// can pin one handle across many statements.
type Executor struct {
	pool      *pool.Pool
	normalize Normalizer
	logger    *slog.Logger
}

// New creates an executor bound to one pool and one driver normalizer.
func New(p *pool.Pool, normalize Normalizer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if normalize == nil {
		normalize = func(err error) error { return err }
	}
	return &Executor{pool: p, normalize: normalize, logger: logger}
}

// Execute runs stmt on h and materializes the result per fetch. On
// connection loss the handle is marked broken and a ConnectionError is
// returned; the statement is never retried here since it may not be
// idempotent. Constraint and syntax failures come back as QueryError with a
// normalized subkind.
func (e *Executor) Execute(ctx context.Context, h *pool.Handle, stmt translate.Statement, args []any, fetch core.FetchMode) (*core.QueryResult, error) {
	start := time.Now()
	res, err := e.execute(ctx, h.Conn(), stmt, args, fetch)
	if err != nil {
		return nil, e.fail(h, stmt, err)
	}
	e.logger.Debug("executed statement",
		slog.String("dialect", stmt.Dialect),
		slog.String("fetch", fetch.String()),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// ExecuteTx is Execute against an open transaction instead of a bare
// connection. The transaction's handle is still marked broken on loss.
func (e *Executor) ExecuteTx(ctx context.Context, h *pool.Handle, tx *sql.Tx, stmt translate.Statement, args []any, fetch core.FetchMode) (*core.QueryResult, error) {
	res, err := e.execute(ctx, tx, stmt, args, fetch)
	if err != nil {
		return nil, e.fail(h, stmt, err)
	}
	return res, nil
}

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (e *Executor) execute(ctx context.Context, q querier, stmt translate.Statement, args []any, fetch core.FetchMode) (*core.QueryResult, error) {
	if fetch == core.FetchNone {
		res, err := q.ExecContext(ctx, stmt.NativeSQL, args...)
		if err != nil {
			return nil, err
		}
		out := &core.QueryResult{}
		if n, err := res.RowsAffected(); err == nil {
			out.RowsAffected = n
		}
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
		}
		return out, nil
	}

	rows, err := q.QueryContext(ctx, stmt.NativeSQL, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &core.QueryResult{Columns: cols}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(core.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out.Rows = append(out.Rows, row)
		out.RowsAffected++
		if fetch == core.FetchOne {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// fail classifies err: connection losses break the handle, everything else
// goes through the driver normalizer.
func (e *Executor) fail(h *pool.Handle, stmt translate.Statement, err error) error {
	if IsConnLost(err) {
		e.pool.MarkBroken(h)
		e.logger.Warn("connection lost during statement",
			slog.String("handle", h.ID().String()),
			slog.String("error", err.Error()))
		return &dberr.ConnectionError{Kind: dberr.ConnLost, Err: err}
	}
	norm := e.normalize(err)
	var qe *dberr.QueryError
	if errors.As(norm, &qe) && qe.SQL == "" {
		qe.SQL = stmt.NativeSQL
	}
	return norm
}

// normalizeValue copies driver-owned buffers so rows stay valid after the
// result set is closed.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return v
}

// IsConnLost reports whether err indicates the physical connection died
// mid-operation rather than a statement-level failure.
func IsConnLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
