package tx

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
	"github.com/dataforge-labs/dbridge/pkg/pool"
	"github.com/dataforge-labs/dbridge/pkg/query"
	"github.com/dataforge-labs/dbridge/pkg/translate"
)

type txHarness struct {
	m    *Manager
	pool *pool.Pool
	mock sqlmock.Sqlmock
}

func newHarness(t *testing.T, dialectName string) *txHarness {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := pool.New(core.PoolConfig{MinSize: 0, MaxSize: 2}, func(ctx context.Context) (*sql.Conn, error) {
		return db.Conn(ctx)
	}, nil)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Close() })

	cat, err := dialect.Lookup(dialectName)
	require.NoError(t, err)

	exec := query.New(p, nil, nil)
	return &txHarness{m: NewManager(p, cat, exec, nil), pool: p, mock: mock}
}

func TestCommit(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectExec("INSERT INTO \"t\" (v) VALUES ($1)").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateActive, tx.State())
	assert.Equal(t, 1, h.pool.Stats().InUse, "transaction pins one handle")

	_, err = tx.Execute(context.Background(), "INSERT INTO {t} (v) VALUES (:v)",
		[]translate.Param{{Name: "v", Value: 1}}, core.FetchNone)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	assert.Equal(t, StateCommitted, tx.State())
	assert.Equal(t, 0, h.pool.Stats().InUse, "handle returns to the pool on commit")
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRollback(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Equal(t, StateRolledBack, tx.State())
	assert.Equal(t, 0, h.pool.Stats().InUse)
}

func TestRollbackIsIdempotent(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "deferred rollback after rollback must be a no-op")

	s := h.pool.Stats()
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, 1, s.Idle, "handle must be released exactly once")
}

func TestCommitAfterRollbackFails(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	err = tx.Commit()
	require.Error(t, err)
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dberr.TxInvalidState, te.Kind)
}

func TestExecuteAfterCommitFails(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = tx.Execute(context.Background(), "SELECT 1", nil, core.FetchAll)
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dberr.TxInvalidState, te.Kind)
}

func TestBeginFailureReturnsHandle(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin().WillReturnError(errors.New("backend unavailable"))

	_, err := h.m.Begin(context.Background())
	require.Error(t, err)
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dberr.TxBegin, te.Kind)

	s := h.pool.Stats()
	assert.Equal(t, 0, s.InUse, "failed begin must not leak the handle")
}

func TestCommitFailureOnDeadConnection(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectCommit().WillReturnError(io.EOF)

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)

	err = tx.Commit()
	require.Error(t, err)
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dberr.TxCommit, te.Kind)
	assert.Equal(t, StateRolledBackImplicit, tx.State())

	s := h.pool.Stats()
	assert.Equal(t, int64(1), s.Broken, "a dead connection is discarded, not pooled")
	assert.Equal(t, 0, s.InUse)
}

func TestCommitRejectionKeepsConnection(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectCommit().WillReturnError(errors.New("deferred constraint violated"))

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)

	err = tx.Commit()
	require.Error(t, err)
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dberr.TxCommit, te.Kind)
	assert.Equal(t, StateRolledBackImplicit, tx.State(), "the backend rolled the transaction back")

	s := h.pool.Stats()
	assert.Equal(t, int64(0), s.Broken, "a rejected commit is not a connection failure")
	assert.Equal(t, 1, s.Idle, "the healthy connection goes back to the pool")
	assert.Equal(t, 0, s.InUse)
}

func TestSavepointLifecycle(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectExec(`SAVEPOINT "sp1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectExec(`SAVEPOINT "sp2"`).WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectExec(`ROLLBACK TO SAVEPOINT "sp1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectExec(`RELEASE SAVEPOINT "sp1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectCommit()

	ctx := context.Background()
	tx, err := h.m.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Savepoint(ctx, "sp1"))
	require.NoError(t, tx.Savepoint(ctx, "sp2"))

	// sp1 survives the rollback; sp2 is dropped with it.
	require.NoError(t, tx.RollbackToSavepoint(ctx, "sp1"))
	err = tx.RollbackToSavepoint(ctx, "sp2")
	var te *dberr.TransactionError
	require.ErrorAs(t, err, &te)

	require.NoError(t, tx.ReleaseSavepoint(ctx, "sp1"))
	err = tx.RollbackToSavepoint(ctx, "sp1")
	require.ErrorAs(t, err, &te)

	require.NoError(t, tx.Commit())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestSavepointNameValidation(t *testing.T) {
	h := newHarness(t, "postgresql")
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	for _, bad := range []string{"", "sp 1", `sp"; DROP TABLE x`, "sp-1"} {
		err := tx.Savepoint(context.Background(), bad)
		var te *dberr.TransactionError
		require.ErrorAs(t, err, &te, "name %q must be rejected", bad)
	}
}

func TestSavepointUnsupportedDialect(t *testing.T) {
	// Register a throwaway dialect without savepoint support.
	dialect.Register(&dialect.Catalog{
		Name:       "nosavepoints",
		QuoteStart: `"`,
		QuoteEnd:   `"`,
		Features:   map[string]bool{},
	})
	h := newHarness(t, "nosavepoints")
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	tx, err := h.m.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	err = tx.Savepoint(context.Background(), "sp1")
	var ue *dberr.UnsupportedFeatureError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "nosavepoints", ue.Dialect)
}
