// Package dberr defines the typed error taxonomy shared by every dbridge
// component. Each error carries a stable kind so callers can branch with
// errors.As regardless of backend-specific wording.
package dberr

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionKind classifies connection failures.
type ConnectionKind string

const (
	ConnRefused    ConnectionKind = "refused"
	ConnAuthFailed ConnectionKind = "auth_failed"
	ConnLost       ConnectionKind = "lost"
)

// ConnectionError reports a failure to reach or keep a physical connection.
type ConnectionError struct {
	Kind ConnectionKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PoolExhaustedError is returned when Acquire times out with the pool at
// capacity. The pool never silently grows beyond its max size.
type PoolExhaustedError struct {
	MaxSize int
	Waited  time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted: %d connections in use, waited %s", e.MaxSize, e.Waited)
}

// QueryKind classifies statement-level failures.
type QueryKind string

const (
	QuerySyntax           QueryKind = "syntax_error"
	QueryUniqueViolation  QueryKind = "unique_violation"
	QueryFKViolation      QueryKind = "fk_violation"
	QueryNotNullViolation QueryKind = "not_null_violation"
	QueryTypeMismatch     QueryKind = "type_mismatch"
	QueryOther            QueryKind = "other"
)

// QueryError reports a statement failure with a normalized kind. These are
// never retried automatically.
type QueryError struct {
	Kind QueryKind
	SQL  string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (%s): %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TransactionKind classifies transaction-control failures.
type TransactionKind string

const (
	TxInvalidState       TransactionKind = "invalid_state"
	TxUnsupportedFeature TransactionKind = "unsupported_savepoint"
	TxBegin              TransactionKind = "begin_failed"
	TxCommit             TransactionKind = "commit_failed"
	TxRollback           TransactionKind = "rollback_failed"
)

// TransactionError reports a transaction lifecycle failure.
type TransactionError struct {
	Kind TransactionKind
	Msg  string
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("transaction %s: %s", e.Kind, e.Msg)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// SchemaKind classifies schema introspection and DDL failures.
type SchemaKind string

const (
	SchemaTableNotFound  SchemaKind = "table_not_found"
	SchemaColumnMismatch SchemaKind = "column_mismatch"
	SchemaDDLSyntax      SchemaKind = "ddl_syntax_error"
)

// SchemaError reports a schema operation failure.
type SchemaError struct {
	Kind  SchemaKind
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema %s on %q: %v", e.Kind, e.Table, e.Err)
	}
	return fmt.Sprintf("schema %s on %q", e.Kind, e.Table)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TranslationError reports an unsupported or malformed fragment in a generic
// statement template. Fragment identifies the offending piece.
type TranslationError struct {
	Fragment string
	Msg      string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("cannot translate %q: %s", e.Fragment, e.Msg)
}

// UnsupportedFeatureError is returned when a caller requests a capability the
// selected dialect does not have (e.g. savepoints).
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("dialect %s does not support %q", e.Dialect, e.Feature)
}

// IsConnectionLost reports whether err wraps a mid-operation connection loss.
func IsConnectionLost(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == ConnLost
}

// QueryKindOf extracts the normalized kind from err, or QueryOther when err is
// not a QueryError.
func QueryKindOf(err error) QueryKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return QueryOther
}
