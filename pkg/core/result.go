package core

// FetchMode controls how many rows an execution materializes.
type FetchMode int

const (
	// FetchNone discards any result rows (INSERT/UPDATE/DDL).
	FetchNone FetchMode = iota
	// FetchOne materializes at most one row.
	FetchOne
	// FetchAll materializes every row.
	FetchAll
)

// String returns the string representation of FetchMode.
func (m FetchMode) String() string {
	switch m {
	case FetchNone:
		return "none"
	case FetchOne:
		return "one"
	case FetchAll:
		return "all"
	default:
		return "unknown"
	}
}

// Row is one result row keyed by column name.
type Row map[string]any

// QueryResult is the normalized outcome of one statement execution.
type QueryResult struct {
	// Columns preserves the result-set column order; empty for FetchNone.
	Columns []string

	// Rows holds the materialized rows per the fetch mode.
	Rows []Row

	// RowsAffected is the count reported by the backend for writes.
	RowsAffected int64

	// LastInsertID is the auto-generated key of the last insert, when the
	// backend reports one (MySQL, SQLite). Zero otherwise.
	LastInsertID int64
}

// First returns the first row, or nil if the result is empty.
func (r *QueryResult) First() Row {
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}
