// Package spi defines the service-provider interface implemented by the
// concrete driver packages under pkg/adapters. It exists so pkg/schema and
// pkg/adapter can depend on driver behavior without importing the drivers.
package spi

import (
	"context"

	"github.com/dataforge-labs/dbridge/pkg/core"
)

// Runner executes one native SQL statement with bound args and materializes
// the result per fetch. The adapter supplies a Runner bound to its pool and
// executor; drivers never hold connections of their own.
type Runner func(ctx context.Context, nativeSQL string, args []any, fetch core.FetchMode) (*core.QueryResult, error)

// Driver is the per-backend plug-in: connection-string mechanics, error
// normalization, and catalog introspection.
type Driver interface {
	// Dialect returns the dialect name this driver serves.
	Dialect() string

	// BuildDSN converts a parsed connection config into the database/sql
	// driver name and DSN. Malformed configs fail here, at construction.
	BuildDSN(cfg core.ConnConfig) (driverName, dsn string, err error)

	// NormalizeError maps a backend error to the dberr taxonomy.
	NormalizeError(err error) error

	// TableSchema reads the backend's metadata catalog for one table and
	// normalizes it. Returns nil with no error when the table is absent;
	// the caller turns that into a typed schema error.
	TableSchema(ctx context.Context, run Runner, table string) (*core.TableSchema, error)

	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, run Runner, table string) (bool, error)

	// IndexExists reports whether the named index exists on the table.
	// Used for idempotent index creation on backends without
	// CREATE INDEX IF NOT EXISTS.
	IndexExists(ctx context.Context, run Runner, table, index string) (bool, error)
}
