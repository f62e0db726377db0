// Package schema reads table metadata and generates dialect-correct DDL.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
	"github.com/dataforge-labs/dbridge/pkg/spi"
)

// Manager introspects schemas and executes generated DDL through the
// adapter-supplied runner.
type Manager struct {
	cat    *dialect.Catalog
	driver spi.Driver
	run    spi.Runner
	logger *slog.Logger
}

// NewManager wires a schema manager for one dialect.
func NewManager(cat *dialect.Catalog, driver spi.Driver, run spi.Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{cat: cat, driver: driver, run: run, logger: logger}
}

// GetTableSchema reads the backend catalog and normalizes the metadata.
func (m *Manager) GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error) {
	ts, err := m.driver.TableSchema(ctx, m.run, table)
	if err != nil {
		// Runner errors arrive already classified; re-wrapping a lost
		// connection as a schema error would hide the real failure.
		if isClassified(err) {
			return nil, err
		}
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	if ts == nil {
		return nil, &dberr.SchemaError{Kind: dberr.SchemaTableNotFound, Table: table}
	}
	return ts, nil
}

// TableExists reports whether the named table exists.
func (m *Manager) TableExists(ctx context.Context, table string) (bool, error) {
	return m.driver.TableExists(ctx, m.run, table)
}

// CreateTable generates and executes dialect-correct DDL for ts. Creation is
// idempotent: an existing table of the same name is left untouched.
func (m *Manager) CreateTable(ctx context.Context, ts *core.TableSchema) error {
	if err := ts.Validate(); err != nil {
		return &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch, Table: ts.Name, Err: err}
	}
	ddl, err := m.CreateTableDDL(ts)
	if err != nil {
		return err
	}
	if _, err := m.run(ctx, ddl, nil, core.FetchNone); err != nil {
		return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: ts.Name, Err: err}
	}
	m.logger.Debug("created table", slog.String("table", ts.Name))

	for _, idx := range ts.Indexes {
		if err := m.CreateIndex(ctx, ts.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

// CreateTableDDL renders the CREATE TABLE statement without executing it.
func (m *Manager) CreateTableDDL(ts *core.TableSchema) (string, error) {
	var defs []string
	pk := ts.PrimaryKey()

	for _, col := range ts.Columns {
		def, err := m.columnDDL(col, len(pk) == 1 && col.PrimaryKey)
		if err != nil {
			return "", &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch, Table: ts.Name, Err: err}
		}
		defs = append(defs, def)
	}

	if len(pk) > 1 {
		defs = append(defs, "PRIMARY KEY ("+m.quoteList(pk)+")")
	}

	for _, fk := range ts.ForeignKeys {
		def := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			m.cat.QuoteIdentifier(fk.Name),
			m.quoteList(fk.Columns),
			m.cat.QuoteIdentifier(fk.RefTable),
			m.quoteList(fk.RefColumns))
		if fk.OnDelete != "" {
			def += " ON DELETE " + fk.OnDelete
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		m.cat.QuoteIdentifier(ts.Name), strings.Join(defs, ", ")), nil
}

func (m *Manager) columnDDL(col core.ColumnDef, inlinePK bool) (string, error) {
	native, err := m.cat.NativeType(col.Type, col.Length)
	if err != nil {
		return "", err
	}
	parts := []string{m.cat.QuoteIdentifier(col.Name), native}
	if inlinePK {
		parts = append(parts, "PRIMARY KEY")
	}
	if !col.Nullable && !inlinePK {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		lit, err := m.cat.EncodeLiteral(col.Default)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+lit)
	}
	return strings.Join(parts, " "), nil
}

// CreateIndex creates one secondary index idempotently. Backends without
// CREATE INDEX IF NOT EXISTS (MySQL) are probed via the driver first.
func (m *Manager) CreateIndex(ctx context.Context, table string, idx core.IndexDef) error {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	ifNotExists := "IF NOT EXISTS "
	if !m.cat.Supports(dialect.FeatureCreateIfExists) || m.cat.Name == dialect.DialectMySQL {
		ifNotExists = ""
		exists, err := m.driver.IndexExists(ctx, m.run, table, idx.Name)
		if err != nil {
			return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
		}
		if exists {
			return nil
		}
	}
	ddl := fmt.Sprintf("CREATE %sINDEX %s%s ON %s (%s)",
		unique, ifNotExists,
		m.cat.QuoteIdentifier(idx.Name),
		m.cat.QuoteIdentifier(table),
		m.quoteList(idx.Columns))
	if _, err := m.run(ctx, ddl, nil, core.FetchNone); err != nil {
		return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
	}
	return nil
}

// DropIndex removes an index. No-op if absent.
func (m *Manager) DropIndex(ctx context.Context, table, index string) error {
	var ddl string
	switch m.cat.Name {
	case dialect.DialectMySQL:
		exists, err := m.driver.IndexExists(ctx, m.run, table, index)
		if err != nil {
			return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
		}
		if !exists {
			return nil
		}
		ddl = fmt.Sprintf("DROP INDEX %s ON %s", m.cat.QuoteIdentifier(index), m.cat.QuoteIdentifier(table))
	default:
		ddl = "DROP INDEX IF EXISTS " + m.cat.QuoteIdentifier(index)
	}
	if _, err := m.run(ctx, ddl, nil, core.FetchNone); err != nil {
		return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
	}
	return nil
}

// DropTable removes a table. By default absent tables are a no-op; with
// strict set, dropping a missing table is a typed error.
func (m *Manager) DropTable(ctx context.Context, table string, strict bool) error {
	if strict {
		exists, err := m.driver.TableExists(ctx, m.run, table)
		if err != nil {
			return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
		}
		if !exists {
			return &dberr.SchemaError{Kind: dberr.SchemaTableNotFound, Table: table}
		}
	}
	ddl := "DROP TABLE IF EXISTS " + m.cat.QuoteIdentifier(table)
	if _, err := m.run(ctx, ddl, nil, core.FetchNone); err != nil {
		return &dberr.SchemaError{Kind: dberr.SchemaDDLSyntax, Table: table, Err: err}
	}
	m.logger.Debug("dropped table", slog.String("table", table))
	return nil
}

// isClassified reports whether err already carries a taxonomy type.
func isClassified(err error) bool {
	var (
		ce *dberr.ConnectionError
		qe *dberr.QueryError
		se *dberr.SchemaError
		pe *dberr.PoolExhaustedError
	)
	return errors.As(err, &ce) || errors.As(err, &qe) || errors.As(err, &se) || errors.As(err, &pe)
}

func (m *Manager) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = m.cat.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
