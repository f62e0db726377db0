// Package sqlite provides the SQLite driver for dbridge, backed by the
// CGo-free modernc.org/sqlite implementation.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gosqlite "modernc.org/sqlite"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/spi"
)

// SQLite extended result codes, as returned by sqlite.Error.Code().
const (
	codeError             = 1
	codeReadOnly          = 8
	codeCantOpen          = 14
	codeMismatch          = 20
	codeConstraintCheck   = 275
	codeConstraintFK      = 787
	codeConstraintNotNull = 1299
	codeConstraintPrimary = 1555
	codeConstraintUnique  = 2067
)

// Driver implements spi.Driver for SQLite.
type Driver struct{}

// New creates a SQLite driver instance.
func New() *Driver { return &Driver{} }

// Dialect returns the dialect name this driver serves.
func (d *Driver) Dialect() string { return "sqlite" }

// BuildDSN constructs a modernc DSN. In-memory databases use a shared cache
// so every pooled connection sees the same database.
func (d *Driver) BuildDSN(cfg core.ConnConfig) (string, string, error) {
	if cfg.Path == "" {
		return "", "", fmt.Errorf("sqlite connection requires a file path or :memory:")
	}
	params := url.Values{}
	for k, v := range cfg.Options {
		params.Add(k, v)
	}
	if cfg.Path == ":memory:" {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "sqlite", "file::memory:?" + params.Encode(), nil
	}
	dsn := "file:" + cfg.Path
	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}
	return "sqlite", dsn, nil
}

// NormalizeError maps SQLite extended result codes to the dberr taxonomy.
func (d *Driver) NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	var sqErr *gosqlite.Error
	if !errors.As(err, &sqErr) {
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
	switch sqErr.Code() {
	case codeConstraintUnique, codeConstraintPrimary:
		return &dberr.QueryError{Kind: dberr.QueryUniqueViolation, Err: err}
	case codeConstraintFK:
		return &dberr.QueryError{Kind: dberr.QueryFKViolation, Err: err}
	case codeConstraintNotNull, codeConstraintCheck:
		return &dberr.QueryError{Kind: dberr.QueryNotNullViolation, Err: err}
	case codeMismatch:
		return &dberr.QueryError{Kind: dberr.QueryTypeMismatch, Err: err}
	case codeCantOpen, codeReadOnly:
		return &dberr.ConnectionError{Kind: dberr.ConnRefused, Err: err}
	case codeError:
		// SQLITE_ERROR covers both syntax errors and missing objects; the
		// message is the only way to tell them apart.
		msg := sqErr.Error()
		if strings.Contains(msg, "no such table") {
			return &dberr.SchemaError{Kind: dberr.SchemaTableNotFound, Err: err}
		}
		if strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column") {
			return &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch, Err: err}
		}
		return &dberr.QueryError{Kind: dberr.QuerySyntax, Err: err}
	default:
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
}

// TableSchema introspects a table through the PRAGMA interface. Returns nil
// when the table does not exist.
func (d *Driver) TableSchema(ctx context.Context, run spi.Runner, table string) (*core.TableSchema, error) {
	res, err := run(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)), nil, core.FetchAll)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	ts := &core.TableSchema{Name: table}
	for _, row := range res.Rows {
		col := core.ColumnDef{
			Name:       asString(row["name"]),
			Type:       mapColumnType(asString(row["type"])),
			Nullable:   asInt(row["notnull"]) == 0,
			Position:   asInt(row["cid"]) + 1,
			PrimaryKey: asInt(row["pk"]) > 0,
		}
		if def := row["dflt_value"]; def != nil {
			col.Default = asString(def)
		}
		ts.Columns = append(ts.Columns, col)
	}

	if err := d.loadIndexes(ctx, run, table, ts); err != nil {
		return nil, err
	}
	if err := d.loadForeignKeys(ctx, run, table, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (d *Driver) loadIndexes(ctx context.Context, run spi.Runner, table string, ts *core.TableSchema) error {
	res, err := run(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)), nil, core.FetchAll)
	if err != nil {
		return err
	}
	for _, row := range res.Rows {
		name := asString(row["name"])
		if strings.HasPrefix(name, "sqlite_autoindex_") {
			continue
		}
		idx := core.IndexDef{Name: name, Unique: asInt(row["unique"]) == 1}
		cols, err := run(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(name)), nil, core.FetchAll)
		if err != nil {
			return err
		}
		for _, c := range cols.Rows {
			idx.Columns = append(idx.Columns, asString(c["name"]))
		}
		ts.Indexes = append(ts.Indexes, idx)
	}
	return nil
}

func (d *Driver) loadForeignKeys(ctx context.Context, run spi.Runner, table string, ts *core.TableSchema) error {
	res, err := run(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)), nil, core.FetchAll)
	if err != nil {
		return err
	}
	// Rows with the same id belong to one composite constraint.
	byID := map[int]*core.ForeignKeyDef{}
	var order []int
	for _, row := range res.Rows {
		id := asInt(row["id"])
		fk, ok := byID[id]
		if !ok {
			fk = &core.ForeignKeyDef{
				Name:     fmt.Sprintf("fk_%s_%d", table, id),
				RefTable: asString(row["table"]),
				OnDelete: asString(row["on_delete"]),
			}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, asString(row["from"]))
		fk.RefColumns = append(fk.RefColumns, asString(row["to"]))
	}
	for _, id := range order {
		ts.ForeignKeys = append(ts.ForeignKeys, *byID[id])
	}
	return nil
}

// TableExists probes sqlite_master for the table.
func (d *Driver) TableExists(ctx context.Context, run spi.Runner, table string) (bool, error) {
	res, err := run(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?",
		[]any{table}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// IndexExists probes sqlite_master for the index on the given table.
func (d *Driver) IndexExists(ctx context.Context, run spi.Runner, table, index string) (bool, error) {
	res, err := run(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'index' AND name = ? AND tbl_name = ?",
		[]any{index, table}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// mapColumnType normalizes a declared SQLite column type into the semantic
// type set, following the affinity rules loosely.
func mapColumnType(declared string) core.ColumnType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return core.TypeBoolean
	case strings.Contains(t, "BIGINT"):
		return core.TypeBigInt
	case strings.Contains(t, "INT"):
		return core.TypeInteger
	case strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return core.TypeDecimal
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return core.TypeFloat
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return core.TypeDateTime
	case strings.Contains(t, "DATE"):
		return core.TypeDate
	case strings.Contains(t, "JSON"):
		return core.TypeJSON
	case strings.Contains(t, "BLOB"):
		return core.TypeBinary
	case strings.Contains(t, "VARCHAR"), strings.Contains(t, "CHAR"):
		return core.TypeString
	default:
		return core.TypeText
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

var _ spi.Driver = (*Driver)(nil)
