// Package mysql provides the MySQL driver for dbridge.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/spi"
)

// Driver implements spi.Driver for MySQL.
type Driver struct{}

// New creates a MySQL driver instance.
func New() *Driver { return &Driver{} }

// Dialect returns the dialect name this driver serves.
func (d *Driver) Dialect() string { return "mysql" }

// BuildDSN constructs a go-sql-driver DSN via the driver's own config type.
func (d *Driver) BuildDSN(cfg core.ConnConfig) (string, string, error) {
	if cfg.Database == "" {
		return "", "", fmt.Errorf("mysql connection requires a database name")
	}
	mc := gomysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	for k, v := range cfg.Options {
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		mc.Params[k] = v
	}
	return "mysql", mc.FormatDSN(), nil
}

// NormalizeError maps MySQL error numbers to the dberr taxonomy.
func (d *Driver) NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
	switch myErr.Number {
	case 1062:
		return &dberr.QueryError{Kind: dberr.QueryUniqueViolation, Err: err}
	case 1451, 1452:
		return &dberr.QueryError{Kind: dberr.QueryFKViolation, Err: err}
	case 1048:
		return &dberr.QueryError{Kind: dberr.QueryNotNullViolation, Err: err}
	case 1064:
		return &dberr.QueryError{Kind: dberr.QuerySyntax, Err: err}
	case 1366, 1406:
		return &dberr.QueryError{Kind: dberr.QueryTypeMismatch, Err: err}
	case 1146:
		return &dberr.SchemaError{Kind: dberr.SchemaTableNotFound, Err: err}
	case 1054:
		return &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch, Err: err}
	case 1044, 1045:
		return &dberr.ConnectionError{Kind: dberr.ConnAuthFailed, Err: err}
	case 2006, 2013:
		return &dberr.ConnectionError{Kind: dberr.ConnLost, Err: err}
	default:
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
}

// TableSchema reads information_schema for the current database. Returns nil
// when the table does not exist.
func (d *Driver) TableSchema(ctx context.Context, run spi.Runner, table string) (*core.TableSchema, error) {
	res, err := run(ctx, `
		SELECT column_name, data_type, is_nullable, column_default,
		       ordinal_position, character_maximum_length, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`,
		[]any{table}, core.FetchAll)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	ts := &core.TableSchema{Name: table}
	for _, row := range res.Rows {
		col := core.ColumnDef{
			Name:       asString(row["column_name"]),
			Type:       mapColumnType(asString(row["data_type"])),
			Nullable:   strings.EqualFold(asString(row["is_nullable"]), "YES"),
			Position:   asInt(row["ordinal_position"]),
			Length:     asInt(row["character_maximum_length"]),
			PrimaryKey: strings.EqualFold(asString(row["column_key"]), "PRI"),
		}
		if def := row["column_default"]; def != nil {
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
	res, err := run(ctx, `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index`,
		[]any{table}, core.FetchAll)
	if err != nil {
		return err
	}
	byName := map[string]*core.IndexDef{}
	var order []string
	for _, row := range res.Rows {
		name := asString(row["index_name"])
		if name == "PRIMARY" {
			continue
		}
		idx, ok := byName[name]
		if !ok {
			idx = &core.IndexDef{Name: name, Unique: asInt(row["non_unique"]) == 0}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, asString(row["column_name"]))
	}
	for _, name := range order {
		ts.Indexes = append(ts.Indexes, *byName[name])
	}
	return nil
}

func (d *Driver) loadForeignKeys(ctx context.Context, run spi.Runner, table string, ts *core.TableSchema) error {
	res, err := run(ctx, `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`,
		[]any{table}, core.FetchAll)
	if err != nil {
		return err
	}
	byName := map[string]*core.ForeignKeyDef{}
	var order []string
	for _, row := range res.Rows {
		name := asString(row["constraint_name"])
		fk, ok := byName[name]
		if !ok {
			fk = &core.ForeignKeyDef{Name: name, RefTable: asString(row["referenced_table_name"])}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, asString(row["column_name"]))
		fk.RefColumns = append(fk.RefColumns, asString(row["referenced_column_name"]))
	}
	for _, name := range order {
		ts.ForeignKeys = append(ts.ForeignKeys, *byName[name])
	}
	return nil
}

// TableExists reports whether the table exists in the current database.
func (d *Driver) TableExists(ctx context.Context, run spi.Runner, table string) (bool, error) {
	res, err := run(ctx, `
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`,
		[]any{table}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// IndexExists reports whether the named index exists on the table. MySQL has
// no CREATE INDEX IF NOT EXISTS, so idempotent creation probes this first.
func (d *Driver) IndexExists(ctx context.Context, run spi.Runner, table, index string) (bool, error) {
	res, err := run(ctx, `
		SELECT 1 FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
		[]any{table, index}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// mapColumnType normalizes a MySQL data_type into the semantic type set.
func mapColumnType(native string) core.ColumnType {
	switch strings.ToLower(native) {
	case "int", "smallint", "mediumint":
		return core.TypeInteger
	case "tinyint":
		// TINYINT(1) is the conventional MySQL boolean.
		return core.TypeBoolean
	case "bigint":
		return core.TypeBigInt
	case "float", "double":
		return core.TypeFloat
	case "decimal", "numeric":
		return core.TypeDecimal
	case "varchar", "char":
		return core.TypeString
	case "datetime", "timestamp":
		return core.TypeDateTime
	case "date":
		return core.TypeDate
	case "json":
		return core.TypeJSON
	case "blob", "mediumblob", "longblob", "varbinary", "binary":
		return core.TypeBinary
	default:
		return core.TypeText
	}
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
	case uint64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

var _ spi.Driver = (*Driver)(nil)
