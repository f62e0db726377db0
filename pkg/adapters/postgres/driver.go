// Package postgres provides the PostgreSQL driver for dbridge.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/spi"
)

// Driver implements spi.Driver for PostgreSQL.
type Driver struct{}

// New creates a PostgreSQL driver instance.
func New() *Driver { return &Driver{} }

// Dialect returns the dialect name this driver serves.
func (d *Driver) Dialect() string { return "postgresql" }

// BuildDSN constructs a key=value DSN for the pgx stdlib driver.
func (d *Driver) BuildDSN(cfg core.ConnConfig) (string, string, error) {
	if cfg.Database == "" {
		return "", "", fmt.Errorf("postgres connection requires a database name")
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += " user=" + cfg.Username
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return "pgx", dsn, nil
}

// NormalizeError maps PostgreSQL SQLSTATE codes to the dberr taxonomy.
func (d *Driver) NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
	switch pgErr.Code {
	case "23505":
		return &dberr.QueryError{Kind: dberr.QueryUniqueViolation, Err: err}
	case "23503":
		return &dberr.QueryError{Kind: dberr.QueryFKViolation, Err: err}
	case "23502":
		return &dberr.QueryError{Kind: dberr.QueryNotNullViolation, Err: err}
	case "42601":
		return &dberr.QueryError{Kind: dberr.QuerySyntax, Err: err}
	case "42804", "22P02", "42883":
		return &dberr.QueryError{Kind: dberr.QueryTypeMismatch, Err: err}
	case "42P01":
		return &dberr.SchemaError{Kind: dberr.SchemaTableNotFound, Table: pgErr.TableName, Err: err}
	case "42703":
		return &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch, Table: pgErr.TableName, Err: err}
	case "28P01", "28000":
		return &dberr.ConnectionError{Kind: dberr.ConnAuthFailed, Err: err}
	case "57P01", "57P02", "57P03", "08006", "08003":
		return &dberr.ConnectionError{Kind: dberr.ConnLost, Err: err}
	default:
		return &dberr.QueryError{Kind: dberr.QueryOther, Err: err}
	}
}

// TableSchema reads information_schema and normalizes into a TableSchema.
// Returns nil when the table does not exist.
func (d *Driver) TableSchema(ctx context.Context, run spi.Runner, table string) (*core.TableSchema, error) {
	schemaName, tableName := splitQualified(table, "public")

	res, err := run(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position,
		       character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		[]any{schemaName, tableName}, core.FetchAll)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	pkCols, err := d.primaryKeyColumns(ctx, run, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	ts := &core.TableSchema{Name: tableName}
	for _, row := range res.Rows {
		col := core.ColumnDef{
			Name:       asString(row["column_name"]),
			Type:       mapColumnType(asString(row["data_type"])),
			Nullable:   asString(row["is_nullable"]) == "YES",
			Position:   asInt(row["ordinal_position"]),
			Length:     asInt(row["character_maximum_length"]),
			PrimaryKey: pkCols[asString(row["column_name"])],
		}
		if def := row["column_default"]; def != nil {
			col.Default = asString(def)
		}
		ts.Columns = append(ts.Columns, col)
	}

	if err := d.loadIndexes(ctx, run, schemaName, tableName, ts); err != nil {
		return nil, err
	}
	if err := d.loadForeignKeys(ctx, run, schemaName, tableName, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (d *Driver) primaryKeyColumns(ctx context.Context, run spi.Runner, schemaName, tableName string) (map[string]bool, error) {
	res, err := run(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2`,
		[]any{schemaName, tableName}, core.FetchAll)
	if err != nil {
		return nil, err
	}
	pk := make(map[string]bool, len(res.Rows))
	for _, row := range res.Rows {
		pk[asString(row["column_name"])] = true
	}
	return pk, nil
}

func (d *Driver) loadIndexes(ctx context.Context, run spi.Runner, schemaName, tableName string, ts *core.TableSchema) error {
	res, err := run(ctx, `
		SELECT indexname, indexdef
		FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2`,
		[]any{schemaName, tableName}, core.FetchAll)
	if err != nil {
		return err
	}
	for _, row := range res.Rows {
		name := asString(row["indexname"])
		def := asString(row["indexdef"])
		if strings.Contains(name, "_pkey") {
			continue
		}
		ts.Indexes = append(ts.Indexes, core.IndexDef{
			Name:    name,
			Columns: indexColumns(def),
			Unique:  strings.Contains(def, "UNIQUE INDEX"),
		})
	}
	return nil
}

func (d *Driver) loadForeignKeys(ctx context.Context, run spi.Runner, schemaName, tableName string, ts *core.TableSchema) error {
	res, err := run(ctx, `
		SELECT tc.constraint_name, kcu.column_name,
		       ccu.table_name AS ref_table, ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`,
		[]any{schemaName, tableName}, core.FetchAll)
	if err != nil {
		return err
	}
	byName := map[string]*core.ForeignKeyDef{}
	var order []string
	for _, row := range res.Rows {
		name := asString(row["constraint_name"])
		fk, ok := byName[name]
		if !ok {
			fk = &core.ForeignKeyDef{Name: name, RefTable: asString(row["ref_table"])}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, asString(row["column_name"]))
		fk.RefColumns = append(fk.RefColumns, asString(row["ref_column"]))
	}
	for _, name := range order {
		ts.ForeignKeys = append(ts.ForeignKeys, *byName[name])
	}
	return nil
}

// TableExists reports whether the table exists in its schema.
func (d *Driver) TableExists(ctx context.Context, run spi.Runner, table string) (bool, error) {
	schemaName, tableName := splitQualified(table, "public")
	res, err := run(ctx, `
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2`,
		[]any{schemaName, tableName}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// IndexExists reports whether the named index exists on the table.
func (d *Driver) IndexExists(ctx context.Context, run spi.Runner, table, index string) (bool, error) {
	schemaName, tableName := splitQualified(table, "public")
	res, err := run(ctx, `
		SELECT 1 FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2 AND indexname = $3`,
		[]any{schemaName, tableName, index}, core.FetchOne)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// mapColumnType normalizes a postgres data_type into the semantic type set.
func mapColumnType(native string) core.ColumnType {
	switch strings.ToLower(native) {
	case "integer", "smallint":
		return core.TypeInteger
	case "bigint":
		return core.TypeBigInt
	case "real", "double precision":
		return core.TypeFloat
	case "numeric", "decimal":
		return core.TypeDecimal
	case "character varying", "character":
		return core.TypeString
	case "boolean":
		return core.TypeBoolean
	case "date":
		return core.TypeDate
	case "json", "jsonb":
		return core.TypeJSON
	case "bytea":
		return core.TypeBinary
	case "uuid":
		return core.TypeUUID
	default:
		if strings.HasPrefix(strings.ToLower(native), "timestamp") {
			return core.TypeDateTime
		}
		return core.TypeText
	}
}

// indexColumns extracts the column list from a pg_indexes indexdef.
func indexColumns(def string) []string {
	open := strings.LastIndex(def, "(")
	close_ := strings.LastIndex(def, ")")
	if open < 0 || close_ <= open {
		return nil
	}
	parts := strings.Split(def[open+1:close_], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.Trim(strings.TrimSpace(p), `"`))
	}
	return cols
}

func splitQualified(table, defaultSchema string) (string, string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
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
	default:
		return 0
	}
}

var _ spi.Driver = (*Driver)(nil)
