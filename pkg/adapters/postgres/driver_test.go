package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
)

func TestBuildDSN(t *testing.T) {
	d := New()

	t.Run("full config", func(t *testing.T) {
		name, dsn, err := d.BuildDSN(core.ConnConfig{
			Host:     "db.example.com",
			Port:     5433,
			Database: "orders",
			Username: "svc",
			Password: "hunter2",
			Options:  map[string]string{"sslmode": "require"},
		})
		require.NoError(t, err)
		assert.Equal(t, "pgx", name)
		assert.Equal(t, "host=db.example.com port=5433 dbname=orders sslmode=require user=svc password=hunter2", dsn)
	})

	t.Run("sslmode defaults to disable", func(t *testing.T) {
		_, dsn, err := d.BuildDSN(core.ConnConfig{Host: "localhost", Port: 5432, Database: "app"})
		require.NoError(t, err)
		assert.Equal(t, "host=localhost port=5432 dbname=app sslmode=disable", dsn)
	})

	t.Run("database required", func(t *testing.T) {
		_, _, err := d.BuildDSN(core.ConnConfig{Host: "localhost", Port: 5432})
		require.Error(t, err)
	})
}

func TestNormalizeError(t *testing.T) {
	d := New()

	if err := d.NormalizeError(nil); err != nil {
		t.Fatalf("nil should stay nil, got %v", err)
	}

	tests := []struct {
		code string
		want any
	}{
		{"23505", &dberr.QueryError{Kind: dberr.QueryUniqueViolation}},
		{"23503", &dberr.QueryError{Kind: dberr.QueryFKViolation}},
		{"23502", &dberr.QueryError{Kind: dberr.QueryNotNullViolation}},
		{"42601", &dberr.QueryError{Kind: dberr.QuerySyntax}},
		{"42804", &dberr.QueryError{Kind: dberr.QueryTypeMismatch}},
		{"22P02", &dberr.QueryError{Kind: dberr.QueryTypeMismatch}},
		{"42P01", &dberr.SchemaError{Kind: dberr.SchemaTableNotFound}},
		{"42703", &dberr.SchemaError{Kind: dberr.SchemaColumnMismatch}},
		{"28P01", &dberr.ConnectionError{Kind: dberr.ConnAuthFailed}},
		{"57P01", &dberr.ConnectionError{Kind: dberr.ConnLost}},
		{"08006", &dberr.ConnectionError{Kind: dberr.ConnLost}},
		{"55000", &dberr.QueryError{Kind: dberr.QueryOther}},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			src := &pgconn.PgError{Code: tc.code, Message: "boom"}
			got := d.NormalizeError(fmt.Errorf("exec: %w", src))

			switch want := tc.want.(type) {
			case *dberr.QueryError:
				var qe *dberr.QueryError
				require.ErrorAs(t, got, &qe)
				assert.Equal(t, want.Kind, qe.Kind)
			case *dberr.SchemaError:
				var se *dberr.SchemaError
				require.ErrorAs(t, got, &se)
				assert.Equal(t, want.Kind, se.Kind)
			case *dberr.ConnectionError:
				var ce *dberr.ConnectionError
				require.ErrorAs(t, got, &ce)
				assert.Equal(t, want.Kind, ce.Kind)
			}
			// The original driver error stays reachable.
			assert.True(t, errors.Is(got, src))
		})
	}

	t.Run("non-pg error becomes QueryOther", func(t *testing.T) {
		var qe *dberr.QueryError
		require.ErrorAs(t, d.NormalizeError(errors.New("plain")), &qe)
		assert.Equal(t, dberr.QueryOther, qe.Kind)
	})
}

func TestMapColumnType(t *testing.T) {
	tests := []struct {
		native string
		want   core.ColumnType
	}{
		{"integer", core.TypeInteger},
		{"smallint", core.TypeInteger},
		{"bigint", core.TypeBigInt},
		{"double precision", core.TypeFloat},
		{"numeric", core.TypeDecimal},
		{"character varying", core.TypeString},
		{"boolean", core.TypeBoolean},
		{"date", core.TypeDate},
		{"timestamp without time zone", core.TypeDateTime},
		{"timestamp with time zone", core.TypeDateTime},
		{"jsonb", core.TypeJSON},
		{"bytea", core.TypeBinary},
		{"uuid", core.TypeUUID},
		{"text", core.TypeText},
		{"tsvector", core.TypeText},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, mapColumnType(tc.native), tc.native)
	}
}

func TestSplitQualified(t *testing.T) {
	s, n := splitQualified("users", "public")
	assert.Equal(t, "public", s)
	assert.Equal(t, "users", n)

	s, n = splitQualified("billing.invoices", "public")
	assert.Equal(t, "billing", s)
	assert.Equal(t, "invoices", n)
}

// catalogRunner answers introspection queries from canned rows keyed by an
// SQL fragment. Args are recorded so binding can be asserted.
func catalogRunner(t *testing.T, canned map[string][]core.Row, gotArgs *[][]any) func(context.Context, string, []any, core.FetchMode) (*core.QueryResult, error) {
	t.Helper()
	return func(_ context.Context, nativeSQL string, args []any, _ core.FetchMode) (*core.QueryResult, error) {
		*gotArgs = append(*gotArgs, args)
		for fragment, rows := range canned {
			if strings.Contains(nativeSQL, fragment) {
				return &core.QueryResult{Rows: rows}, nil
			}
		}
		t.Fatalf("unexpected catalog query: %s", nativeSQL)
		return nil, nil
	}
}

func TestTableSchemaIntrospection(t *testing.T) {
	d := New()
	canned := map[string][]core.Row{
		"information_schema.columns": {
			{"column_name": "id", "data_type": "integer", "is_nullable": "NO", "column_default": "nextval('orders_id_seq')", "ordinal_position": int64(1), "character_maximum_length": nil},
			{"column_name": "tenant_id", "data_type": "uuid", "is_nullable": "NO", "column_default": nil, "ordinal_position": int64(2), "character_maximum_length": nil},
			{"column_name": "note", "data_type": "character varying", "is_nullable": "YES", "column_default": nil, "ordinal_position": int64(3), "character_maximum_length": int64(200)},
		},
		"constraint_type = 'PRIMARY KEY'": {
			{"column_name": "id"},
			{"column_name": "tenant_id"},
		},
		"SELECT indexname, indexdef": {
			{"indexname": "orders_pkey", "indexdef": `CREATE UNIQUE INDEX orders_pkey ON public.orders USING btree (id, tenant_id)`},
			{"indexname": "idx_orders_note", "indexdef": `CREATE INDEX idx_orders_note ON public.orders USING btree (note)`},
		},
		"constraint_type = 'FOREIGN KEY'": {
			{"constraint_name": "orders_tenant_fk", "column_name": "tenant_id", "ref_table": "tenants", "ref_column": "id"},
		},
	}
	var gotArgs [][]any
	run := catalogRunner(t, canned, &gotArgs)

	ts, err := d.TableSchema(context.Background(), run, "orders")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, "orders", ts.Name)

	require.Len(t, ts.Columns, 3)
	id := ts.Columns[0]
	assert.Equal(t, core.TypeInteger, id.Type)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.Equal(t, 1, id.Position)
	assert.Equal(t, "nextval('orders_id_seq')", id.Default)

	tenant := ts.Columns[1]
	assert.Equal(t, core.TypeUUID, tenant.Type)
	assert.True(t, tenant.PrimaryKey, "composite primary keys flag every member column")

	note := ts.Columns[2]
	assert.Equal(t, core.TypeString, note.Type)
	assert.True(t, note.Nullable)
	assert.Equal(t, 200, note.Length)
	assert.False(t, note.PrimaryKey)

	// The _pkey index is folded into the column flags, not reported twice.
	require.Len(t, ts.Indexes, 1)
	assert.Equal(t, "idx_orders_note", ts.Indexes[0].Name)
	assert.Equal(t, []string{"note"}, ts.Indexes[0].Columns)
	assert.False(t, ts.Indexes[0].Unique)

	require.Len(t, ts.ForeignKeys, 1)
	fk := ts.ForeignKeys[0]
	assert.Equal(t, "orders_tenant_fk", fk.Name)
	assert.Equal(t, "tenants", fk.RefTable)
	assert.Equal(t, []string{"tenant_id"}, fk.Columns)
	assert.Equal(t, []string{"id"}, fk.RefColumns)

	// Every catalog query binds the default schema plus the bare table name.
	for _, args := range gotArgs {
		assert.Equal(t, []any{"public", "orders"}, args)
	}
}

func TestTableSchemaCompositeForeignKey(t *testing.T) {
	d := New()
	canned := map[string][]core.Row{
		"information_schema.columns": {
			{"column_name": "order_id", "data_type": "integer", "is_nullable": "NO", "column_default": nil, "ordinal_position": int64(1), "character_maximum_length": nil},
			{"column_name": "tenant_id", "data_type": "uuid", "is_nullable": "NO", "column_default": nil, "ordinal_position": int64(2), "character_maximum_length": nil},
		},
		"constraint_type = 'PRIMARY KEY'": {},
		"SELECT indexname, indexdef":      {},
		"constraint_type = 'FOREIGN KEY'": {
			{"constraint_name": "lines_order_fk", "column_name": "order_id", "ref_table": "orders", "ref_column": "id"},
			{"constraint_name": "lines_order_fk", "column_name": "tenant_id", "ref_table": "orders", "ref_column": "tenant_id"},
		},
	}
	var gotArgs [][]any

	ts, err := d.TableSchema(context.Background(), catalogRunner(t, canned, &gotArgs), "billing.order_lines")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, "order_lines", ts.Name)

	require.Len(t, ts.ForeignKeys, 1, "rows of one constraint group into one definition")
	fk := ts.ForeignKeys[0]
	assert.Equal(t, []string{"order_id", "tenant_id"}, fk.Columns)
	assert.Equal(t, []string{"id", "tenant_id"}, fk.RefColumns)

	for _, args := range gotArgs {
		assert.Equal(t, []any{"billing", "order_lines"}, args, "qualified names keep their schema")
	}
}

func TestTableSchemaAbsentTable(t *testing.T) {
	d := New()
	canned := map[string][]core.Row{"information_schema.columns": {}}
	var gotArgs [][]any

	ts, err := d.TableSchema(context.Background(), catalogRunner(t, canned, &gotArgs), "ghost")
	require.NoError(t, err)
	assert.Nil(t, ts)
	assert.Len(t, gotArgs, 1, "an absent table short-circuits before index and key queries")
}

func TestExistenceProbes(t *testing.T) {
	d := New()

	t.Run("table", func(t *testing.T) {
		var gotArgs [][]any
		run := catalogRunner(t, map[string][]core.Row{"information_schema.tables": {{"1": int64(1)}}}, &gotArgs)
		ok, err := d.TableExists(context.Background(), run, "orders")
		require.NoError(t, err)
		assert.True(t, ok)

		run = catalogRunner(t, map[string][]core.Row{"information_schema.tables": {}}, &gotArgs)
		ok, err = d.TableExists(context.Background(), run, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("index", func(t *testing.T) {
		var gotArgs [][]any
		run := catalogRunner(t, map[string][]core.Row{"SELECT 1 FROM pg_indexes": {{"1": int64(1)}}}, &gotArgs)
		ok, err := d.IndexExists(context.Background(), run, "orders", "idx_orders_note")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []any{"public", "orders", "idx_orders_note"}, gotArgs[0])
	})
}

func TestIndexColumns(t *testing.T) {
	cols := indexColumns(`CREATE UNIQUE INDEX users_email_key ON public.users USING btree (email, "tenant_id")`)
	assert.Equal(t, []string{"email", "tenant_id"}, cols)

	assert.Nil(t, indexColumns("garbage without parens"))
}
