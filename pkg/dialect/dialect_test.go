package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge-labs/dbridge/pkg/core"
)

func TestLookupBuiltins(t *testing.T) {
	for _, name := range []string{DialectPostgres, DialectMySQL, DialectSQLite} {
		t.Run(name, func(t *testing.T) {
			cat, err := Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, name, cat.Name)
			assert.NotEmpty(t, cat.DriverName)
		})
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	cat, err := Lookup("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, cat.Name)
}

func TestLookupUnknownListsAvailable(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgresql")
	assert.Contains(t, err.Error(), "sqlite")
}

func TestList(t *testing.T) {
	names := List()
	assert.Contains(t, names, DialectPostgres)
	assert.Contains(t, names, DialectMySQL)
	assert.Contains(t, names, DialectSQLite)
}

func TestFormatPlaceholder(t *testing.T) {
	pg, _ := Lookup(DialectPostgres)
	my, _ := Lookup(DialectMySQL)

	assert.Equal(t, "$1", pg.FormatPlaceholder(1))
	assert.Equal(t, "$12", pg.FormatPlaceholder(12))
	assert.Equal(t, "?", my.FormatPlaceholder(1))
	assert.Equal(t, "?", my.FormatPlaceholder(12))
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{DialectPostgres, "users", `"users"`},
		{DialectPostgres, `odd"name`, `"odd""name"`},
		{DialectMySQL, "users", "`users`"},
		{DialectMySQL, "odd`name", "`odd``name`"},
		{DialectSQLite, "users", `"users"`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.ident, func(t *testing.T) {
			cat, err := Lookup(tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cat.QuoteIdentifier(tt.ident))
		})
	}
}

func TestNativeType(t *testing.T) {
	tests := []struct {
		dialect string
		typ     core.ColumnType
		length  int
		want    string
	}{
		{DialectPostgres, core.TypeString, 100, "VARCHAR(100)"},
		{DialectPostgres, core.TypeString, 0, "VARCHAR(255)"},
		{DialectPostgres, core.TypeBoolean, 0, "BOOLEAN"},
		{DialectPostgres, core.TypeJSON, 0, "JSONB"},
		{DialectMySQL, core.TypeBoolean, 0, "TINYINT(1)"},
		{DialectMySQL, core.TypeDateTime, 0, "DATETIME(6)"},
		{DialectSQLite, core.TypeBoolean, 0, "INTEGER"},
		{DialectSQLite, core.TypeString, 50, "TEXT"},
		{DialectSQLite, core.TypeJSON, 0, "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+string(tt.typ), func(t *testing.T) {
			cat, err := Lookup(tt.dialect)
			require.NoError(t, err)
			got, err := cat.NativeType(tt.typ, tt.length)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNativeTypeUnknown(t *testing.T) {
	cat, err := Lookup(DialectPostgres)
	require.NoError(t, err)
	_, err = cat.NativeType(core.ColumnType("geometry"), 0)
	assert.Error(t, err)
}

func TestEncodeLiteral(t *testing.T) {
	pg, _ := Lookup(DialectPostgres)
	my, _ := Lookup(DialectMySQL)
	lite, _ := Lookup(DialectSQLite)

	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		cat  *Catalog
		in   any
		want string
	}{
		{"nil", pg, nil, "NULL"},
		{"string escapes quotes", pg, "it's", "'it''s'"},
		{"int", pg, 42, "42"},
		{"float", pg, 2.5, "2.5"},
		{"bool pg", pg, true, "TRUE"},
		{"bool mysql", my, false, "FALSE"},
		{"bool sqlite true", lite, true, "1"},
		{"bool sqlite false", lite, false, "0"},
		{"time", pg, ts, "'2024-05-01 12:30:00'"},
		{"binary pg", pg, []byte{0xde, 0xad}, `'\xdead'`},
		{"binary mysql", my, []byte{0xde, 0xad}, "X'dead'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cat.EncodeLiteral(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := pg.EncodeLiteral(struct{}{})
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	pg, _ := Lookup(DialectPostgres)
	my, _ := Lookup(DialectMySQL)
	lite, _ := Lookup(DialectSQLite)

	assert.True(t, pg.Supports(FeatureReturningClause))
	assert.False(t, pg.Supports(FeatureLastInsertID))
	assert.False(t, my.Supports(FeatureReturningClause))
	assert.True(t, my.Supports(FeatureLastInsertID))
	assert.False(t, lite.Supports(FeatureJSONType))
	assert.True(t, lite.Supports(FeatureSavepoints))
	assert.False(t, pg.Supports("time_travel"))
}
