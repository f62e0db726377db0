package dialect

import "github.com/dataforge-labs/dbridge/pkg/core"

// Built-in dialect names.
const (
	DialectPostgres = "postgresql"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

func init() {
	Register(postgresCatalog())
	Register(mysqlCatalog())
	Register(sqliteCatalog())
}

func postgresCatalog() *Catalog {
	return &Catalog{
		Name:          DialectPostgres,
		DriverName:    "pgx",
		DefaultSchema: "public",
		DefaultPort:   5432,
		Placeholder:   PlaceholderDollar,
		QuoteStart:    `"`,
		QuoteEnd:      `"`,
		TypeMap: map[core.ColumnType]string{
			core.TypeInteger:  "INTEGER",
			core.TypeBigInt:   "BIGINT",
			core.TypeFloat:    "DOUBLE PRECISION",
			core.TypeDecimal:  "NUMERIC(%d, 6)",
			core.TypeString:   "VARCHAR(%d)",
			core.TypeText:     "TEXT",
			core.TypeBoolean:  "BOOLEAN",
			core.TypeDateTime: "TIMESTAMP",
			core.TypeDate:     "DATE",
			core.TypeJSON:     "JSONB",
			core.TypeBinary:   "BYTEA",
			core.TypeUUID:     "UUID",
		},
		Features: map[string]bool{
			FeatureSavepoints:      true,
			FeatureReturningClause: true,
			FeatureJSONType:        true,
			FeatureForeignKeys:     true,
			FeatureCreateIfExists:  true,
			FeatureLastInsertID:    false,
		},
	}
}

func mysqlCatalog() *Catalog {
	return &Catalog{
		Name:          DialectMySQL,
		DriverName:    "mysql",
		DefaultSchema: "",
		DefaultPort:   3306,
		Placeholder:   PlaceholderQuestion,
		QuoteStart:    "`",
		QuoteEnd:      "`",
		TypeMap: map[core.ColumnType]string{
			core.TypeInteger:  "INT",
			core.TypeBigInt:   "BIGINT",
			core.TypeFloat:    "DOUBLE",
			core.TypeDecimal:  "DECIMAL(%d, 6)",
			core.TypeString:   "VARCHAR(%d)",
			core.TypeText:     "TEXT",
			core.TypeBoolean:  "TINYINT(1)",
			core.TypeDateTime: "DATETIME(6)",
			core.TypeDate:     "DATE",
			core.TypeJSON:     "JSON",
			core.TypeBinary:   "BLOB",
			core.TypeUUID:     "CHAR(36)",
		},
		Features: map[string]bool{
			FeatureSavepoints:      true,
			FeatureReturningClause: false,
			FeatureJSONType:        true,
			FeatureForeignKeys:     true,
			FeatureCreateIfExists:  true,
			FeatureLastInsertID:    true,
		},
	}
}

func sqliteCatalog() *Catalog {
	return &Catalog{
		Name:          DialectSQLite,
		DriverName:    "sqlite",
		DefaultSchema: "main",
		Placeholder:   PlaceholderQuestion,
		QuoteStart:    `"`,
		QuoteEnd:      `"`,
		TypeMap: map[core.ColumnType]string{
			core.TypeInteger:  "INTEGER",
			core.TypeBigInt:   "INTEGER",
			core.TypeFloat:    "REAL",
			core.TypeDecimal:  "NUMERIC",
			core.TypeString:   "TEXT",
			core.TypeText:     "TEXT",
			core.TypeBoolean:  "INTEGER",
			core.TypeDateTime: "TEXT",
			core.TypeDate:     "TEXT",
			core.TypeJSON:     "TEXT",
			core.TypeBinary:   "BLOB",
			core.TypeUUID:     "TEXT",
		},
		Features: map[string]bool{
			FeatureSavepoints:      true,
			FeatureReturningClause: true,
			FeatureJSONType:        false,
			FeatureForeignKeys:     true,
			FeatureCreateIfExists:  true,
			FeatureLastInsertID:    true,
		},
	}
}
