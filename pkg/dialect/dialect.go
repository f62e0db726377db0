// Package dialect holds the static per-backend catalog: placeholder style,
// identifier quoting, semantic type mapping, literal encoding, and feature
// flags. Catalogs are pure data — translation and execution behavior live in
// pkg/translate and pkg/query.
package dialect

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dataforge-labs/dbridge/pkg/core"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
)

// Feature names understood by Catalog.Supports.
const (
	FeatureSavepoints      = "savepoints"
	FeatureReturningClause = "returning_clause"
	FeatureJSONType        = "json_type"
	FeatureLastInsertID    = "last_insert_id"
	FeatureForeignKeys     = "foreign_keys"
	FeatureCreateIfExists  = "create_if_not_exists"
)

// Catalog is the immutable static configuration for one SQL dialect.
type Catalog struct {
	// Name is the dialect identifier ("postgresql", "mysql", "sqlite").
	Name string

	// DriverName is the database/sql driver to open ("pgx", "mysql", "sqlite").
	DriverName string

	// DefaultSchema is the schema used for unqualified table names.
	DefaultSchema string

	// DefaultPort is the server port when the connection string omits one.
	// Zero for embedded databases.
	DefaultPort int

	// Placeholder defines parameter formatting.
	Placeholder PlaceholderStyle

	// QuoteStart and QuoteEnd wrap identifiers (`"` for standard SQL,
	// "`" for MySQL).
	QuoteStart string
	QuoteEnd   string

	// TypeMap maps semantic column types to native DDL type names.
	TypeMap map[core.ColumnType]string

	// Features is the capability set exposed via Supports.
	Features map[string]bool
}

// Supports reports whether the dialect has the named capability. Unknown
// names report false.
func (c *Catalog) Supports(feature string) bool {
	return c.Features[feature]
}

// FormatPlaceholder returns the placeholder for the n-th parameter (1-based).
func (c *Catalog) FormatPlaceholder(n int) string {
	if c.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdentifier wraps name in the dialect's identifier quotes, escaping any
// embedded quote characters by doubling.
func (c *Catalog) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, c.QuoteEnd, c.QuoteEnd+c.QuoteEnd)
	return c.QuoteStart + escaped + c.QuoteEnd
}

// NativeType resolves a semantic column type to its DDL type name, applying
// the optional length for sized types.
func (c *Catalog) NativeType(t core.ColumnType, length int) (string, error) {
	native, ok := c.TypeMap[t]
	if !ok {
		return "", fmt.Errorf("dialect %s has no mapping for type %q", c.Name, t)
	}
	if length > 0 && strings.Contains(native, "%d") {
		return fmt.Sprintf(native, length), nil
	}
	// Sized template with no explicit length: fall back to a sensible default.
	if strings.Contains(native, "%d") {
		return fmt.Sprintf(native, 255), nil
	}
	return native, nil
}

// EncodeLiteral renders v as a SQL literal for DDL default clauses. Query
// parameters never pass through here; they are always bound.
func (c *Catalog) EncodeLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		return c.encodeBool(x), nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05.999999") + "'", nil
	case []byte:
		return c.encodeBinary(x), nil
	default:
		return "", fmt.Errorf("dialect %s cannot encode literal of type %T", c.Name, v)
	}
}

func (c *Catalog) encodeBool(b bool) string {
	// SQLite stores booleans as integers; the server dialects have a native
	// boolean literal.
	if c.Name == DialectSQLite {
		if b {
			return "1"
		}
		return "0"
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (c *Catalog) encodeBinary(b []byte) string {
	h := hex.EncodeToString(b)
	switch c.Name {
	case DialectPostgres:
		return `'\x` + h + "'"
	default:
		return "X'" + h + "'"
	}
}
