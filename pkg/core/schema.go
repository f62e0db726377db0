package core

import "fmt"

// ColumnType is a backend-agnostic semantic column type. Each dialect maps
// these to its native DDL type names.
type ColumnType string

const (
	TypeInteger  ColumnType = "integer"
	TypeBigInt   ColumnType = "bigint"
	TypeFloat    ColumnType = "float"
	TypeDecimal  ColumnType = "decimal"
	TypeString   ColumnType = "string"
	TypeText     ColumnType = "text"
	TypeBoolean  ColumnType = "boolean"
	TypeDateTime ColumnType = "datetime"
	TypeDate     ColumnType = "date"
	TypeJSON     ColumnType = "json"
	TypeBinary   ColumnType = "binary"
	TypeUUID     ColumnType = "uuid"
)

// Valid reports whether t is one of the known semantic types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeInteger, TypeBigInt, TypeFloat, TypeDecimal, TypeString, TypeText,
		TypeBoolean, TypeDateTime, TypeDate, TypeJSON, TypeBinary, TypeUUID:
		return true
	}
	return false
}

// ColumnDef describes one column of a table.
type ColumnDef struct {
	Name       string
	Type       ColumnType
	Length     int // optional length for string/decimal precision
	Nullable   bool
	Default    any // nil means no default; encoded as a literal by the dialect
	PrimaryKey bool
	Position   int
}

// IndexDef describes a secondary index.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKeyDef describes a foreign key constraint.
type ForeignKeyDef struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string // "", "CASCADE", "SET NULL", "RESTRICT"
}

// TableSchema describes a table: ordered columns plus indexes and foreign keys.
type TableSchema struct {
	Name        string
	Columns     []ColumnDef
	Indexes     []IndexDef
	ForeignKeys []ForeignKeyDef
}

// Column returns the column definition with the given name, or nil.
func (s *TableSchema) Column(name string) *ColumnDef {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// PrimaryKey returns the names of the primary-key columns in declared order.
func (s *TableSchema) PrimaryKey() []string {
	var pk []string
	for _, c := range s.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Validate checks structural consistency before DDL generation.
func (s *TableSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("table schema has no name")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %q has an unnamed column", s.Name)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("table %q column %q has unknown type %q", s.Name, c.Name, c.Type)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %q has duplicate column %q", s.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, fk := range s.ForeignKeys {
		for _, col := range fk.Columns {
			if s.Column(col) == nil {
				return fmt.Errorf("table %q foreign key %q references unknown local column %q", s.Name, fk.Name, col)
			}
		}
		if fk.RefTable == "" {
			return fmt.Errorf("table %q foreign key %q has no referenced table", s.Name, fk.Name)
		}
	}
	for _, idx := range s.Indexes {
		for _, col := range idx.Columns {
			if s.Column(col) == nil {
				return fmt.Errorf("table %q index %q references unknown column %q", s.Name, idx.Name, col)
			}
		}
	}
	return nil
}
