// Package translate converts generic parameterized statements into
// backend-native SQL. Templates use :name placeholders for parameters and
// {name} markers for identifiers; Translate rewrites both per the dialect
// catalog and returns the ordered argument list.
//
// Translate is a pure function: identical inputs always produce identical
// native SQL and parameter ordering.
package translate

import (
	"strings"
	"time"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
)

// Param is one named, typed statement parameter. Type may be empty for
// untyped passthrough; when set, the value is validated against it before
// translation.
type Param struct {
	Name  string
	Type  core.ColumnType
	Value any
}

// Statement is an immutable translated statement ready for execution.
type Statement struct {
	Dialect    string
	NativeSQL  string
	ParamCount int
}

// Translate rewrites template into cat's native SQL and returns the bound
// arguments in first-seen placeholder order.
func Translate(cat *dialect.Catalog, template string, params []Param) (Statement, []any, error) {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		if p.Name == "" {
			return Statement{}, nil, &dberr.TranslationError{Fragment: "", Msg: "parameter with empty name"}
		}
		if _, dup := byName[p.Name]; dup {
			return Statement{}, nil, &dberr.TranslationError{Fragment: ":" + p.Name, Msg: "duplicate parameter"}
		}
		if err := checkValue(p); err != nil {
			return Statement{}, nil, err
		}
		byName[p.Name] = p
	}

	var (
		out      strings.Builder
		args     []any
		ordinals = make(map[string]int) // name -> 1-based ordinal, first-seen order
		seen     = make(map[string]bool)
	)

	i := 0
	for i < len(template) {
		ch := template[i]
		switch {
		case ch == '\'':
			// String literal: copy verbatim through the closing quote,
			// honoring '' escapes.
			end := scanString(template, i)
			if end < 0 {
				return Statement{}, nil, &dberr.TranslationError{Fragment: template[i:], Msg: "unterminated string literal"}
			}
			out.WriteString(template[i:end])
			i = end

		case ch == ':' && i+1 < len(template) && template[i+1] == ':':
			// Postgres-style cast, not a placeholder.
			out.WriteString("::")
			i += 2

		case ch == ':' && i+1 < len(template) && isNameByte(template[i+1]):
			j := i + 1
			for j < len(template) && isNameByte(template[j]) {
				j++
			}
			name := template[i+1 : j]
			p, ok := byName[name]
			if !ok {
				return Statement{}, nil, &dberr.TranslationError{Fragment: ":" + name, Msg: "no value supplied for placeholder"}
			}
			n, bound := ordinals[name]
			if !bound {
				n = len(ordinals) + 1
				ordinals[name] = n
			}
			if cat.Placeholder == dialect.PlaceholderDollar {
				// Repeated references reuse the same ordinal.
				if !bound {
					args = append(args, p.Value)
				}
				out.WriteString(cat.FormatPlaceholder(n))
			} else {
				// Sequential style repeats the value per occurrence.
				args = append(args, p.Value)
				out.WriteString(cat.FormatPlaceholder(n))
			}
			seen[name] = true
			i = j

		case ch == '{':
			j := strings.IndexByte(template[i:], '}')
			if j < 0 {
				return Statement{}, nil, &dberr.TranslationError{Fragment: template[i:], Msg: "unterminated identifier marker"}
			}
			ident := template[i+1 : i+j]
			if ident == "" || !validIdentifier(ident) {
				return Statement{}, nil, &dberr.TranslationError{Fragment: template[i : i+j+1], Msg: "invalid identifier"}
			}
			out.WriteString(quoteQualified(cat, ident))
			i += j + 1

		default:
			out.WriteByte(ch)
			i++
		}
	}

	for name := range byName {
		if !seen[name] {
			return Statement{}, nil, &dberr.TranslationError{Fragment: ":" + name, Msg: "parameter not referenced by template"}
		}
	}

	return Statement{
		Dialect:    cat.Name,
		NativeSQL:  out.String(),
		ParamCount: len(ordinals),
	}, args, nil
}

// scanString returns the index one past the closing quote of the string
// literal starting at i, or -1 if unterminated.
func scanString(s string, i int) int {
	j := i + 1
	for j < len(s) {
		if s[j] == '\'' {
			if j+1 < len(s) && s[j+1] == '\'' {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return -1
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func validIdentifier(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for k := 0; k < len(part); k++ {
			if !isNameByte(part[k]) {
				return false
			}
		}
	}
	return true
}

// quoteQualified quotes each dotted segment separately so schema-qualified
// names come out as "schema"."table".
func quoteQualified(cat *dialect.Catalog, ident string) string {
	parts := strings.Split(ident, ".")
	for k, p := range parts {
		parts[k] = cat.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// checkValue validates a parameter's Go value against its declared semantic
// type. A bool supplied for an integer column is rejected, never coerced.
func checkValue(p Param) error {
	if p.Type == "" || p.Value == nil {
		return nil
	}
	if !p.Type.Valid() {
		return &dberr.TranslationError{Fragment: ":" + p.Name, Msg: "unknown declared type " + string(p.Type)}
	}
	ok := false
	switch p.Type {
	case core.TypeInteger, core.TypeBigInt:
		switch p.Value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			ok = true
		}
	case core.TypeFloat, core.TypeDecimal:
		switch p.Value.(type) {
		case float32, float64, int, int32, int64:
			ok = true
		}
	case core.TypeBoolean:
		_, ok = p.Value.(bool)
	case core.TypeString, core.TypeText, core.TypeUUID:
		_, ok = p.Value.(string)
	case core.TypeJSON:
		switch p.Value.(type) {
		case string, []byte:
			ok = true
		}
	case core.TypeBinary:
		_, ok = p.Value.([]byte)
	case core.TypeDateTime, core.TypeDate:
		switch p.Value.(type) {
		case time.Time, string:
			ok = true
		}
	}
	if !ok {
		return &dberr.QueryError{
			Kind: dberr.QueryTypeMismatch,
			Err:  &dberr.TranslationError{Fragment: ":" + p.Name, Msg: typeMismatchMsg(p)},
		}
	}
	return nil
}

func typeMismatchMsg(p Param) string {
	return "value of type " + typeName(p.Value) + " is not valid for declared column type " + string(p.Type)
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case string:
		return "string"
	case []byte:
		return "[]byte"
	case time.Time:
		return "time.Time"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "float"
	default:
		return "unsupported"
	}
}
