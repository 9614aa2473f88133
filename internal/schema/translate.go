package schema

import (
	"fmt"
	"strings"
)

// TypeError reports a source type the translator cannot map. It is
// table-fatal: the orchestrator records the failure and moves on to the next
// table.
type TypeError struct {
	Table  string
	Column string
	Type   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("schema: table %s column %s: unsupported type %q", e.Table, e.Column, e.Type)
}

// MapKind maps a MySQL base type onto a SQLite storage class. The mapping is
// a fixed table, no heuristics:
//
//	integer family (any width/signedness) -> INTEGER
//	decimal/float family                  -> REAL
//	character/text family                 -> TEXT
//	binary/blob family                    -> BLOB
//	date/time family                      -> TEXT (ISO-8601)
//	enum/set                              -> TEXT (the label)
//	json                                  -> TEXT
//
// Unknown types return KindUnresolved and false; callers turn that into a
// TypeError naming the column.
func MapKind(t TypeInfo) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(t.Base)) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"year", "bit", "bool", "boolean", "serial":
		return KindInteger, true
	case "decimal", "numeric", "dec", "fixed", "float", "double", "real":
		return KindReal, true
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext":
		return KindText, true
	case "enum", "set":
		return KindText, true
	case "date", "datetime", "timestamp", "time":
		return KindText, true
	case "json":
		return KindText, true
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		return KindBlob, true
	default:
		return KindUnresolved, false
	}
}

// Translate resolves every column's destination kind and validates key
// metadata. It returns a copy; the input is not mutated.
//
// Rules enforced here rather than at DDL time, so that a broken table fails
// before any row for it is processed:
//
//   - every column maps to exactly one destination kind
//   - primary-key columns must exist in the column list
//   - auto-increment on a non-integer column is a TypeError; SQLite has no
//     analogue for MySQL's AUTO_INCREMENT on float columns
func Translate(src Table) (Table, error) {
	out := Table{
		Name:       src.Name,
		Columns:    make([]Column, len(src.Columns)),
		PrimaryKey: append([]string(nil), src.PrimaryKey...),
		Indexes:    make([]Index, len(src.Indexes)),
	}
	copy(out.Indexes, src.Indexes)

	for i, c := range src.Columns {
		kind, ok := MapKind(c.Type)
		if !ok {
			return Table{}, &TypeError{Table: src.Name, Column: c.Name, Type: c.Type.Raw}
		}
		if c.AutoInc && kind != KindInteger {
			return Table{}, &TypeError{Table: src.Name, Column: c.Name, Type: c.Type.Raw + " auto_increment"}
		}
		c.Dest = kind
		out.Columns[i] = c
	}

	for _, pk := range out.PrimaryKey {
		if out.Column(pk) == nil {
			return Table{}, &TypeError{Table: src.Name, Column: pk, Type: "primary key references unknown column"}
		}
	}
	for _, ix := range out.Indexes {
		for _, col := range ix.Columns {
			if out.Column(col) == nil {
				return Table{}, &TypeError{Table: src.Name, Column: col, Type: fmt.Sprintf("index %s references unknown column", ix.Name)}
			}
		}
	}

	return out, nil
}
