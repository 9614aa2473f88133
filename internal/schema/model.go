// Package schema defines the table model shared by the dump parser and the
// live-connection introspector, and translates MySQL table definitions into
// their SQLite equivalents.
//
// The model is deliberately positional: row tuples emitted by a source are
// aligned to Table.Columns order, and every downstream stage (coercion,
// batching, insert) relies on that alignment.
package schema

import "strings"

// Kind is the destination storage class a column resolves to. SQLite has no
// rigid column types; these map onto its four storage affinities.
type Kind int

const (
	// KindUnresolved marks a column that has not been through Translate yet.
	// No row may be coerced against an unresolved column.
	KindUnresolved Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

// String returns the SQLite type name used in generated DDL.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "UNRESOLVED"
	}
}

// TypeInfo describes a column's source type as declared by MySQL, either in a
// dump's CREATE TABLE body or in information_schema.COLUMNS.
type TypeInfo struct {
	// Base is the lowercased base type name, e.g. "int", "varchar", "enum".
	Base string

	// Raw is the full type as written, e.g. "int(11) unsigned zerofill".
	// Kept for error messages only.
	Raw string

	// Width is the declared length/display width, 0 when absent.
	Width int

	// Scale is the declared decimal scale, 0 when absent.
	Scale int

	// Unsigned reports an UNSIGNED integer/decimal declaration.
	Unsigned bool

	// Charset is the column-level character set, "" when inherited.
	Charset string

	// EnumValues holds the declared labels for enum/set types, in order.
	EnumValues []string
}

// Column is one column of a source table plus, after Translate, its resolved
// destination kind.
type Column struct {
	Name     string
	Type     TypeInfo
	Nullable bool
	// Default is the raw default expression, nil when none was declared.
	Default *string
	AutoInc bool

	// Dest is resolved exactly once by Translate; KindUnresolved before.
	Dest Kind
}

// Index is a secondary index: name, ordered column list, uniqueness.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is an ordered column list plus key metadata. Instances are built once
// by a source and are immutable afterwards, except that dump parsing may
// append to Indexes as KEY clauses are encountered.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    []Index
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the ordered column name list, ready for an INSERT
// column clause.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// RowIDAlias reports whether the table's primary key is a single
// auto-increment integer column, which SQLite can express natively as an
// INTEGER PRIMARY KEY rowid alias.
func (t *Table) RowIDAlias() (string, bool) {
	if len(t.PrimaryKey) != 1 {
		return "", false
	}
	c := t.Column(t.PrimaryKey[0])
	if c == nil || !c.AutoInc || c.Dest != KindInteger {
		return "", false
	}
	return c.Name, true
}
