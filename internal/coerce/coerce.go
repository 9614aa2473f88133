// Package coerce converts parsed dump literals into destination-typed values
// ready to bind as SQLite statement arguments. Conversions are strict: a value
// that cannot be represented faithfully in the destination type produces a
// ValueError rather than a truncated or mangled write.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"mysql2sqlite/internal/dump"
	"mysql2sqlite/internal/schema"
)

// ValueKind discriminates the destination value union.
type ValueKind int

const (
	Null ValueKind = iota
	Integer
	Real
	Text
	Blob
)

// Value is a single destination-typed scalar.
type Value struct {
	Kind    ValueKind
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

// Bind returns the value in the form database/sql expects as a statement
// argument.
func (v Value) Bind() any {
	switch v.Kind {
	case Integer:
		return v.Integer
	case Real:
		return v.Real
	case Text:
		return v.Text
	case Blob:
		return v.Blob
	default:
		return nil
	}
}

// ValueError reports a value that could not be represented in the column's
// destination type. It is row-fatal: the row is skipped, the table continues.
type ValueError struct {
	Column string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("coerce: column %s: %s", e.Column, e.Reason)
}

// Options tunes coercion behavior.
type Options struct {
	// ValidateJSON checks well-formedness of values bound for columns whose
	// source type is json. Malformed documents become ValueErrors.
	ValidateJSON bool
}

func valueErr(col *schema.Column, format string, args ...any) (Value, error) {
	return Value{}, &ValueError{Column: col.Name, Reason: fmt.Sprintf(format, args...)}
}

// Coerce converts one literal for one column. The column's Dest kind must
// already be resolved by schema.Translate.
func Coerce(lit dump.Literal, col *schema.Column, opts Options) (Value, error) {
	if lit.Kind == dump.LitNull {
		if !col.Nullable && !col.AutoInc {
			return valueErr(col, "NULL in NOT NULL column")
		}
		return Value{Kind: Null}, nil
	}
	if isZeroDate(lit, col) {
		// MySQL's zero dates have no calendar meaning; store NULL instead of
		// an invalid timestamp string.
		return Value{Kind: Null}, nil
	}

	switch col.Dest {
	case schema.KindInteger:
		return coerceInteger(lit, col)
	case schema.KindReal:
		return coerceReal(lit, col)
	case schema.KindText:
		return coerceText(lit, col, opts)
	case schema.KindBlob:
		return coerceBlob(lit, col)
	default:
		return valueErr(col, "unresolved destination type")
	}
}

func coerceInteger(lit dump.Literal, col *schema.Column) (Value, error) {
	switch lit.Kind {
	case dump.LitNumber:
		n, err := lit.Number.Int64()
		if err != nil {
			return valueErr(col, "%v", err)
		}
		return Value{Kind: Integer, Integer: n}, nil
	case dump.LitString:
		n, err := dump.ParseNumber(strings.TrimSpace(string(lit.Bytes)))
		if err != nil {
			return valueErr(col, "not a number: %q", lit.Bytes)
		}
		v, err := n.Int64()
		if err != nil {
			return valueErr(col, "%v", err)
		}
		return Value{Kind: Integer, Integer: v}, nil
	case dump.LitHex:
		// Hex in integer context is a big-endian unsigned value.
		if len(lit.Bytes) > 8 {
			return valueErr(col, "hex literal wider than 64 bits")
		}
		var u uint64
		for _, b := range lit.Bytes {
			u = u<<8 | uint64(b)
		}
		if u > math.MaxInt64 {
			return valueErr(col, "integer %d out of int64 range", u)
		}
		return Value{Kind: Integer, Integer: int64(u)}, nil
	default:
		return valueErr(col, "cannot store %v in integer column", lit.Kind)
	}
}

func coerceReal(lit dump.Literal, col *schema.Column) (Value, error) {
	switch lit.Kind {
	case dump.LitNumber:
		f, err := lit.Number.Float64()
		if err != nil {
			return valueErr(col, "%v", err)
		}
		return Value{Kind: Real, Real: f}, nil
	case dump.LitString:
		n, err := dump.ParseNumber(strings.TrimSpace(string(lit.Bytes)))
		if err != nil {
			return valueErr(col, "not a number: %q", lit.Bytes)
		}
		f, err := n.Float64()
		if err != nil {
			return valueErr(col, "%v", err)
		}
		return Value{Kind: Real, Real: f}, nil
	default:
		return valueErr(col, "cannot store %v in real column", lit.Kind)
	}
}

func coerceText(lit dump.Literal, col *schema.Column, opts Options) (Value, error) {
	switch lit.Kind {
	case dump.LitString:
		s, err := decodeText(lit.Bytes, col)
		if err != nil {
			return Value{}, err
		}
		if col.Type.Base == "json" && opts.ValidateJSON {
			if !json.Valid([]byte(s)) {
				return valueErr(col, "malformed JSON document")
			}
		}
		return Value{Kind: Text, Text: s}, nil
	case dump.LitNumber:
		return Value{Kind: Text, Text: lit.Number.String()}, nil
	case dump.LitHex:
		s, err := decodeText(lit.Bytes, col)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Text, Text: s}, nil
	default:
		return valueErr(col, "cannot store %v in text column", lit.Kind)
	}
}

func coerceBlob(lit dump.Literal, col *schema.Column) (Value, error) {
	switch lit.Kind {
	case dump.LitString, dump.LitHex:
		b := make([]byte, len(lit.Bytes))
		copy(b, lit.Bytes)
		return Value{Kind: Blob, Blob: b}, nil
	case dump.LitNumber:
		return Value{Kind: Blob, Blob: []byte(lit.Number.String())}, nil
	default:
		return valueErr(col, "cannot store %v in blob column", lit.Kind)
	}
}

// decodeText turns raw dump bytes into a UTF-8 string, re-encoding from the
// column's declared charset when it is a known single-byte encoding. Bytes
// that are valid UTF-8 pass through untouched regardless of declaration,
// since mysqldump emits utf8 by default.
func decodeText(b []byte, col *schema.Column) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	if cm := legacyCharmap(col.Type.Charset); cm != nil {
		s, err := cm.NewDecoder().Bytes(b)
		if err != nil {
			return "", &ValueError{Column: col.Name, Reason: fmt.Sprintf("charset %s: %v", col.Type.Charset, err)}
		}
		return string(s), nil
	}
	return "", &ValueError{Column: col.Name, Reason: "invalid UTF-8 in text value"}
}

func legacyCharmap(charset string) *charmap.Charmap {
	switch charset {
	case "latin1":
		// MySQL latin1 is cp1252, not ISO 8859-1.
		return charmap.Windows1252
	case "latin2":
		return charmap.ISO8859_2
	case "cp1250":
		return charmap.Windows1250
	case "cp1251":
		return charmap.Windows1251
	case "cp1256":
		return charmap.Windows1256
	case "greek":
		return charmap.ISO8859_7
	case "hebrew":
		return charmap.ISO8859_8
	case "ascii":
		return charmap.Windows1252
	default:
		return nil
	}
}

// isZeroDate reports whether lit is a MySQL zero date or datetime bound for a
// temporal column.
func isZeroDate(lit dump.Literal, col *schema.Column) bool {
	switch col.Type.Base {
	case "date", "datetime", "timestamp":
	default:
		return false
	}
	if lit.Kind != dump.LitString {
		return false
	}
	s := string(lit.Bytes)
	return s == "0000-00-00" || s == "0000-00-00 00:00:00" ||
		strings.HasPrefix(s, "0000-00-00 00:00:00.")
}

// Row coerces a full positional row against the table's column list.
func Row(vals []dump.Literal, tbl *schema.Table, opts Options) ([]Value, error) {
	if len(vals) != len(tbl.Columns) {
		return nil, &ValueError{
			Column: tbl.Name,
			Reason: fmt.Sprintf("row has %d values, table has %d columns", len(vals), len(tbl.Columns)),
		}
	}
	out := make([]Value, len(vals))
	for i := range vals {
		v, err := Coerce(vals[i], &tbl.Columns[i], opts)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// BindRow returns the coerced row as database/sql arguments.
func BindRow(row []Value) []any {
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v.Bind()
	}
	return args
}
