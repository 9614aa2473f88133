package schema

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// CreateTableSQL renders the SQLite CREATE TABLE statement for a translated
// table. The statement has the form:
//
//	CREATE TABLE "t" (
//	  "id" INTEGER PRIMARY KEY,
//	  "name" TEXT NOT NULL,
//	  PRIMARY KEY ("a", "b")
//	);
//
// A single-column auto-increment integer key is rendered inline as INTEGER
// PRIMARY KEY so SQLite aliases it to the rowid; any other primary key becomes
// a table constraint. Calling this on an untranslated table is a programming
// error and returns an error rather than emitting UNRESOLVED columns.
func CreateTableSQL(t Table) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: table %s has no columns", t.Name)
	}

	rowid, hasRowID := t.RowIDAlias()

	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if c.Dest == KindUnresolved {
			return "", fmt.Errorf("ddl: table %s column %s has no resolved type", t.Name, c.Name)
		}

		var sb strings.Builder
		sb.WriteString(quoteIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.Dest.String())

		if hasRowID && strings.EqualFold(c.Name, rowid) {
			sb.WriteString(" PRIMARY KEY")
		} else if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}

		if def := defaultExpr(c); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())
	}

	if !hasRowID && len(t.PrimaryKey) > 0 {
		pks := make([]string, len(t.PrimaryKey))
		for i, pk := range t.PrimaryKey {
			pks[i] = quoteIdent(pk)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		quoteIdent(t.Name),
		strings.Join(cols, ",\n  "),
	), nil
}

// NameSet tracks index names already claimed in the destination database.
// SQLite index names are database-global while MySQL scopes them per table,
// so two tables may legally carry a KEY with the same name in the source.
type NameSet map[string]struct{}

// Claim returns name if it is acceptable and free, or a regenerated
// deterministic replacement otherwise, and marks the result as taken.
// Names are regenerated when empty, reserved (sqlite_ prefix) or colliding:
// the replacement is derived from table, name and column list via xxh3 so
// repeated runs produce identical schemas.
func (s NameSet) Claim(table, name string, columns []string) string {
	candidate := name
	if candidate == "" || strings.HasPrefix(strings.ToLower(candidate), "sqlite_") {
		candidate = regenName(table, name, columns)
	}
	if _, taken := s[candidate]; taken {
		candidate = regenName(table, name, columns)
	}
	// A regenerated name can still collide if the same table+columns appear
	// twice; suffix until free.
	base := candidate
	for i := 2; ; i++ {
		if _, taken := s[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	s[candidate] = struct{}{}
	return candidate
}

func regenName(table, name string, columns []string) string {
	h := xxh3.HashString(table + "\x00" + name + "\x00" + strings.Join(columns, ","))
	return fmt.Sprintf("idx_%s_%08x", table, uint32(h))
}

// IndexSQL renders CREATE INDEX statements for the table's secondary indexes,
// preserving column order and uniqueness. The NameSet carries claimed names
// across tables for one destination database.
func IndexSQL(t Table, names NameSet) ([]string, error) {
	if names == nil {
		names = NameSet{}
	}
	stmts := make([]string, 0, len(t.Indexes))
	for _, ix := range t.Indexes {
		if len(ix.Columns) == 0 {
			return nil, fmt.Errorf("ddl: table %s index %s has no columns", t.Name, ix.Name)
		}
		cols := make([]string, len(ix.Columns))
		for i, c := range ix.Columns {
			cols[i] = quoteIdent(c)
		}
		unique := ""
		if ix.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE %sINDEX %s ON %s (%s);",
			unique,
			quoteIdent(names.Claim(t.Name, ix.Name, ix.Columns)),
			quoteIdent(t.Name),
			strings.Join(cols, ", "),
		))
	}
	return stmts, nil
}

// InsertSQL renders the parameterized INSERT statement for a table, with one
// placeholder per column in declaration order.
func InsertSQL(t Table) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
	)
}

// defaultExpr renders a column default for SQLite, or "" when it should be
// omitted. MySQL-only default expressions (CURRENT_TIMESTAMP variants on
// update, expressions we cannot carry) are dropped rather than guessed.
func defaultExpr(c Column) string {
	if c.Default == nil {
		return ""
	}
	d := strings.TrimSpace(*c.Default)
	switch {
	case d == "":
		return ""
	case strings.EqualFold(d, "NULL"):
		return "NULL"
	case strings.EqualFold(d, "CURRENT_TIMESTAMP"):
		return "CURRENT_TIMESTAMP"
	}
	switch c.Dest {
	case KindInteger, KindReal:
		return d
	case KindText:
		return quoteLiteral(d)
	default:
		return ""
	}
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
