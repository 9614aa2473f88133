package source

import (
	"context"
	"database/sql"
	"strings"

	"mysql2sqlite/internal/schema"
)

const (
	tablesQuery = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`

	columnsQuery = `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
COLUMN_DEFAULT, EXTRA, CHARACTER_SET_NAME
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`

	indexesQuery = `SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME
FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY INDEX_NAME, SEQ_IN_INDEX`
)

// introspect loads every base table of the configured database into the
// source-term schema model, the same shape the dump parser produces.
func (s *Live) introspect(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, tablesQuery, s.dbName)
	if err != nil {
		return &Error{Op: "list tables", Err: err}
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return &Error{Op: "list tables", Err: err}
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &Error{Op: "list tables", Err: err}
	}

	for _, name := range names {
		tbl, err := s.introspectTable(ctx, name)
		if err != nil {
			return err
		}
		s.tables = append(s.tables, *tbl)
	}
	return nil
}

func (s *Live) introspectTable(ctx context.Context, name string) (*schema.Table, error) {
	tbl := &schema.Table{Name: name}

	rows, err := s.db.QueryContext(ctx, columnsQuery, s.dbName, name)
	if err != nil {
		return nil, &Error{Op: "describe " + name, Err: err}
	}
	for rows.Next() {
		var (
			colName, dataType, colType, nullable string
			def, charset                         sql.NullString
			extra                                string
		)
		if err := rows.Scan(&colName, &dataType, &colType, &nullable, &def, &extra, &charset); err != nil {
			rows.Close()
			return nil, &Error{Op: "describe " + name, Err: err}
		}
		col := schema.Column{
			Name:     colName,
			Nullable: strings.EqualFold(nullable, "YES"),
			AutoInc:  strings.Contains(strings.ToLower(extra), "auto_increment"),
			Type: schema.TypeInfo{
				Base:     strings.ToLower(dataType),
				Raw:      strings.ToLower(colType),
				Unsigned: strings.Contains(strings.ToLower(colType), "unsigned"),
				Charset:  strings.ToLower(charset.String),
			},
		}
		if col.Type.Base == "enum" || col.Type.Base == "set" {
			col.Type.EnumValues = parseEnumLabels(colType)
		}
		if def.Valid {
			d := def.String
			col.Default = &d
		}
		tbl.Columns = append(tbl.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "describe " + name, Err: err}
	}

	if err := s.introspectIndexes(ctx, tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}

// introspectIndexes fills the primary key and secondary indexes from
// information_schema.STATISTICS, which yields one row per index column in
// sequence order.
func (s *Live) introspectIndexes(ctx context.Context, tbl *schema.Table) error {
	rows, err := s.db.QueryContext(ctx, indexesQuery, s.dbName, tbl.Name)
	if err != nil {
		return &Error{Op: "indexes of " + tbl.Name, Err: err}
	}
	defer rows.Close()

	byName := map[string]*schema.Index{}
	var order []string
	for rows.Next() {
		var (
			idxName, colName string
			nonUnique        int
		)
		if err := rows.Scan(&idxName, &nonUnique, &colName); err != nil {
			return &Error{Op: "indexes of " + tbl.Name, Err: err}
		}
		if idxName == "PRIMARY" {
			tbl.PrimaryKey = append(tbl.PrimaryKey, colName)
			continue
		}
		ix, ok := byName[idxName]
		if !ok {
			ix = &schema.Index{Name: idxName, Unique: nonUnique == 0}
			byName[idxName] = ix
			order = append(order, idxName)
		}
		ix.Columns = append(ix.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return &Error{Op: "indexes of " + tbl.Name, Err: err}
	}

	for _, n := range order {
		tbl.Indexes = append(tbl.Indexes, *byName[n])
	}
	return nil
}

// parseEnumLabels extracts the quoted labels from a COLUMN_TYPE such as
// enum('a','b') or set('x','y'). Embedded quotes arrive doubled.
func parseEnumLabels(colType string) []string {
	open := strings.IndexByte(colType, '(')
	end := strings.LastIndexByte(colType, ')')
	if open < 0 || end <= open {
		return nil
	}
	body := colType[open+1 : end]

	var labels []string
	for i := 0; i < len(body); {
		if body[i] != '\'' {
			i++
			continue
		}
		i++
		var sb strings.Builder
		for i < len(body) {
			if body[i] == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					sb.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			sb.WriteByte(body[i])
			i++
		}
		labels = append(labels, sb.String())
	}
	return labels
}
