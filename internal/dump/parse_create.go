package dump

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"mysql2sqlite/internal/schema"
)

// parseCreateTable parses the remainder of a CREATE TABLE statement, the
// "CREATE TABLE" keywords having been consumed. It builds a source-term
// schema.Table; destination types are resolved later by schema.Translate.
func (r *Reader) parseCreateTable(off int64) (*schema.Table, error) {
	fail := func(table, format string, args ...any) (*schema.Table, error) {
		r.lx.skipStatement(nil)
		return nil, &ParseError{Offset: off, Table: table, Msg: fmt.Sprintf(format, args...)}
	}

	name, err := r.lx.ident()
	if err != nil {
		return fail("", "expected table name after CREATE TABLE")
	}
	if strings.EqualFold(name, "IF") {
		// IF NOT EXISTS prefix
		if w, _ := r.lx.word(); !strings.EqualFold(w, "NOT") {
			return fail("", "malformed IF NOT EXISTS")
		}
		if w, _ := r.lx.word(); !strings.EqualFold(w, "EXISTS") {
			return fail("", "malformed IF NOT EXISTS")
		}
		if name, err = r.lx.ident(); err != nil {
			return fail("", "expected table name after CREATE TABLE")
		}
	}

	tbl := &schema.Table{Name: name}

	if err := r.expectByte('('); err != nil {
		return fail(name, "expected ( after table name")
	}

	for {
		done, err := r.tableEntry(tbl)
		if err != nil {
			return fail(name, "%v", err)
		}
		if done {
			break
		}
	}

	// Table options (ENGINE=, AUTO_INCREMENT=, CHARSET=, ...) up to ';'.
	if err := r.lx.skipStatement(nil); err != nil && err != io.EOF {
		return nil, fmt.Errorf("dump: read: %w", err)
	}
	return tbl, nil
}

func (r *Reader) expectByte(want byte) error {
	if err := r.lx.skipSpace(); err != nil {
		return err
	}
	b, err := r.lx.readByte()
	if err != nil {
		return err
	}
	if b != want {
		r.lx.unreadByte()
		return fmt.Errorf("expected %q, found %q", want, b)
	}
	return nil
}

// tableEntry parses one comma-separated entry of the CREATE TABLE body:
// a column definition, a key clause, or a constraint. Returns done=true once
// the body's closing paren has been consumed.
func (r *Reader) tableEntry(tbl *schema.Table) (bool, error) {
	if err := r.lx.skipSpace(); err != nil {
		return false, fmt.Errorf("truncated CREATE TABLE body")
	}
	b, ok := r.lx.peekByte()
	if !ok {
		return false, fmt.Errorf("truncated CREATE TABLE body")
	}

	if b == '`' || b == '"' {
		return r.columnEntry(tbl)
	}

	// Bare word: either a key/constraint keyword or an unquoted column name.
	w, err := r.lx.word()
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToUpper(w) {
	case "PRIMARY":
		if kw, _ := r.lx.word(); !strings.EqualFold(kw, "KEY") {
			return false, fmt.Errorf("expected KEY after PRIMARY")
		}
		cols, err := r.keyColumns()
		if err != nil {
			return false, err
		}
		tbl.PrimaryKey = cols
		return r.entrySep()

	case "UNIQUE", "KEY", "INDEX", "FULLTEXT", "SPATIAL":
		unique := strings.EqualFold(w, "UNIQUE")
		emit := unique || strings.EqualFold(w, "KEY") || strings.EqualFold(w, "INDEX")
		name, cols, err := r.keyClause(w)
		if err != nil {
			return false, err
		}
		if emit {
			tbl.Indexes = append(tbl.Indexes, schema.Index{Name: name, Columns: cols, Unique: unique})
		}
		// FULLTEXT/SPATIAL have no SQLite analogue; dropped per the
		// structural-fidelity contract.
		return r.entrySep()

	case "CONSTRAINT", "FOREIGN", "CHECK":
		// FK and CHECK constraints are recognized and skipped; FK enforcement
		// is disabled on the destination during load anyway.
		return r.skipEntry()

	default:
		if w == "" {
			return false, fmt.Errorf("malformed CREATE TABLE entry")
		}
		return r.columnEntryNamed(tbl, w)
	}
}

// entrySep consumes the "," between entries or the body-closing ")".
func (r *Reader) entrySep() (bool, error) {
	if err := r.lx.skipSpace(); err != nil {
		return false, fmt.Errorf("truncated CREATE TABLE body")
	}
	b, err := r.lx.readByte()
	if err != nil {
		return false, fmt.Errorf("truncated CREATE TABLE body")
	}
	switch b {
	case ',':
		return false, nil
	case ')':
		return true, nil
	default:
		return false, fmt.Errorf("unexpected byte %q in CREATE TABLE body", b)
	}
}

// skipEntry consumes the rest of an entry it does not model, honoring nested
// parens and string literals.
func (r *Reader) skipEntry() (bool, error) {
	depth := 0
	for {
		b, err := r.lx.readByte()
		if err != nil {
			return false, fmt.Errorf("truncated CREATE TABLE body")
		}
		switch b {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return true, nil
			}
			depth--
		case ',':
			if depth == 0 {
				return false, nil
			}
		case '\'', '"', '`':
			if b == '`' {
				_, err = r.lx.quotedIdent(b)
			} else {
				_, err = r.lx.stringLit(b)
			}
			if err != nil {
				return false, err
			}
		}
	}
}

func (r *Reader) columnEntry(tbl *schema.Table) (bool, error) {
	name, err := r.lx.ident()
	if err != nil {
		return false, fmt.Errorf("bad column name: %v", err)
	}
	return r.columnEntryNamed(tbl, name)
}

// columnEntryNamed parses a column definition whose name is already consumed.
func (r *Reader) columnEntryNamed(tbl *schema.Table, name string) (bool, error) {
	col := schema.Column{Name: name, Nullable: true}

	base, err := r.lx.word()
	if err != nil && err != io.EOF {
		return false, err
	}
	if base == "" {
		return false, fmt.Errorf("column %s: missing type", name)
	}
	col.Type.Base = strings.ToLower(base)
	col.Type.Raw = col.Type.Base

	// Optional (width[,scale]) or enum/set value list.
	if err := r.lx.skipSpace(); err != nil {
		return false, fmt.Errorf("truncated column definition for %s", name)
	}
	if b, ok := r.lx.peekByte(); ok && b == '(' {
		r.lx.readByte()
		if col.Type.Base == "enum" || col.Type.Base == "set" {
			vals, err := r.enumValues()
			if err != nil {
				return false, fmt.Errorf("column %s: %v", name, err)
			}
			col.Type.EnumValues = vals
			col.Type.Raw += "(...)"
		} else {
			w, s, err := r.typeDims()
			if err != nil {
				return false, fmt.Errorf("column %s: %v", name, err)
			}
			col.Type.Width, col.Type.Scale = w, s
			col.Type.Raw += fmt.Sprintf("(%d,%d)", w, s)
		}
	}

	done, err := r.columnAttrs(tbl, &col)
	if err != nil {
		return false, fmt.Errorf("column %s: %v", name, err)
	}
	tbl.Columns = append(tbl.Columns, col)
	return done, nil
}

// columnAttrs parses the attribute tail of a column definition through the
// entry separator.
func (r *Reader) columnAttrs(tbl *schema.Table, col *schema.Column) (bool, error) {
	carried := ""
	for {
		var w string
		if carried != "" {
			w, carried = carried, ""
		} else {
			if err := r.lx.skipSpace(); err != nil {
				return false, fmt.Errorf("truncated column definition")
			}
			b, ok := r.lx.peekByte()
			if !ok {
				return false, fmt.Errorf("truncated column definition")
			}
			if b == ',' || b == ')' {
				r.lx.readByte()
				return b == ')', nil
			}
			if !isWordByte(b) {
				return false, fmt.Errorf("unexpected byte %q", b)
			}
			var err error
			if w, err = r.lx.word(); err != nil && err != io.EOF {
				return false, err
			}
		}
		switch strings.ToUpper(w) {
		case "UNSIGNED":
			col.Type.Unsigned = true
			col.Type.Raw += " unsigned"
		case "ZEROFILL", "BINARY":
			// display-only modifiers
		case "CHARACTER":
			if kw, _ := r.lx.word(); !strings.EqualFold(kw, "SET") {
				return false, fmt.Errorf("malformed CHARACTER SET")
			}
			cs, err := r.lx.ident()
			if err != nil {
				return false, err
			}
			col.Type.Charset = strings.ToLower(cs)
		case "CHARSET":
			cs, err := r.lx.ident()
			if err != nil {
				return false, err
			}
			col.Type.Charset = strings.ToLower(cs)
		case "COLLATE":
			if _, err := r.lx.ident(); err != nil {
				return false, err
			}
		case "NOT":
			if kw, _ := r.lx.word(); !strings.EqualFold(kw, "NULL") {
				return false, fmt.Errorf("expected NULL after NOT")
			}
			col.Nullable = false
		case "NULL":
			col.Nullable = true
		case "DEFAULT":
			def, err := r.defaultValue()
			if err != nil {
				return false, err
			}
			col.Default = &def
		case "ON":
			// ON UPDATE CURRENT_TIMESTAMP[(n)] has no SQLite analogue, dropped.
			if kw, _ := r.lx.word(); !strings.EqualFold(kw, "UPDATE") {
				return false, fmt.Errorf("malformed ON UPDATE")
			}
			if _, err := r.defaultValue(); err != nil {
				return false, err
			}
		case "AUTO_INCREMENT":
			col.AutoInc = true
		case "PRIMARY":
			if kw, _ := r.lx.word(); !strings.EqualFold(kw, "KEY") {
				return false, fmt.Errorf("expected KEY after PRIMARY")
			}
			tbl.PrimaryKey = []string{col.Name}
		case "UNIQUE":
			tbl.Indexes = append(tbl.Indexes, schema.Index{Columns: []string{col.Name}, Unique: true})
			if err := r.lx.skipSpace(); err == nil {
				if nb, ok := r.lx.peekByte(); ok && isWordByte(nb) {
					kw, _ := r.lx.word()
					if !strings.EqualFold(kw, "KEY") {
						carried = kw
					}
				}
			}
		case "COMMENT":
			if err := r.expectQuotedSkip(); err != nil {
				return false, err
			}
		case "GENERATED", "AS", "VIRTUAL", "STORED":
			// Generated columns have no faithful SQLite mapping here; surface
			// it as an unsupported type so the table fails loudly instead of
			// silently storing stale values.
			col.Type.Raw += " generated"
			col.Type.Base = "generated"
			return r.skipEntry()
		case "REFERENCES":
			return r.skipEntry()
		default:
			return false, fmt.Errorf("unsupported column attribute %q", w)
		}
	}
}

func (r *Reader) expectQuotedSkip() error {
	if err := r.lx.skipSpace(); err != nil {
		return err
	}
	b, err := r.lx.readByte()
	if err != nil {
		return err
	}
	if b != '\'' && b != '"' {
		return fmt.Errorf("expected string literal")
	}
	_, err = r.lx.stringLit(b)
	return err
}

// defaultValue captures a DEFAULT (or ON UPDATE) expression as raw text:
// a literal, NULL, or a bare function like CURRENT_TIMESTAMP(6).
func (r *Reader) defaultValue() (string, error) {
	if err := r.lx.skipSpace(); err != nil {
		return "", err
	}
	b, ok := r.lx.peekByte()
	if !ok {
		return "", fmt.Errorf("truncated DEFAULT")
	}
	switch {
	case b == '\'' || b == '"':
		r.lx.readByte()
		body, err := r.lx.stringLit(b)
		if err != nil {
			return "", err
		}
		return string(body), nil
	case b == '(':
		// Expression default: consume balanced parens, drop the text.
		r.lx.readByte()
		if err := r.skipBalanced(); err != nil {
			return "", err
		}
		return "", nil
	default:
		var sb strings.Builder
		for {
			c, err := r.lx.readByte()
			if err != nil {
				break
			}
			if c == ',' || c == ')' || isSpace(c) {
				r.lx.unreadByte()
				break
			}
			sb.WriteByte(c)
			if c == '(' {
				if err := r.skipBalanced(); err != nil {
					return "", err
				}
				sb.WriteByte(')')
				break
			}
		}
		return sb.String(), nil
	}
}

// skipBalanced consumes through the paren matching an already-consumed '('.
func (r *Reader) skipBalanced() error {
	depth := 1
	for {
		b, err := r.lx.readByte()
		if err != nil {
			return fmt.Errorf("unbalanced parentheses")
		}
		switch b {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return nil
			}
		case '\'', '"':
			if _, err := r.lx.stringLit(b); err != nil {
				return err
			}
		}
	}
}

// typeDims parses "(width[,scale])" with the opening paren consumed.
func (r *Reader) typeDims() (int, int, error) {
	read := func() (int, byte, error) {
		var sb strings.Builder
		for {
			b, err := r.lx.readByte()
			if err != nil {
				return 0, 0, fmt.Errorf("truncated type dimensions")
			}
			if b == ',' || b == ')' {
				n, err := strconv.Atoi(strings.TrimSpace(sb.String()))
				if err != nil {
					return 0, 0, fmt.Errorf("bad type dimension %q", sb.String())
				}
				return n, b, nil
			}
			sb.WriteByte(b)
		}
	}
	w, sep, err := read()
	if err != nil {
		return 0, 0, err
	}
	if sep == ')' {
		return w, 0, nil
	}
	s, sep, err := read()
	if err != nil {
		return 0, 0, err
	}
	if sep != ')' {
		return 0, 0, fmt.Errorf("malformed type dimensions")
	}
	return w, s, nil
}

// enumValues parses "('a','b',...)" with the opening paren consumed.
func (r *Reader) enumValues() ([]string, error) {
	var vals []string
	for {
		if err := r.lx.skipSpace(); err != nil {
			return nil, fmt.Errorf("truncated enum value list")
		}
		b, err := r.lx.readByte()
		if err != nil {
			return nil, fmt.Errorf("truncated enum value list")
		}
		if b != '\'' && b != '"' {
			return nil, fmt.Errorf("expected string in enum value list")
		}
		body, err := r.lx.stringLit(b)
		if err != nil {
			return nil, err
		}
		vals = append(vals, string(body))

		if err := r.lx.skipSpace(); err != nil {
			return nil, fmt.Errorf("truncated enum value list")
		}
		sep, err := r.lx.readByte()
		if err != nil {
			return nil, fmt.Errorf("truncated enum value list")
		}
		switch sep {
		case ',':
			continue
		case ')':
			return vals, nil
		default:
			return nil, fmt.Errorf("malformed enum value list")
		}
	}
}

// keyClause parses "[UNIQUE|FULLTEXT|SPATIAL] KEY|INDEX [name] (cols)".
// The leading keyword is already consumed.
func (r *Reader) keyClause(lead string) (string, []string, error) {
	// After UNIQUE/FULLTEXT/SPATIAL an optional KEY|INDEX follows; after
	// KEY/INDEX we go straight to the name.
	if !strings.EqualFold(lead, "KEY") && !strings.EqualFold(lead, "INDEX") {
		if err := r.lx.skipSpace(); err != nil {
			return "", nil, fmt.Errorf("truncated key clause")
		}
		if b, ok := r.lx.peekByte(); ok && isWordByte(b) {
			if kw, _ := r.lx.word(); !strings.EqualFold(kw, "KEY") && !strings.EqualFold(kw, "INDEX") {
				return "", nil, fmt.Errorf("unexpected %q in key clause", kw)
			}
		}
	}

	name := ""
	if err := r.lx.skipSpace(); err != nil {
		return "", nil, fmt.Errorf("truncated key clause")
	}
	if b, ok := r.lx.peekByte(); ok && b != '(' {
		n, err := r.lx.ident()
		if err != nil {
			return "", nil, err
		}
		name = n
	}

	cols, err := r.keyColumns()
	return name, cols, err
}

// keyColumns parses "(col[(len)] [ASC|DESC], ...)".
func (r *Reader) keyColumns() ([]string, error) {
	if err := r.expectByte('('); err != nil {
		return nil, fmt.Errorf("expected ( in key clause")
	}
	var cols []string
	for {
		name, err := r.lx.ident()
		if err != nil {
			return nil, fmt.Errorf("bad key column: %v", err)
		}
		cols = append(cols, name)

		if err := r.lx.skipSpace(); err != nil {
			return nil, fmt.Errorf("truncated key clause")
		}
		b, err2 := r.lx.readByte()
		if err2 != nil {
			return nil, fmt.Errorf("truncated key clause")
		}
		if b == '(' {
			// prefix length, e.g. `name`(10)
			if err := r.skipBalanced(); err != nil {
				return nil, err
			}
			if err := r.lx.skipSpace(); err != nil {
				return nil, fmt.Errorf("truncated key clause")
			}
			if b, err2 = r.lx.readByte(); err2 != nil {
				return nil, fmt.Errorf("truncated key clause")
			}
		}
		if isWordByte(b) {
			// ASC/DESC ordering keyword
			r.lx.unreadByte()
			if _, err := r.lx.word(); err != nil && err != io.EOF {
				return nil, err
			}
			if err := r.lx.skipSpace(); err != nil {
				return nil, fmt.Errorf("truncated key clause")
			}
			if b, err2 = r.lx.readByte(); err2 != nil {
				return nil, fmt.Errorf("truncated key clause")
			}
		}
		switch b {
		case ',':
			continue
		case ')':
			return cols, nil
		default:
			return nil, fmt.Errorf("malformed key clause")
		}
	}
}
