// Package dump turns a MySQL dump byte stream into a lazy sequence of logical
// events: table definitions, bounded row batches, table boundaries, and
// ignored session directives. The stream is consumed strictly forward and one
// statement at a time; a multi-row INSERT is drained tuple by tuple, so peak
// memory is bounded by the batch size rather than the statement size.
package dump

import (
	"fmt"
	"io"
	"strings"
)

// DefaultBatchRows bounds how many tuples one EventRows carries.
const DefaultBatchRows = 256

// fragmentCap limits how much statement text an EventIgnored retains.
const fragmentCap = 120

// Reader produces Logical Events from a dump stream. It is restartable only
// from the start of the stream; Next is not safe for concurrent use.
type Reader struct {
	lx *lexer

	// BatchRows caps tuples per EventRows; DefaultBatchRows when zero.
	BatchRows int

	// cur is the table whose row stream is open; "" when none.
	cur string

	// columns remembers defined tables' column order, used to realign
	// INSERTs that carry an explicit column list.
	columns map[string][]string

	// insert state when mid-way through a multi-row INSERT statement.
	inInsert   bool
	insertTbl  string
	insertOff  int64
	projection []int // dest index per tuple position, nil for 1:1

	pending *Event
}

// NewReader wraps the dump byte stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{lx: newLexer(r), columns: make(map[string][]string)}
}

func (r *Reader) batchRows() int {
	if r.BatchRows > 0 {
		return r.BatchRows
	}
	return DefaultBatchRows
}

// Next returns the next logical event. It returns io.EOF after the final
// event. A returned *ParseError is recoverable: the offending statement has
// been skipped and Next may be called again.
func (r *Reader) Next() (Event, error) {
	if r.pending != nil {
		ev := *r.pending
		r.pending = nil
		return ev, nil
	}
	if r.inInsert {
		return r.nextBatch()
	}

	for {
		if err := r.lx.skipSpace(); err != nil {
			if err == io.EOF {
				return r.finish()
			}
			return Event{}, fmt.Errorf("dump: read: %w", err)
		}

		off := r.lx.off
		if b, ok := r.lx.peekByte(); ok && b == ';' {
			r.lx.readByte() // empty statement, e.g. after a skipped directive
			continue
		}

		kw, err := r.lx.word()
		if err != nil && err != io.EOF {
			return Event{}, fmt.Errorf("dump: read: %w", err)
		}
		if kw == "" {
			r.lx.readByte() // stray punctuation; resynchronize
			if perr := r.lx.skipStatement(nil); perr != nil {
				return Event{}, fmt.Errorf("dump: read: %w", perr)
			}
			return Event{}, &ParseError{Offset: off, Msg: "statement does not start with a keyword"}
		}

		switch strings.ToUpper(kw) {
		case "CREATE":
			ev, err := r.create(off)
			if err != nil || ev != nil {
				if err != nil {
					return Event{}, err
				}
				return *ev, nil
			}
			// non-table CREATE was ignored; fall through to next statement

		case "INSERT", "REPLACE":
			return r.beginInsert(off)

		case "SET", "LOCK", "UNLOCK", "USE", "DROP", "ALTER", "DELIMITER",
			"START", "BEGIN", "COMMIT", "FLUSH", "ANALYZE":
			return r.ignored(kw, off)

		default:
			if perr := r.lx.skipStatement(nil); perr != nil {
				return Event{}, fmt.Errorf("dump: read: %w", perr)
			}
			return Event{}, &ParseError{Offset: off, Table: r.cur, Msg: fmt.Sprintf("unrecognized statement %q", kw)}
		}
	}
}

// finish emits the trailing TableEnd (if a row stream is open) before EOF.
func (r *Reader) finish() (Event, error) {
	if r.cur != "" {
		ev := Event{Kind: EventTableEnd, Table: r.cur, Offset: r.lx.off}
		r.cur = ""
		return ev, nil
	}
	return Event{}, io.EOF
}

// endCurrent emits TableEnd for the open row stream and queues next.
func (r *Reader) endCurrent(next Event) Event {
	end := Event{Kind: EventTableEnd, Table: r.cur, Offset: next.Offset}
	r.cur = ""
	r.pending = &next
	return end
}

// create handles CREATE <object>. CREATE TABLE yields an EventTableDef;
// every other object kind (DATABASE, INDEX, VIEW, ...) is ignored. A nil
// event with nil error means "statement consumed, nothing to emit".
func (r *Reader) create(off int64) (*Event, error) {
	obj, err := r.lx.word()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("dump: read: %w", err)
	}
	if !strings.EqualFold(obj, "TABLE") {
		if err := r.lx.skipStatement(nil); err != nil {
			return nil, fmt.Errorf("dump: read: %w", err)
		}
		return nil, nil
	}

	tbl, err := r.parseCreateTable(off)
	if err != nil {
		return nil, err
	}
	r.columns[tbl.Name] = tbl.ColumnNames()

	ev := Event{Kind: EventTableDef, Table: tbl.Name, Def: tbl, Offset: off}
	if r.cur != "" && r.cur != tbl.Name {
		end := r.endCurrent(ev)
		return &end, nil
	}
	return &ev, nil
}

// ignored consumes the rest of the statement and reports it as an Ignored
// fragment.
func (r *Reader) ignored(kw string, off int64) (Event, error) {
	capture := make([]byte, 0, fragmentCap)
	if err := r.lx.skipStatement(&capture); err != nil {
		return Event{}, fmt.Errorf("dump: read: %w", err)
	}
	frag := kw + string(capture)
	return Event{Kind: EventIgnored, Fragment: frag, Offset: off}, nil
}

// beginInsert parses the INSERT header (INTO table [(cols)] VALUES) and
// returns the first row batch. If a different table's row stream is open, a
// TableEnd is emitted first and the batch is delivered on the following call.
func (r *Reader) beginInsert(off int64) (Event, error) {
	if w, err := r.lx.word(); err != nil || !strings.EqualFold(w, "INTO") {
		return r.parseErr(off, "", "expected INTO after INSERT")
	}
	table, err := r.lx.ident()
	if err != nil {
		return r.parseErr(off, "", "expected table name after INSERT INTO")
	}

	if err := r.lx.skipSpace(); err != nil {
		return r.parseErr(off, table, "truncated INSERT statement")
	}

	// Optional explicit column list.
	var projection []int
	if b, ok := r.lx.peekByte(); ok && b == '(' {
		r.lx.readByte()
		cols, err := r.columnList()
		if err != nil {
			return r.parseErr(off, table, err.Error())
		}
		projection, err = r.project(table, cols)
		if err != nil {
			return r.parseErr(off, table, err.Error())
		}
	}

	if w, err := r.lx.word(); err != nil || !(strings.EqualFold(w, "VALUES") || strings.EqualFold(w, "VALUE")) {
		return r.parseErr(off, table, "expected VALUES in INSERT")
	}

	r.inInsert = true
	r.insertTbl = table
	r.insertOff = off
	r.projection = projection

	if r.cur != "" && r.cur != table {
		end := Event{Kind: EventTableEnd, Table: r.cur, Offset: off}
		r.cur = table
		return end, nil
	}
	r.cur = table
	return r.nextBatch()
}

// nextBatch drains tuples from the open INSERT until the batch bound or the
// statement terminator.
func (r *Reader) nextBatch() (Event, error) {
	limit := r.batchRows()
	rows := make([][]Literal, 0, limit)

	for len(rows) < limit {
		if err := r.lx.skipSpace(); err != nil {
			r.inInsert = false
			return r.parseErr(r.insertOff, r.insertTbl, "truncated INSERT statement")
		}
		b, ok := r.lx.peekByte()
		if !ok {
			r.inInsert = false
			return r.parseErr(r.insertOff, r.insertTbl, "truncated INSERT statement")
		}
		switch b {
		case '(':
			r.lx.readByte()
			tuple, err := r.tuple()
			if err != nil {
				r.inInsert = false
				r.lx.skipStatement(nil)
				return Event{}, &ParseError{Offset: r.insertOff, Table: r.insertTbl, Msg: err.Error()}
			}
			rows = append(rows, tuple)
		case ',':
			r.lx.readByte()
		case ';':
			r.lx.readByte()
			r.inInsert = false
			if len(rows) == 0 {
				return r.Next()
			}
			return Event{Kind: EventRows, Table: r.insertTbl, Rows: rows, Offset: r.insertOff}, nil
		default:
			r.inInsert = false
			r.lx.skipStatement(nil)
			return Event{}, &ParseError{Offset: r.insertOff, Table: r.insertTbl, Msg: fmt.Sprintf("unexpected byte %q in VALUES list", b)}
		}
	}

	return Event{Kind: EventRows, Table: r.insertTbl, Rows: rows, Offset: r.insertOff}, nil
}

// tuple parses one "(v, v, ...)" value tuple; the opening paren is consumed.
func (r *Reader) tuple() ([]Literal, error) {
	var vals []Literal
	for {
		lit, err := r.literal()
		if err != nil {
			return nil, err
		}
		vals = append(vals, lit)

		if err := r.lx.skipSpace(); err != nil {
			return nil, fmt.Errorf("truncated value tuple")
		}
		b, err2 := r.lx.readByte()
		if err2 != nil {
			return nil, fmt.Errorf("truncated value tuple")
		}
		switch b {
		case ',':
			continue
		case ')':
			if r.projection != nil {
				return r.applyProjection(vals)
			}
			return vals, nil
		default:
			return nil, fmt.Errorf("unexpected byte %q in value tuple", b)
		}
	}
}

// literal parses one raw field value.
func (r *Reader) literal() (Literal, error) {
	if err := r.lx.skipSpace(); err != nil {
		return Literal{}, fmt.Errorf("truncated value tuple")
	}
	b, ok := r.lx.peekByte()
	if !ok {
		return Literal{}, fmt.Errorf("truncated value tuple")
	}

	switch {
	case b == '\'' || b == '"':
		r.lx.readByte()
		body, err := r.lx.stringLit(b)
		if err != nil {
			return Literal{}, err
		}
		return StringLit(body), nil

	case b == '-' || b == '+' || b == '.' || b >= '0' && b <= '9':
		return r.numberOrHex()

	default:
		w, err := r.lx.word()
		if err != nil && err != io.EOF {
			return Literal{}, err
		}
		return r.wordLiteral(w)
	}
}

// wordLiteral resolves bare-word values: NULL, booleans, hex/bit string
// notation and charset introducers.
func (r *Reader) wordLiteral(w string) (Literal, error) {
	switch strings.ToUpper(w) {
	case "NULL":
		return Null, nil
	case "TRUE":
		return NumberLit(Number{Digits: "1"}), nil
	case "FALSE":
		return NumberLit(Number{}), nil
	case "X", "B":
		b, ok := r.lx.peekByte()
		if !ok || b != '\'' {
			return Literal{}, fmt.Errorf("unexpected token %q in value tuple", w)
		}
		r.lx.readByte()
		body, err := r.lx.stringLit('\'')
		if err != nil {
			return Literal{}, err
		}
		if strings.EqualFold(w, "X") {
			return decodeHex(string(body))
		}
		return decodeBits(string(body))
	}

	// Charset introducer: _binary 'x' stays raw bytes, any other _charset
	// prefix is followed by an ordinary string literal.
	if strings.HasPrefix(w, "_") {
		if err := r.lx.skipSpace(); err != nil {
			return Literal{}, fmt.Errorf("truncated value tuple")
		}
		q, ok := r.lx.peekByte()
		if ok && (q == '\'' || q == '"') {
			r.lx.readByte()
			body, err := r.lx.stringLit(q)
			if err != nil {
				return Literal{}, err
			}
			if strings.EqualFold(w, "_binary") {
				return HexLit(body), nil
			}
			return StringLit(body), nil
		}
	}
	return Literal{}, fmt.Errorf("unexpected token %q in value tuple", w)
}

// numberOrHex parses a numeric literal or 0x-prefixed hex blob.
func (r *Reader) numberOrHex() (Literal, error) {
	var sb strings.Builder
	for {
		b, err := r.lx.readByte()
		if err != nil {
			break
		}
		if b == ',' || b == ')' || isSpace(b) {
			r.lx.unreadByte()
			break
		}
		sb.WriteByte(b)
	}
	s := sb.String()
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return decodeHex(s[2:])
	}
	n, err := ParseNumber(s)
	if err != nil {
		return Literal{}, err
	}
	return NumberLit(n), nil
}

func decodeHex(s string) (Literal, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi, ok1 := hexVal(s[i])
		lo, ok2 := hexVal(s[i+1])
		if !ok1 || !ok2 {
			return Literal{}, fmt.Errorf("bad hex literal %q", s)
		}
		out = append(out, hi<<4|lo)
	}
	return HexLit(out), nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func decodeBits(s string) (Literal, error) {
	var v uint64
	for _, c := range s {
		if c != '0' && c != '1' {
			return Literal{}, fmt.Errorf("bad bit literal %q", s)
		}
		v = v<<1 | uint64(c-'0')
	}
	return NumberLit(Number{Digits: fmt.Sprintf("%d", v)}), nil
}

// columnList parses "(a, b, c)" after the opening paren is consumed.
func (r *Reader) columnList() ([]string, error) {
	var cols []string
	for {
		name, err := r.lx.ident()
		if err != nil {
			return nil, fmt.Errorf("bad column list in INSERT")
		}
		cols = append(cols, name)

		if err := r.lx.skipSpace(); err != nil {
			return nil, fmt.Errorf("bad column list in INSERT")
		}
		b, err2 := r.lx.readByte()
		if err2 != nil {
			return nil, fmt.Errorf("bad column list in INSERT")
		}
		switch b {
		case ',':
			continue
		case ')':
			return cols, nil
		default:
			return nil, fmt.Errorf("bad column list in INSERT")
		}
	}
}

// project builds the tuple-position -> table-column-index mapping for an
// INSERT carrying an explicit column list. It needs the table definition,
// which a well-formed dump always emits first.
func (r *Reader) project(table string, cols []string) ([]int, error) {
	order, ok := r.columns[table]
	if !ok {
		return nil, fmt.Errorf("INSERT with column list for undefined table %s", table)
	}
	idx := make(map[string]int, len(order))
	for i, c := range order {
		idx[strings.ToLower(c)] = i
	}
	proj := make([]int, len(cols))
	for i, c := range cols {
		j, ok := idx[strings.ToLower(c)]
		if !ok {
			return nil, fmt.Errorf("INSERT references unknown column %s of table %s", c, table)
		}
		proj[i] = j
	}
	return proj, nil
}

// applyProjection realigns a tuple to the table's column order; columns not
// named by the INSERT become NULL.
func (r *Reader) applyProjection(vals []Literal) ([]Literal, error) {
	if len(vals) != len(r.projection) {
		return nil, fmt.Errorf("tuple has %d values, column list has %d", len(vals), len(r.projection))
	}
	out := make([]Literal, len(r.columns[r.insertTbl]))
	for i := range out {
		out[i] = Null
	}
	for i, v := range vals {
		out[r.projection[i]] = v
	}
	return out, nil
}

func (r *Reader) parseErr(off int64, table, msg string) (Event, error) {
	r.lx.skipStatement(nil)
	return Event{}, &ParseError{Offset: off, Table: table, Msg: msg}
}
