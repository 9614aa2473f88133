package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"mysql2sqlite/internal/dump"
	"mysql2sqlite/internal/schema"
)

// DefaultFetchWindow bounds how many rows a live source pulls from the server
// per emitted batch.
const DefaultFetchWindow = 500

// Live streams schema and rows from a running MySQL server. Tables are
// introspected up front from information_schema; row data is streamed one
// SELECT per table, sliced into fetch windows so memory stays bounded.
type Live struct {
	db     *sql.DB
	dbName string
	window int

	tables  []schema.Table
	ti      int
	sentDef bool
	rows    *sql.Rows
	cur     *schema.Table
}

// OpenLive connects to the server behind dsn (go-sql-driver format, database
// name required) and introspects its base tables. fetchWindow <= 0 selects
// DefaultFetchWindow.
func OpenLive(ctx context.Context, dsn string, fetchWindow int) (*Live, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, &Error{Op: "parse DSN", Err: err}
	}
	if cfg.DBName == "" {
		return nil, &Error{Op: "parse DSN", Err: fmt.Errorf("DSN carries no database name")}
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &Error{Op: "ping", Err: err}
	}

	if fetchWindow <= 0 {
		fetchWindow = DefaultFetchWindow
	}
	s := &Live{db: db, dbName: cfg.DBName, window: fetchWindow}
	if err := s.introspect(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Next advances the event stream: TableDef, then row batches, then TableEnd,
// per table in name order, then io.EOF.
func (s *Live) Next(ctx context.Context) (dump.Event, error) {
	if err := ctx.Err(); err != nil {
		return dump.Event{}, err
	}

	if s.rows != nil {
		return s.nextWindow(ctx)
	}

	if s.cur != nil && s.sentDef {
		// Definition was emitted on the previous call; open the row stream.
		if err := s.openRows(ctx); err != nil {
			return dump.Event{}, err
		}
		return s.nextWindow(ctx)
	}

	if s.ti >= len(s.tables) {
		return dump.Event{}, io.EOF
	}
	s.cur = &s.tables[s.ti]
	s.ti++
	s.sentDef = true
	return dump.Event{Kind: dump.EventTableDef, Table: s.cur.Name, Def: s.cur}, nil
}

func (s *Live) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	return s.db.Close()
}

func (s *Live) openRows(ctx context.Context) error {
	cols := make([]string, len(s.cur.Columns))
	for i, c := range s.cur.Columns {
		cols[i] = "`" + strings.ReplaceAll(c.Name, "`", "``") + "`"
	}
	query := fmt.Sprintf("SELECT %s FROM `%s`", strings.Join(cols, ", "), s.cur.Name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return &Error{Op: "select " + s.cur.Name, Err: err}
	}
	s.rows = rows
	s.sentDef = false
	return nil
}

// nextWindow scans up to one fetch window of rows. When the result set is
// exhausted the batch (if any) is emitted first and TableEnd follows on the
// next call via the drained rows handle.
func (s *Live) nextWindow(ctx context.Context) (dump.Event, error) {
	batch := make([][]dump.Literal, 0, s.window)
	n := len(s.cur.Columns)

	for len(batch) < s.window && s.rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := s.rows.Scan(ptrs...); err != nil {
			s.rows.Close()
			s.rows = nil
			return dump.Event{}, &Error{Op: "scan " + s.cur.Name, Err: err}
		}
		row := make([]dump.Literal, n)
		for i, v := range vals {
			row[i] = driverLiteral(v, &s.cur.Columns[i])
		}
		batch = append(batch, row)
	}

	if len(batch) > 0 {
		return dump.Event{Kind: dump.EventRows, Table: s.cur.Name, Rows: batch}, nil
	}

	if err := s.rows.Err(); err != nil {
		s.rows.Close()
		s.rows = nil
		return dump.Event{}, &Error{Op: "read " + s.cur.Name, Err: err}
	}
	s.rows.Close()
	s.rows = nil
	done := s.cur.Name
	s.cur = nil
	return dump.Event{Kind: dump.EventTableEnd, Table: done}, nil
}

// driverLiteral maps a database/sql driver value onto the dump literal model
// so both source kinds feed the coercer identically.
func driverLiteral(v any, col *schema.Column) dump.Literal {
	switch x := v.(type) {
	case nil:
		return dump.Null
	case int64:
		n, _ := dump.ParseNumber(strconv.FormatInt(x, 10))
		return dump.NumberLit(n)
	case float64:
		n, err := dump.ParseNumber(strconv.FormatFloat(x, 'g', -1, 64))
		if err != nil {
			return dump.StringLit([]byte(strconv.FormatFloat(x, 'g', -1, 64)))
		}
		return dump.NumberLit(n)
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		if isBinaryBase(col.Type.Base) {
			return dump.HexLit(b)
		}
		return dump.StringLit(b)
	case string:
		return dump.StringLit([]byte(x))
	case time.Time:
		return dump.StringLit([]byte(x.Format("2006-01-02 15:04:05")))
	default:
		return dump.StringLit([]byte(fmt.Sprint(x)))
	}
}

func isBinaryBase(base string) bool {
	switch base {
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob", "bit":
		return true
	}
	return false
}
