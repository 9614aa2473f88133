package dump

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// drain collects every event until EOF, failing on unexpected errors but
// collecting recoverable parse errors.
func drain(tb testing.TB, r *Reader) ([]Event, []*ParseError) {
	tb.Helper()
	var evs []Event
	var perrs []*ParseError
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return evs, perrs
		}
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				perrs = append(perrs, pe)
				continue
			}
			tb.Fatalf("Next: %v", err)
		}
		evs = append(evs, ev)
	}
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

const usersDump = `
-- MySQL dump 10.13
/*!40101 SET NAMES utf8mb4 */;
DROP TABLE IF EXISTS ` + "`users`" + `;
CREATE TABLE ` + "`users`" + ` (
  ` + "`id`" + ` int(11) NOT NULL AUTO_INCREMENT,
  ` + "`name`" + ` varchar(100) NOT NULL,
  ` + "`bio`" + ` text,
  PRIMARY KEY (` + "`id`" + `),
  KEY ` + "`idx_name`" + ` (` + "`name`" + `)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
LOCK TABLES ` + "`users`" + ` WRITE;
INSERT INTO ` + "`users`" + ` VALUES (1,'alice','hi; I''m alice'),(2,'bob',NULL),(3,'carol','(paren) test');
UNLOCK TABLES;
`

func TestReaderFullTable(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader(usersDump))
	evs, perrs := drain(t, r)
	if len(perrs) != 0 {
		t.Fatalf("unexpected parse errors: %v", perrs)
	}

	var def *Event
	var rows [][]Literal
	sawEnd := false
	for i := range evs {
		switch evs[i].Kind {
		case EventTableDef:
			def = &evs[i]
		case EventRows:
			rows = append(rows, evs[i].Rows...)
		case EventTableEnd:
			sawEnd = true
		}
	}
	if def == nil {
		t.Fatal("no table definition event")
	}
	if def.Table != "users" || len(def.Def.Columns) != 3 {
		t.Fatalf("definition: table %q, %d columns", def.Table, len(def.Def.Columns))
	}
	if !def.Def.Columns[0].AutoInc {
		t.Error("id should be auto-increment")
	}
	if got := def.Def.PrimaryKey; len(got) != 1 || got[0] != "id" {
		t.Errorf("primary key = %v", got)
	}
	if len(def.Def.Indexes) != 1 || def.Def.Indexes[0].Name != "idx_name" {
		t.Errorf("indexes = %+v", def.Def.Indexes)
	}
	if !sawEnd {
		t.Error("no TableEnd event")
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Semicolons, escaped quotes and parens inside strings must not split
	// statements or tuples.
	if got := string(rows[0][2].Bytes); got != "hi; I'm alice" {
		t.Errorf("row 0 bio = %q", got)
	}
	if rows[1][2].Kind != LitNull {
		t.Errorf("row 1 bio should be NULL, got %v", rows[1][2].Kind)
	}
	if got := string(rows[2][2].Bytes); got != "(paren) test" {
		t.Errorf("row 2 bio = %q", got)
	}
}

func TestReaderBatchBound(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader(usersDump))
	r.BatchRows = 2
	evs, _ := drain(t, r)

	var sizes []int
	for _, ev := range evs {
		if ev.Kind == EventRows {
			sizes = append(sizes, len(ev.Rows))
		}
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [2 1]", sizes)
	}
}

func TestReaderKeywordSpacing(t *testing.T) {
	t.Parallel()

	// The cursor sits on the space after CREATE/INSERT/INTO when the next
	// keyword is read; nothing here may be mistaken for punctuation.
	in := "CREATE TABLE t (a int); INSERT INTO t VALUES (1);"
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)

	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	want := []EventKind{EventTableDef, EventRows, EventTableEnd}
	got := kinds(evs)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(evs[1].Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(evs[1].Rows))
	}
}

func TestReaderDoubleDashNotComment(t *testing.T) {
	t.Parallel()

	// "--" not followed by whitespace is not a comment opener. The bytes are
	// handed back whole and the statement is skipped with a parse error.
	in := "--bogus;\nCREATE TABLE t (a int);\nINSERT INTO t VALUES (1);\n"
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)

	if len(perrs) != 1 {
		t.Fatalf("got %d parse errors, want 1: %v", len(perrs), perrs)
	}
	var rows int
	for _, ev := range evs {
		if ev.Kind == EventRows {
			rows += len(ev.Rows)
		}
	}
	if rows != 1 {
		t.Fatalf("rows after recovery = %d, want 1", rows)
	}
}

func TestReaderMalformedStatementRecovery(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE t (a int);
GARBAGE THAT IS NOT SQL 'with a ; inside';
INSERT INTO t VALUES (1);
`
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)

	if len(perrs) != 1 {
		t.Fatalf("got %d parse errors, want 1", len(perrs))
	}
	var rows int
	for _, ev := range evs {
		if ev.Kind == EventRows {
			rows += len(ev.Rows)
		}
	}
	if rows != 1 {
		t.Fatalf("rows after recovery = %d, want 1", rows)
	}
}

func TestReaderExplicitColumnList(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE t (a int, b varchar(10), c int);
INSERT INTO t (c, a) VALUES (3, 1);
`
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}

	var row []Literal
	for _, ev := range evs {
		if ev.Kind == EventRows {
			row = ev.Rows[0]
		}
	}
	if len(row) != 3 {
		t.Fatalf("row width = %d, want 3", len(row))
	}
	if v, _ := row[0].Number.Int64(); v != 1 {
		t.Errorf("a = %v", row[0])
	}
	if row[1].Kind != LitNull {
		t.Errorf("b should be NULL (not named by the INSERT)")
	}
	if v, _ := row[2].Number.Int64(); v != 3 {
		t.Errorf("c = %v", row[2])
	}
}

func TestReaderTableEndBetweenTables(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE a (x int);
INSERT INTO a VALUES (1);
CREATE TABLE b (y int);
INSERT INTO b VALUES (2);
`
	r := NewReader(strings.NewReader(in))
	evs, _ := drain(t, r)

	want := []EventKind{
		EventTableDef, EventRows, EventTableEnd,
		EventTableDef, EventRows, EventTableEnd,
	}
	got := kinds(evs)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestReaderLiteralForms(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE t (a int, b int, c blob, d blob, e int, f text);
INSERT INTO t VALUES (TRUE, -42, 0xDEADBEEF, X'0a0b', b'101', _utf8mb4'héllo');
`
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}

	var row []Literal
	for _, ev := range evs {
		if ev.Kind == EventRows {
			row = ev.Rows[0]
		}
	}
	if row == nil {
		t.Fatal("no rows")
	}
	if v, _ := row[0].Number.Int64(); v != 1 {
		t.Errorf("TRUE = %v", row[0])
	}
	if v, _ := row[1].Number.Int64(); v != -42 {
		t.Errorf("-42 = %v", row[1])
	}
	if row[2].Kind != LitHex || len(row[2].Bytes) != 4 || row[2].Bytes[0] != 0xDE {
		t.Errorf("0xDEADBEEF = %+v", row[2])
	}
	if row[3].Kind != LitHex || string(row[3].Bytes) != "\x0a\x0b" {
		t.Errorf("X'0a0b' = %+v", row[3])
	}
	if v, _ := row[4].Number.Int64(); v != 5 {
		t.Errorf("b'101' = %v", row[4])
	}
	if got := string(row[5].Bytes); got != "héllo" {
		t.Errorf("introducer string = %q", got)
	}
}

func TestReaderIgnoredStatements(t *testing.T) {
	t.Parallel()

	in := "SET NAMES utf8mb4;\nCREATE TABLE t (a int);\n"
	r := NewReader(strings.NewReader(in))
	evs, _ := drain(t, r)

	if len(evs) < 2 || evs[0].Kind != EventIgnored {
		t.Fatalf("events = %v, want leading Ignored", kinds(evs))
	}
	if !strings.Contains(evs[0].Fragment, "SET") {
		t.Errorf("fragment = %q", evs[0].Fragment)
	}
}

func TestReaderCreateTableDefaults(t *testing.T) {
	t.Parallel()

	in := "CREATE TABLE t (\n" +
		"  a int NOT NULL DEFAULT 7,\n" +
		"  b varchar(5) DEFAULT 'x,y',\n" +
		"  c timestamp DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n" +
		"  d enum('red','green','bl''ue') DEFAULT 'red',\n" +
		"  e decimal(10,2) unsigned DEFAULT NULL\n" +
		");\n"
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if len(evs) == 0 || evs[0].Kind != EventTableDef {
		t.Fatalf("events = %v, want leading TableDef", kinds(evs))
	}
	def := evs[0].Def

	if def.Columns[0].Nullable || def.Columns[0].Default == nil || *def.Columns[0].Default != "7" {
		t.Errorf("column a = %+v", def.Columns[0])
	}
	if def.Columns[1].Default == nil || *def.Columns[1].Default != "x,y" {
		t.Errorf("column b default = %v", def.Columns[1].Default)
	}
	if def.Columns[2].Default == nil || *def.Columns[2].Default != "CURRENT_TIMESTAMP" {
		t.Errorf("column c default = %v", def.Columns[2].Default)
	}
	if got := def.Columns[3].Type.EnumValues; len(got) != 3 || got[2] != "bl'ue" {
		t.Errorf("enum values = %v", got)
	}
	if c := def.Columns[4]; c.Type.Width != 10 || c.Type.Scale != 2 || !c.Type.Unsigned {
		t.Errorf("column e type = %+v", c.Type)
	}
}

func TestReaderSkipsForeignKeys(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE child (
  id int NOT NULL,
  parent_id int,
  PRIMARY KEY (id),
  KEY fk_parent (parent_id),
  CONSTRAINT fk_parent FOREIGN KEY (parent_id) REFERENCES parent (id) ON DELETE CASCADE
);
`
	r := NewReader(strings.NewReader(in))
	evs, perrs := drain(t, r)
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	if len(evs) == 0 || evs[0].Kind != EventTableDef {
		t.Fatalf("events = %v, want leading TableDef", kinds(evs))
	}
	def := evs[0].Def
	if len(def.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(def.Columns))
	}
	if len(def.Indexes) != 1 {
		t.Fatalf("indexes = %+v, want the plain KEY only", def.Indexes)
	}
}
