package sqlite

import (
	"context"
	"errors"
	"testing"

	"mysql2sqlite/internal/coerce"
	"mysql2sqlite/internal/schema"
)

func newMemDB(tb testing.TB) *DB {
	tb.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		tb.Fatalf("open :memory:: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

func testTable() schema.Table {
	return schema.Table{
		Name: "items",
		Columns: []schema.Column{
			{Name: "id", Dest: schema.KindInteger, AutoInc: true},
			{Name: "label", Dest: schema.KindText},
			{Name: "price", Dest: schema.KindReal, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func intVal(n int64) coerce.Value    { return coerce.Value{Kind: coerce.Integer, Integer: n} }
func textVal(s string) coerce.Value  { return coerce.Value{Kind: coerce.Text, Text: s} }
func realVal(f float64) coerce.Value { return coerce.Value{Kind: coerce.Real, Real: f} }

func countRows(tb testing.TB, db *DB, table string) int {
	tb.Helper()
	rows, err := db.Query(context.Background(), "SELECT COUNT(*) FROM "+table)
	if err != nil {
		tb.Fatalf("count: %v", err)
	}
	defer rows.Close()
	var n int
	if !rows.Next() {
		tb.Fatal("no count row")
	}
	if err := rows.Scan(&n); err != nil {
		tb.Fatalf("scan: %v", err)
	}
	return n
}

func TestBatchWriterCommitsOnLimit(t *testing.T) {
	t.Parallel()

	db := newMemDB(t)
	ctx := context.Background()
	tbl := testTable()
	if err := db.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	w := NewBatchWriter(db, tbl, 2)
	for i := int64(1); i <= 5; i++ {
		row := []coerce.Value{intVal(i), textVal("x"), realVal(1.5)}
		if err := w.Add(ctx, row); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	// Two full batches committed, one row still pending.
	if got := countRows(t, db, "items"); got != 4 {
		t.Fatalf("committed rows = %d, want 4", got)
	}
	if w.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", w.Pending())
	}

	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := countRows(t, db, "items"); got != 5 {
		t.Fatalf("rows after flush = %d, want 5", got)
	}
	if w.Written() != 5 {
		t.Fatalf("Written = %d", w.Written())
	}
}

func TestBatchWriterRollsBackFailedBatch(t *testing.T) {
	t.Parallel()

	db := newMemDB(t)
	ctx := context.Background()
	tbl := testTable()
	if err := db.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	w := NewBatchWriter(db, tbl, 10)
	good := []coerce.Value{intVal(1), textVal("a"), realVal(0)}
	dup := []coerce.Value{intVal(1), textVal("b"), realVal(0)} // primary key collision
	if err := w.Add(ctx, good); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Add(ctx, dup); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err := w.Flush(ctx)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("want WriteError, got %v", err)
	}
	if we.Table != "items" || we.Rows != 2 {
		t.Errorf("WriteError = %+v", we)
	}
	// The whole batch rolled back.
	if got := countRows(t, db, "items"); got != 0 {
		t.Fatalf("rows after failed batch = %d, want 0", got)
	}

	// The writer stays usable.
	if err := w.Add(ctx, []coerce.Value{intVal(2), textVal("c"), realVal(0)}); err != nil {
		t.Fatalf("Add after failure: %v", err)
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush after failure: %v", err)
	}
	if got := countRows(t, db, "items"); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestBatchWriterFlushSurvivesCancellation(t *testing.T) {
	t.Parallel()

	db := newMemDB(t)
	tbl := testTable()
	if err := db.CreateTable(context.Background(), tbl); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	w := NewBatchWriter(db, tbl, 10)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Add(ctx, []coerce.Value{intVal(1), textVal("a"), realVal(0)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cancel()

	// The batch in flight commits whole; cancellation takes effect at the
	// next batch boundary, not inside one.
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush after cancel: %v", err)
	}
	if got := countRows(t, db, "items"); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestCreateIndexesRenamesCollisions(t *testing.T) {
	t.Parallel()

	db := newMemDB(t)
	ctx := context.Background()

	a := schema.Table{
		Name:    "a",
		Columns: []schema.Column{{Name: "x", Dest: schema.KindInteger, Nullable: true}},
		Indexes: []schema.Index{{Name: "by_x", Columns: []string{"x"}}},
	}
	b := schema.Table{
		Name:    "b",
		Columns: []schema.Column{{Name: "x", Dest: schema.KindInteger, Nullable: true}},
		Indexes: []schema.Index{{Name: "by_x", Columns: []string{"x"}}},
	}
	for _, tbl := range []schema.Table{a, b} {
		if err := db.CreateTable(ctx, tbl); err != nil {
			t.Fatalf("CreateTable %s: %v", tbl.Name, err)
		}
		if err := db.CreateIndexes(ctx, tbl); err != nil {
			t.Fatalf("CreateIndexes %s: %v", tbl.Name, err)
		}
	}

	rows, err := db.Query(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var n int
	rows.Next()
	if err := rows.Scan(&n); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("index count = %d, want 2 (collision renamed)", n)
	}
}
