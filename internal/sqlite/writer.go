package sqlite

import (
	"context"
	"fmt"

	"mysql2sqlite/internal/coerce"
	"mysql2sqlite/internal/schema"
)

// WriteError reports a failed batch commit. The batch's rows are rolled back
// as a unit; the table itself may continue with later batches.
type WriteError struct {
	Table string
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sqlite: write %d rows into %s: %v", e.Rows, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// BatchWriter accumulates coerced rows for one table and commits them in
// bounded transactions. Either every row of a batch is committed or none is.
type BatchWriter struct {
	db      *DB
	table   schema.Table
	stmtSQL string
	limit   int
	rows    [][]any
	written int64
}

// DefaultBatchSize is the commit granularity when the caller does not choose
// one.
const DefaultBatchSize = 1000

// NewBatchWriter prepares a writer for one destination table. batchSize <= 0
// selects DefaultBatchSize.
func NewBatchWriter(db *DB, table schema.Table, batchSize int) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchWriter{
		db:      db,
		table:   table,
		stmtSQL: schema.InsertSQL(table),
		limit:   batchSize,
		rows:    make([][]any, 0, batchSize),
	}
}

// Add queues one coerced row, flushing when the batch limit is reached.
func (w *BatchWriter) Add(ctx context.Context, row []coerce.Value) error {
	if len(row) != len(w.table.Columns) {
		return &WriteError{
			Table: w.table.Name,
			Rows:  1,
			Err:   fmt.Errorf("row has %d values, table has %d columns", len(row), len(w.table.Columns)),
		}
	}
	w.rows = append(w.rows, coerce.BindRow(row))
	if len(w.rows) >= w.limit {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits the queued rows in one transaction. On error the transaction
// is rolled back, the queue is cleared and a WriteError is returned; the
// writer stays usable for subsequent batches. A batch in flight runs to
// commit or rollback even after ctx is canceled; callers check cancellation
// between batches.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.rows) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	n := len(w.rows)
	rows := w.rows
	w.rows = w.rows[:0]

	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Table: w.table.Name, Rows: n, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, w.stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return &WriteError{Table: w.table.Name, Rows: n, Err: err}
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return &WriteError{Table: w.table.Name, Rows: n, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &WriteError{Table: w.table.Name, Rows: n, Err: err}
	}
	w.written += int64(n)
	return nil
}

// Written reports the number of rows committed so far.
func (w *BatchWriter) Written() int64 { return w.written }

// Pending reports the number of queued, uncommitted rows.
func (w *BatchWriter) Pending() int { return len(w.rows) }
