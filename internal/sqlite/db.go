// Package sqlite is the destination store. It uses database/sql over the
// modernc.org driver; SQLite has no bulk-load API, so rows go in as prepared
// INSERTs inside bounded transactions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mysql2sqlite/internal/schema"
)

// DestinationError wraps a failure that makes the destination database
// unusable. It is run-fatal.
type DestinationError struct {
	Op  string
	Err error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("sqlite: %s: %v", e.Op, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// DB wraps the destination connection.
type DB struct {
	db    *sql.DB
	names schema.NameSet
}

// Open opens (or creates) the destination database and applies load-time
// pragmas: WAL off in favor of plain journaling for a one-shot import,
// synchronous relaxed, foreign keys disabled so load order does not matter.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, &DestinationError{Op: "open", Err: fmt.Errorf("empty DSN")}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &DestinationError{Op: "open", Err: err}
	}
	// The sqlite driver serializes access per connection; a single connection
	// avoids table-lock contention between DDL and the batch writer.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &DestinationError{Op: "ping", Err: err}
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = OFF;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, &DestinationError{Op: "pragma", Err: err}
		}
	}

	return &DB{db: db, names: schema.NameSet{}}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

// CreateTable materializes the translated table definition.
func (d *DB) CreateTable(ctx context.Context, t schema.Table) error {
	ddl, err := schema.CreateTableSQL(t)
	if err != nil {
		return &DestinationError{Op: "create table", Err: err}
	}
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return &DestinationError{Op: "create table " + t.Name, Err: err}
	}
	return nil
}

// CreateIndexes creates the table's secondary indexes. Index names are
// claimed against the database-wide name set, so colliding or reserved source
// names are regenerated deterministically.
func (d *DB) CreateIndexes(ctx context.Context, t schema.Table) error {
	stmts, err := schema.IndexSQL(t, d.names)
	if err != nil {
		return &DestinationError{Op: "create index", Err: err}
	}
	for _, ddl := range stmts {
		if _, err := d.db.ExecContext(ctx, ddl); err != nil {
			return &DestinationError{Op: "create index on " + t.Name, Err: err}
		}
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim free pages. Run it after the
// load, never during.
func (d *DB) Vacuum(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return &DestinationError{Op: "vacuum", Err: err}
	}
	return nil
}

// Exec runs an arbitrary statement. Used by tests to inspect the result.
func (d *DB) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return &DestinationError{Op: "exec", Err: err}
	}
	return nil
}

// Query exposes the underlying connection for read access.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}
