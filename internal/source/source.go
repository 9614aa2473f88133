// Package source feeds the conversion engine. Both adapters, dump file and
// live server, speak the same event stream, so the engine does not know where
// its schema and rows come from.
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"mysql2sqlite/internal/dump"
)

// Source yields schema and row events in stream order, ending with io.EOF.
// Recoverable parse problems surface as *dump.ParseError; anything else is
// run-fatal.
type Source interface {
	Next(ctx context.Context) (dump.Event, error)
	Close() error
}

// Error wraps a failure of the source itself, as opposed to bad content. It
// is run-fatal.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DumpFile reads a mysqldump SQL file.
type DumpFile struct {
	f  *os.File
	rd *dump.Reader
}

// OpenDump opens path and prepares a streaming reader over it. batchRows
// bounds the size of emitted row batches; <= 0 selects the reader default.
func OpenDump(path string, batchRows int) (*DumpFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "open dump", Err: err}
	}
	rd := dump.NewReader(f)
	if batchRows > 0 {
		rd.BatchRows = batchRows
	}
	return &DumpFile{f: f, rd: rd}, nil
}

// NewDumpReader wraps an arbitrary reader, mainly for tests.
func NewDumpReader(r io.Reader, batchRows int) *DumpFile {
	rd := dump.NewReader(r)
	if batchRows > 0 {
		rd.BatchRows = batchRows
	}
	return &DumpFile{rd: rd}
}

// Next returns the next event. The underlying reader is pull-based, so
// cancellation is honored between events.
func (s *DumpFile) Next(ctx context.Context) (dump.Event, error) {
	if err := ctx.Err(); err != nil {
		return dump.Event{}, err
	}
	return s.rd.Next()
}

func (s *DumpFile) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
