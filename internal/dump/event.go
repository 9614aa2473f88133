package dump

import (
	"fmt"

	"mysql2sqlite/internal/schema"
)

// EventKind tags the Logical Event union. The set is closed: the orchestrator
// switches exhaustively over it, so a new statement kind is a compile-visible
// change here rather than a silently unhandled case.
type EventKind int

const (
	// EventTableDef carries a parsed table definition.
	EventTableDef EventKind = iota
	// EventRows carries a bounded batch of raw row tuples for one table.
	EventRows
	// EventTableEnd marks that no more rows will follow for a table.
	EventTableEnd
	// EventIgnored carries a recognized-but-discarded statement fragment
	// (session settings, locks, conditional directives).
	EventIgnored
)

func (k EventKind) String() string {
	switch k {
	case EventTableDef:
		return "table-def"
	case EventRows:
		return "rows"
	case EventTableEnd:
		return "table-end"
	case EventIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one logical unit of parsed meaning from a source. Payload fields
// are populated according to Kind; Offset is the byte offset of the statement
// that produced the event (live sources report 0).
type Event struct {
	Kind  EventKind
	Table string

	// Def is set for EventTableDef.
	Def *schema.Table

	// Rows is set for EventRows: row tuples aligned to the table's column
	// order at emission time.
	Rows [][]Literal

	// Fragment is set for EventIgnored: a truncated copy of the statement
	// head, for diagnostics.
	Fragment string

	Offset int64
}

// ParseError reports a malformed statement. It is recoverable: the reader has
// already skipped to the next statement boundary, so the caller may either
// abort the run or call Next again to continue.
type ParseError struct {
	Offset int64
	Table  string // partially identified table, "" when unknown
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("dump: parse error at byte %d (table %s): %s", e.Offset, e.Table, e.Msg)
	}
	return fmt.Sprintf("dump: parse error at byte %d: %s", e.Offset, e.Msg)
}
