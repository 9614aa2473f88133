package convert

import (
	"fmt"
	"strings"
)

// TableReport carries per-table row accounting for one run.
type TableReport struct {
	Name      string
	Attempted int64 // rows pulled from the source
	Written   int64 // rows committed to the destination
	Skipped   int64 // rows dropped (bad values, failed batches)
	Filtered  bool  // excluded by the table filter, nothing attempted
	Err       string
}

// Report summarizes a conversion run.
type Report struct {
	Tables      []TableReport
	ParseErrors int64 // malformed statements skipped while reading a dump
}

// TotalWritten sums committed rows across tables.
func (r *Report) TotalWritten() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Written
	}
	return n
}

// Failed reports whether the run carried any non-clean outcome: skipped rows,
// failed tables or recovered parse errors.
func (r *Report) Failed() bool {
	if r.ParseErrors > 0 {
		return true
	}
	for _, t := range r.Tables {
		if t.Err != "" || t.Skipped > 0 {
			return true
		}
	}
	return false
}

// Summary renders a short human-readable account, one line per table.
func (r *Report) Summary() string {
	var sb strings.Builder
	for _, t := range r.Tables {
		switch {
		case t.Filtered:
			fmt.Fprintf(&sb, "%s: filtered out\n", t.Name)
		case t.Err != "":
			fmt.Fprintf(&sb, "%s: FAILED (%s), %d/%d rows written\n", t.Name, t.Err, t.Written, t.Attempted)
		case t.Skipped > 0:
			fmt.Fprintf(&sb, "%s: %d/%d rows written, %d skipped\n", t.Name, t.Written, t.Attempted, t.Skipped)
		default:
			fmt.Fprintf(&sb, "%s: %d rows written\n", t.Name, t.Written)
		}
	}
	if r.ParseErrors > 0 {
		fmt.Fprintf(&sb, "%d malformed statements skipped\n", r.ParseErrors)
	}
	fmt.Fprintf(&sb, "total: %d rows across %d tables\n", r.TotalWritten(), len(r.Tables))
	return sb.String()
}
