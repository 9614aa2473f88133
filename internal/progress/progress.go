// Package progress decouples the conversion engine from its observers. The
// engine reports milestones through a Sink; callers plug in logging or stay
// silent with Nop.
package progress

import "github.com/rs/zerolog"

// Sink receives conversion milestones. Implementations must be safe for use
// from a single goroutine; the engine never calls a Sink concurrently.
type Sink interface {
	TableStarted(table string)
	BatchCommitted(table string, rows int64)
	TableFinished(table string, written, skipped int64)
	TableSkipped(table, reason string)
	RunFinished(tables int, rows int64)
	Error(table string, err error)
}

// Nop discards all milestones.
type Nop struct{}

func (Nop) TableStarted(string)               {}
func (Nop) BatchCommitted(string, int64)      {}
func (Nop) TableFinished(string, int64, int64) {}
func (Nop) TableSkipped(string, string)       {}
func (Nop) RunFinished(int, int64)            {}
func (Nop) Error(string, error)               {}

// Logger reports milestones through zerolog. Batch commits log at debug so a
// default-level run prints one line per table, not per batch.
type Logger struct {
	Log zerolog.Logger
}

func (l Logger) TableStarted(table string) {
	l.Log.Info().Str("table", table).Msg("converting table")
}

func (l Logger) BatchCommitted(table string, rows int64) {
	l.Log.Debug().Str("table", table).Int64("rows", rows).Msg("batch committed")
}

func (l Logger) TableFinished(table string, written, skipped int64) {
	ev := l.Log.Info().Str("table", table).Int64("written", written)
	if skipped > 0 {
		ev = ev.Int64("skipped", skipped)
	}
	ev.Msg("table done")
}

func (l Logger) TableSkipped(table, reason string) {
	l.Log.Info().Str("table", table).Str("reason", reason).Msg("table skipped")
}

func (l Logger) RunFinished(tables int, rows int64) {
	l.Log.Info().Int("tables", tables).Int64("rows", rows).Msg("conversion finished")
}

func (l Logger) Error(table string, err error) {
	ev := l.Log.Error().Err(err)
	if table != "" {
		ev = ev.Str("table", table)
	}
	ev.Msg("conversion error")
}
