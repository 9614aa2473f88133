// Package convert drives a full conversion run: it pulls schema and row
// events from a source, translates table definitions, coerces row values and
// loads them into the SQLite destination under bounded transactions.
//
// The run is a two-goroutine pipeline. The producer reads the source and
// feeds a bounded channel; the consumer owns all destination state and
// processes events strictly in stream order, so per-table sequencing
// (definition before rows, rows before finalization) is preserved without
// locking. Cancellation is honored between events, never inside a batch.
package convert

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"mysql2sqlite/internal/coerce"
	"mysql2sqlite/internal/dump"
	"mysql2sqlite/internal/progress"
	"mysql2sqlite/internal/schema"
	"mysql2sqlite/internal/source"
	"mysql2sqlite/internal/sqlite"
)

// Options tunes a run.
type Options struct {
	// BatchSize is the destination commit granularity. <= 0 selects
	// sqlite.DefaultBatchSize.
	BatchSize int
	// Buffer is the event channel depth. <= 0 selects 4.
	Buffer int
	// Filter decides per table whether it is converted. nil converts all.
	// A filtered table's events are drained and discarded.
	Filter func(table string) bool
	// Coerce tunes value conversion.
	Coerce coerce.Options
	// Sink observes milestones. nil selects progress.Nop.
	Sink progress.Sink
}

// Run converts everything src yields into db and reports the outcome. The
// returned error is run-fatal only; per-table and per-row failures land in
// the Report.
func Run(ctx context.Context, src source.Source, db *sqlite.DB, opts Options) (*Report, error) {
	if opts.Sink == nil {
		opts.Sink = progress.Nop{}
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 4
	}

	events := make(chan dump.Event, buffer)
	var parseErrs atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		for {
			ev, err := src.Next(ctx)
			if err != nil {
				if err == io.EOF {
					return nil
				}
				var pe *dump.ParseError
				if errors.As(err, &pe) {
					// Recoverable: the reader already resynced to the next
					// statement. Count it and keep going.
					parseErrs.Add(1)
					opts.Sink.Error(pe.Table, pe)
					continue
				}
				return err
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	c := &consumer{ctx: ctx, db: db, opts: opts, report: &Report{}}
	g.Go(func() error {
		for ev := range events {
			if err := c.handle(ev); err != nil {
				return err
			}
		}
		return c.finish()
	})

	err := g.Wait()
	c.report.ParseErrors = parseErrs.Load()
	if err != nil {
		return c.report, err
	}
	opts.Sink.RunFinished(len(c.report.Tables), c.report.TotalWritten())
	return c.report, nil
}

// consumer owns destination state. It runs in a single goroutine.
type consumer struct {
	ctx    context.Context
	db     *sqlite.DB
	opts   Options
	report *Report

	// current table, nil between TableEnd and the next TableDef
	cur *tableRun
}

// tableRun is the load state for one table: created, loading, then finalized
// on TableEnd.
type tableRun struct {
	def     schema.Table
	writer  *sqlite.BatchWriter
	rep     TableReport
	dead    bool // table-fatal error seen; drain remaining events
	drained bool // filtered out; drain without reporting rows
}

func (c *consumer) handle(ev dump.Event) error {
	switch ev.Kind {
	case dump.EventTableDef:
		return c.beginTable(ev)
	case dump.EventRows:
		return c.loadRows(ev)
	case dump.EventTableEnd:
		return c.endTable(ev)
	case dump.EventIgnored:
		return nil
	default:
		return nil
	}
}

func (c *consumer) beginTable(ev dump.Event) error {
	if c.cur != nil {
		// Sources emit TableEnd before the next definition; a missing one
		// means the stream is out of order. Finalize defensively.
		if err := c.endTable(dump.Event{Kind: dump.EventTableEnd, Table: c.cur.def.Name}); err != nil {
			return err
		}
	}

	run := &tableRun{rep: TableReport{Name: ev.Table}}
	c.cur = run

	if c.opts.Filter != nil && !c.opts.Filter(ev.Table) {
		run.rep.Filtered = true
		run.drained = true
		c.opts.Sink.TableSkipped(ev.Table, "filtered")
		return nil
	}

	translated, err := schema.Translate(*ev.Def)
	if err != nil {
		// Unsupported schema fails the whole table; its rows drain.
		run.rep.Err = err.Error()
		run.dead = true
		c.opts.Sink.Error(ev.Table, err)
		return nil
	}
	run.def = translated

	if err := c.db.CreateTable(c.ctx, translated); err != nil {
		return err
	}
	// Indexes go in before loading so UNIQUE violations surface as batch
	// write failures rather than a run-fatal index build at the end.
	if err := c.db.CreateIndexes(c.ctx, translated); err != nil {
		return err
	}
	run.writer = sqlite.NewBatchWriter(c.db, translated, c.opts.BatchSize)
	c.opts.Sink.TableStarted(ev.Table)
	return nil
}

func (c *consumer) loadRows(ev dump.Event) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	run := c.cur
	if run == nil {
		// Rows for a table that was never defined. There is nowhere to put
		// them; account for the loss.
		c.report.Tables = append(c.report.Tables, TableReport{
			Name:      ev.Table,
			Attempted: int64(len(ev.Rows)),
			Skipped:   int64(len(ev.Rows)),
			Err:       "rows without a table definition",
		})
		return nil
	}
	if run.drained {
		return nil
	}
	run.rep.Attempted += int64(len(ev.Rows))
	if run.dead {
		run.rep.Skipped += int64(len(ev.Rows))
		return nil
	}

	before := run.writer.Written()
	for _, raw := range ev.Rows {
		row, err := coerce.Row(raw, &run.def, c.opts.Coerce)
		if err != nil {
			var ve *coerce.ValueError
			if errors.As(err, &ve) {
				run.rep.Skipped++
				c.opts.Sink.Error(run.def.Name, ve)
				continue
			}
			return err
		}
		if err := run.writer.Add(c.ctx, row); err != nil {
			var we *sqlite.WriteError
			if errors.As(err, &we) {
				// The whole batch rolled back; its rows are lost but the
				// table keeps loading.
				run.rep.Skipped += int64(we.Rows)
				run.rep.Err = we.Error()
				c.opts.Sink.Error(run.def.Name, we)
				continue
			}
			return err
		}
	}
	if n := run.writer.Written() - before; n > 0 {
		c.opts.Sink.BatchCommitted(run.def.Name, n)
	}
	return nil
}

func (c *consumer) endTable(ev dump.Event) error {
	run := c.cur
	c.cur = nil
	if run == nil {
		return nil
	}
	defer func() { c.report.Tables = append(c.report.Tables, run.rep) }()

	if run.drained || run.dead {
		return nil
	}

	if err := run.writer.Flush(c.ctx); err != nil {
		var we *sqlite.WriteError
		if errors.As(err, &we) {
			run.rep.Skipped += int64(we.Rows)
			run.rep.Err = we.Error()
			c.opts.Sink.Error(run.def.Name, we)
		} else {
			return err
		}
	}
	run.rep.Written = run.writer.Written()
	c.opts.Sink.TableFinished(run.def.Name, run.rep.Written, run.rep.Skipped)
	return nil
}

// finish closes out a table left open by a truncated stream.
func (c *consumer) finish() error {
	if c.cur != nil {
		return c.endTable(dump.Event{Kind: dump.EventTableEnd, Table: c.cur.def.Name})
	}
	return nil
}
