// Package load writes resolved payloads to the destination in dependency
// order and tracks which tables succeeded, failed or were never attempted.
package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/graph"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/progress"
	"github.com/johndauphine/crosswalk/internal/schema"
	"github.com/johndauphine/crosswalk/internal/target"
)

// Status is a table's load state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAttempted Status = "attempted"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// LoadFailure is a per-table load error.
type LoadFailure struct {
	Table catalog.TableID
	Err   error
}

func (f *LoadFailure) Error() string {
	return fmt.Sprintf("loading %s: %v", f.Table, f.Err)
}

func (f *LoadFailure) Unwrap() error { return f.Err }

// Outcome is the final state of one table.
type Outcome struct {
	Table  catalog.TableID
	Status Status
	Rows   int
	// Reason explains why a pending table was never attempted.
	Reason string
	Err    error
}

// Result tracks the three outcome sets of a run.
type Result struct {
	Successes []catalog.TableID
	Fails     []catalog.TableID
	Remaining []catalog.TableID
	// Attempts lists tables in the order their attempts were recorded.
	Attempts []catalog.TableID
	Outcomes map[catalog.TableID]*Outcome
}

// Outcome returns one table's outcome.
func (r *Result) Outcome(id catalog.TableID) (*Outcome, bool) {
	o, ok := r.Outcomes[id]
	return o, ok
}

// Loader writes catalog payloads through a destination.
type Loader struct {
	dest    target.Destination
	schema  *schema.Schema
	graph   *graph.Graph
	tracker *progress.Tracker
}

// NewLoader creates a loader. tracker may be nil.
func NewLoader(dest target.Destination, s *schema.Schema, g *graph.Graph, tracker *progress.Tracker) *Loader {
	return &Loader{dest: dest, schema: s, graph: g, tracker: tracker}
}

// Load runs the plan. One table's failure never stops the run; tables
// depending on a table that was not loaded stay pending. A cancelled
// context stops the run between steps.
func (l *Loader) Load(ctx context.Context, cat *catalog.Catalog, plan *Plan) *Result {
	res := &Result{Outcomes: make(map[catalog.TableID]*Outcome)}
	for _, id := range plan.Tables() {
		res.Outcomes[id] = &Outcome{Table: id, Status: StatusPending}
	}

	if l.tracker != nil {
		var total int64
		for _, id := range plan.Tables() {
			if e, ok := cat.Get(id); ok && !e.ExpectedEmpty {
				total += int64(e.Payload.Len())
			}
		}
		l.tracker.SetTotal(total)
		defer l.tracker.Finish()
	}

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			logging.Warn("Load interrupted: %v", err)
			break
		}
		l.runStep(ctx, cat, step, res)
	}

	for _, id := range plan.Tables() {
		if res.Outcomes[id].Status == StatusPending {
			res.Remaining = append(res.Remaining, id)
		}
	}
	return res
}

func (l *Loader) runStep(ctx context.Context, cat *catalog.Catalog, step Step, res *Result) {
	var ready []*catalog.TableEntry
	for _, id := range step.Tables {
		out := res.Outcomes[id]
		e, ok := cat.Get(id)
		switch {
		case !ok:
			out.Reason = "not in catalog"
		case e.ExpectedEmpty:
			l.succeed(ctx, res, e, 0)
			logging.Info("%s: expected empty, recorded as loaded", id)
			continue
		case e.Failure != nil:
			out.Reason = fmt.Sprintf("blocked: %v", e.Failure)
		case !e.Resolved():
			out.Reason = "keys not resolved"
		default:
			if p, blocked := l.unloadedParent(id, res); blocked {
				out.Reason = fmt.Sprintf("parent %s was not loaded", p)
			} else {
				ready = append(ready, e)
				continue
			}
		}
		logging.Warn("Skipping %s: %s", id, out.Reason)
	}
	if len(ready) == 0 {
		return
	}

	for _, e := range ready {
		res.Outcomes[e.ID].Status = StatusAttempted
	}

	if len(ready) == 1 {
		e := ready[0]
		if err := l.write(ctx, l.dest, e); err != nil {
			l.fail(res, e.ID, err)
			return
		}
		l.succeed(ctx, res, e, e.Payload.Len())
		return
	}

	var failed catalog.TableID
	err := l.dest.InTx(ctx, func(s target.Sink) error {
		for _, e := range ready {
			if err := l.write(ctx, s, e); err != nil {
				failed = e.ID
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, e := range ready {
			cause := err
			if e.ID != failed {
				cause = fmt.Errorf("rolled back with group %s: %w", step.Group, err)
			}
			l.fail(res, e.ID, cause)
		}
		return
	}
	for _, e := range ready {
		l.succeed(ctx, res, e, e.Payload.Len())
	}
}

// unloadedParent returns a parent that has not succeeded. Parents inside the
// same step are written in the same transaction and do not count.
func (l *Loader) unloadedParent(id catalog.TableID, res *Result) (catalog.TableID, bool) {
	if l.graph == nil {
		return catalog.TableID{}, false
	}
	for _, p := range l.graph.Parents(id) {
		out, ok := res.Outcomes[p]
		if !ok {
			return p, true
		}
		if out.Status == StatusFailed || (out.Status == StatusPending && out.Reason != "") {
			return p, true
		}
	}
	return catalog.TableID{}, false
}

func (l *Loader) write(ctx context.Context, sink target.Sink, e *catalog.TableEntry) error {
	if e.Payload.Len() == 0 {
		return nil
	}
	mode := schema.LoadBulk
	if t, ok := l.schema.Table(e.ID); ok && t.Load != "" {
		mode = t.Load
	}
	logging.Debug("Writing %s: %d rows (%s)", e.ID, e.Payload.Len(), mode)
	if l.tracker != nil {
		l.tracker.Describe(e.ID.String())
	}
	switch mode {
	case schema.LoadStatements:
		return sink.Execute(ctx, e.ID, target.InsertStatements(e.ID, e.Payload.Columns, e.Payload.Rows))
	default:
		return sink.BulkWrite(ctx, e.ID, e.Payload.Columns, e.Payload.Rows)
	}
}

func (l *Loader) succeed(ctx context.Context, res *Result, e *catalog.TableEntry, rows int) {
	out := res.Outcomes[e.ID]
	out.Status = StatusSucceeded
	out.Rows = rows
	out.Reason = ""
	res.Successes = append(res.Successes, e.ID)
	res.Attempts = append(res.Attempts, e.ID)
	if l.tracker != nil {
		l.tracker.Add(int64(rows))
	}
	if rows > 0 {
		logging.Info("Loaded %s (%d rows)", e.ID, rows)
		l.resetSequence(ctx, e)
	}
}

func (l *Loader) fail(res *Result, id catalog.TableID, err error) {
	lf := &LoadFailure{Table: id, Err: err}
	var existing *LoadFailure
	if errors.As(err, &existing) {
		lf = existing
	}
	out := res.Outcomes[id]
	out.Status = StatusFailed
	out.Err = lf
	res.Fails = append(res.Fails, id)
	res.Attempts = append(res.Attempts, id)
	logging.Error("%v", lf)
}

// resetSequence moves a surrogate key's sequence past the loaded values.
// Failure is logged, not fatal: the rows are already committed.
func (l *Loader) resetSequence(ctx context.Context, e *catalog.TableEntry) {
	r, ok := l.dest.(target.SequenceResetter)
	if !ok || e.CodeKeyed {
		return
	}
	pk, ok := e.PrimaryKey()
	if !ok {
		return
	}
	if err := r.ResetSequence(ctx, e.ID, pk.Field); err != nil {
		logging.Warn("%v", err)
	}
}
