package target

import (
	"context"
	"sync"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// Write is one recorded write.
type Write struct {
	Table      catalog.TableID
	Columns    []string
	Rows       int
	Statements int
}

// DryRun records writes instead of performing them. Writes made inside a
// failed InTx are discarded, as a real transaction would be.
type DryRun struct {
	mu     sync.Mutex
	writes []Write
	fail   map[catalog.TableID]error
}

// NewDryRun creates an empty recorder.
func NewDryRun() *DryRun {
	return &DryRun{fail: make(map[catalog.TableID]error)}
}

// FailOn makes every write to id return err.
func (d *DryRun) FailOn(id catalog.TableID, err error) *DryRun {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[id] = err
	return d
}

// Writes returns committed writes in order.
func (d *DryRun) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out
}

// Tables returns the tables written, in commit order.
func (d *DryRun) Tables() []catalog.TableID {
	var out []catalog.TableID
	for _, w := range d.Writes() {
		out = append(out, w.Table)
	}
	return out
}

func (d *DryRun) BulkWrite(ctx context.Context, id catalog.TableID, columns []string, rows [][]any) error {
	return d.InTx(ctx, func(s Sink) error { return s.BulkWrite(ctx, id, columns, rows) })
}

func (d *DryRun) Execute(ctx context.Context, id catalog.TableID, statements []Statement) error {
	return d.InTx(ctx, func(s Sink) error { return s.Execute(ctx, id, statements) })
}

func (d *DryRun) InTx(ctx context.Context, fn func(Sink) error) error {
	tx := &dryRunTx{parent: d}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.writes = append(d.writes, tx.pending...)
	d.mu.Unlock()
	return nil
}

func (d *DryRun) Close() {}

// Ping always succeeds.
func (d *DryRun) Ping(context.Context) error { return nil }

func (d *DryRun) failure(id catalog.TableID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail[id]
}

type dryRunTx struct {
	parent  *DryRun
	pending []Write
}

func (t *dryRunTx) BulkWrite(_ context.Context, id catalog.TableID, columns []string, rows [][]any) error {
	if err := t.parent.failure(id); err != nil {
		return err
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	t.pending = append(t.pending, Write{Table: id, Columns: cols, Rows: len(rows)})
	return nil
}

func (t *dryRunTx) Execute(_ context.Context, id catalog.TableID, statements []Statement) error {
	if err := t.parent.failure(id); err != nil {
		return err
	}
	t.pending = append(t.pending, Write{Table: id, Rows: len(statements), Statements: len(statements)})
	return nil
}
