package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/checkpoint"
	"github.com/johndauphine/crosswalk/internal/graph"
	"github.com/johndauphine/crosswalk/internal/keys"
	"github.com/johndauphine/crosswalk/internal/load"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/progress"
	"github.com/johndauphine/crosswalk/internal/validate"
)

// Run phases recorded in the ledger.
const (
	PhaseStaging   = "staging"
	PhaseResolving = "resolving"
	PhaseLoading   = "loading"
	PhaseDone      = "done"
)

// MigrationResult is the final summary of a run.
type MigrationResult struct {
	RunID           string         `json:"run_id"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	TablesTotal     int            `json:"tables_total"`
	TablesSuccess   int            `json:"tables_success"`
	TablesFailed    int            `json:"tables_failed"`
	TablesRemaining int            `json:"tables_remaining"`
	RowsLoaded      int64          `json:"rows_loaded"`
	RowsBlocked     int            `json:"rows_blocked"`
	Findings        map[string]int `json:"findings,omitempty"`
	FailedTables    []string       `json:"failed_tables"`
	RemainingTables []string       `json:"remaining_tables"`
	TableStats      []TableResult  `json:"table_stats"`
	Error           string         `json:"error,omitempty"`
}

// TableResult is one table's line in the summary.
type TableResult struct {
	Table   string `json:"table"`
	Status  string `json:"status"`
	Rows    int    `json:"rows"`
	Blocked int    `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Run executes the full pipeline: stage, validate, resolve keys, check
// referential closure, load in dependency order and record the outcome of
// every table. Per-table failures never abort the run; the returned error
// is set only when the run could not complete.
func (o *Orchestrator) Run(ctx context.Context) (*MigrationResult, error) {
	state, err := o.ledger()
	if err != nil {
		return nil, err
	}

	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	result := &MigrationResult{
		RunID:     runID,
		StartedAt: time.Now(),
		Findings:  make(map[string]int),
	}
	if err := state.CreateRun(runID, o.config.Redacted(), o.opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	logging.Info("Starting run %s: %s", runID, o.config)
	o.notify(o.notifier.RunStarted(runID, o.sourceName(), o.targetName(), len(o.crosswalk.IDs())))

	findings := 0
	finish := func(status string, runErr error) (*MigrationResult, error) {
		result.Status = status
		result.CompletedAt = time.Now()
		result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
			result.Error = msg
		}
		if err := state.UpdatePhase(runID, PhaseDone); err != nil {
			logging.Warn("Recording phase: %v", err)
		}
		if err := state.CompleteRun(runID, status, msg, findings); err != nil {
			logging.Warn("Recording run completion: %v", err)
		}
		o.notifyResult(result, runErr)
		return result, runErr
	}

	o.phase(state, runID, PhaseStaging)
	staged, err := o.Stage(ctx)
	if err != nil {
		return finish(statusFor(ctx, checkpoint.RunFailed), err)
	}
	report := staged.Report
	report.Print()
	findings = report.Len()
	countFindings(result, report)

	if n := report.Count(validate.ReferentialViolation); n > 0 && !o.proceedOnReferentialWarnings() {
		logging.Error("%d referential violations; nothing was loaded", n)
		return finish(checkpoint.RunAborted, ErrReferentialWarnings)
	}

	o.phase(state, runID, PhaseResolving)
	policy, err := keys.ParsePolicy(o.config.Migration.ForeignKeyPolicy)
	if err != nil {
		return finish(checkpoint.RunFailed, err)
	}
	resolution := keys.NewResolver(o.crosswalk.Order(), policy).Resolve(staged.Catalog)
	if n := len(resolution.Failures); n > 0 {
		logging.Warn("Key resolution: %d tables blocked, %d rows quarantined",
			len(resolution.TableFailures()), len(resolution.RowFailures()))
		for _, f := range resolution.Failures {
			logging.Debug("  %v", f)
		}
		for _, b := range blockedDependents(o.crosswalk.Graph(), resolution.Failures) {
			if len(b.Dependents) > 0 {
				logging.Warn("%s did not resolve; dependents blocked: %s", b.Table, joinIDs(b.Dependents))
			}
		}
	}
	closure := validate.New(o.schema, o.sampleSize()).Closure(staged.Catalog)
	closure.Print()
	findings += closure.Len()
	countFindings(result, closure)

	o.phase(state, runID, PhaseLoading)
	plan, err := o.Plan()
	if err != nil {
		return finish(checkpoint.RunFailed, err)
	}
	dest, err := o.destination(ctx)
	if err != nil {
		return finish(checkpoint.RunFailed, err)
	}
	var tracker *progress.Tracker
	if !o.opts.Quiet && o.config.ShowProgress() {
		tracker = progress.New()
	}
	loaded := load.NewLoader(dest, o.schema, o.crosswalk.Graph(), tracker).Load(ctx, staged.Catalog, plan)

	o.collect(state, runID, result, staged.Catalog, plan, loaded)
	o.printSummary(result)

	if err := ctx.Err(); err != nil {
		return finish(checkpoint.RunAborted, err)
	}
	switch {
	case result.TablesFailed == 0 && result.TablesRemaining == 0:
		return finish(checkpoint.RunSucceeded, nil)
	case result.TablesSuccess > 0:
		return finish(checkpoint.RunPartial, nil)
	default:
		return finish(checkpoint.RunFailed, nil)
	}
}

func (o *Orchestrator) proceedOnReferentialWarnings() bool {
	return o.opts.Yes || o.config.Migration.ProceedOnReferentialWarnings
}

func (o *Orchestrator) phase(state checkpoint.StateBackend, runID, phase string) {
	logging.Debug("Run %s: %s", runID, phase)
	if err := state.UpdatePhase(runID, phase); err != nil {
		logging.Warn("Recording phase %s: %v", phase, err)
	}
}

func statusFor(ctx context.Context, status string) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return checkpoint.RunAborted
	}
	return status
}

func countFindings(result *MigrationResult, r *validate.Report) {
	for k, n := range r.Summary() {
		result.Findings[k.String()] += n
	}
}

// collect fills the summary and records each table's outcome in plan order.
func (o *Orchestrator) collect(state checkpoint.StateBackend, runID string, result *MigrationResult,
	cat *catalog.Catalog, plan *load.Plan, loaded *load.Result) {
	for _, id := range plan.Tables() {
		out, ok := loaded.Outcome(id)
		if !ok {
			continue
		}
		tr := TableResult{
			Table:  id.String(),
			Status: string(out.Status),
			Rows:   out.Rows,
			Reason: out.Reason,
		}
		if out.Status == load.StatusPending {
			tr.Status = "remaining"
		}
		if out.Err != nil {
			tr.Error = out.Err.Error()
		}
		if e, ok := cat.Get(id); ok {
			tr.Blocked = len(e.Blocked)
		}

		result.TablesTotal++
		result.RowsBlocked += tr.Blocked
		switch out.Status {
		case load.StatusSucceeded:
			result.TablesSuccess++
			result.RowsLoaded += int64(out.Rows)
		case load.StatusFailed:
			result.TablesFailed++
			result.FailedTables = append(result.FailedTables, tr.Table)
			o.notify(o.notifier.TableFailed(runID, tr.Table, out.Err))
		default:
			result.TablesRemaining++
			result.RemainingTables = append(result.RemainingTables, tr.Table)
		}
		result.TableStats = append(result.TableStats, tr)

		if err := state.RecordTable(runID, checkpoint.TableOutcome{
			Table:   tr.Table,
			Status:  tr.Status,
			Rows:    tr.Rows,
			Blocked: tr.Blocked,
			Reason:  tr.Reason,
			Error:   tr.Error,
		}); err != nil {
			logging.Warn("Recording outcome of %s: %v", id, err)
		}
	}
}

// blockedTable is a table whose own keys failed to resolve, with every
// table that depends on it.
type blockedTable struct {
	Table      catalog.TableID
	Dependents []catalog.TableID
}

// blockedDependents returns the root table-level failures in resolution
// order. A failed table that descends from an earlier root is folded into
// that root.
func blockedDependents(g *graph.Graph, failures []*keys.KeyResolutionFailure) []blockedTable {
	covered := make(map[catalog.TableID]bool)
	var out []blockedTable
	for _, f := range failures {
		if !f.TableLevel() || covered[f.Table] {
			continue
		}
		covered[f.Table] = true
		deps := g.Descendants(f.Table)
		for _, d := range deps {
			covered[d] = true
		}
		out = append(out, blockedTable{Table: f.Table, Dependents: deps})
	}
	return out
}

func joinIDs(ids []catalog.TableID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

func (o *Orchestrator) printSummary(r *MigrationResult) {
	logging.Info("\nLoad Summary:")
	logging.Info("-------------")
	for _, t := range r.TableStats {
		switch t.Status {
		case string(load.StatusSucceeded):
			if t.Blocked > 0 {
				logging.Warn("%-25s OK %d rows (%d quarantined)", t.Table, t.Rows, t.Blocked)
			} else {
				logging.Info("%-25s OK %d rows", t.Table, t.Rows)
			}
		case string(load.StatusFailed):
			logging.Error("%-25s FAIL %s", t.Table, t.Error)
		default:
			logging.Warn("%-25s REMAINING %s", t.Table, t.Reason)
		}
	}
	logging.Info("%d succeeded, %d failed, %d remaining; %d rows loaded, %d rows quarantined",
		r.TablesSuccess, r.TablesFailed, r.TablesRemaining, r.RowsLoaded, r.RowsBlocked)
}

func (o *Orchestrator) notify(err error) {
	if err != nil {
		logging.Warn("Sending notification: %v", err)
	}
}

func (o *Orchestrator) notifyResult(r *MigrationResult, runErr error) {
	d := r.CompletedAt.Sub(r.StartedAt)
	switch {
	case runErr != nil || r.Status == checkpoint.RunFailed:
		if runErr == nil {
			runErr = fmt.Errorf("no table loaded")
		}
		o.notify(o.notifier.RunFailed(r.RunID, runErr, d))
	case r.Status == checkpoint.RunSucceeded:
		o.notify(o.notifier.RunCompleted(r.RunID, d, r.TablesSuccess, r.RowsLoaded, r.RowsBlocked))
	default:
		o.notify(o.notifier.RunCompletedWithErrors(r.RunID, d, r.TablesSuccess, r.TablesFailed,
			r.TablesRemaining, r.RowsLoaded, r.FailedTables, r.RemainingTables))
	}
}

func (o *Orchestrator) sourceName() string {
	switch o.config.Source.Type {
	case "mssql":
		return o.config.Source.Database
	case "sqlite":
		return o.config.Source.Path
	}
	return o.config.Source.Type
}

func (o *Orchestrator) targetName() string {
	if o.config.Target.Type == "postgres" && !o.opts.DryRun {
		return o.config.Target.Database
	}
	return "dryrun"
}
