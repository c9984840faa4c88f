package orchestrator

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/johndauphine/crosswalk/internal/checkpoint"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// ShowHistory lists every recorded run, newest first.
func (o *Orchestrator) ShowHistory() error {
	state, err := o.ledger()
	if err != nil {
		return err
	}
	runs, err := state.GetAllRuns()
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(o.out, "No runs recorded")
		return nil
	}

	t := o.newTable()
	t.AppendHeader(table.Row{"Run ID", "Started", "Duration", "Status", "Findings"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.StartedAt.Local().Format(historyTimeLayout), runDuration(r), r.Status, r.Findings})
	}
	t.Render()
	return nil
}

// ShowRunDetails prints one run and the outcome of each of its tables.
func (o *Orchestrator) ShowRunDetails(runID string) error {
	state, err := o.ledger()
	if err != nil {
		return err
	}
	run, err := state.GetRunByID(runID)
	if err != nil {
		return fmt.Errorf("reading run %s: %w", runID, err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	return o.printRun(state, run)
}

// ShowStatus prints the most recent run.
func (o *Orchestrator) ShowStatus() error {
	state, err := o.ledger()
	if err != nil {
		return err
	}
	runs, err := state.GetAllRuns()
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(o.out, "No runs recorded")
		return nil
	}
	return o.printRun(state, &runs[0])
}

func (o *Orchestrator) printRun(state checkpoint.StateBackend, run *checkpoint.Run) error {
	fmt.Fprintf(o.out, "Run:      %s\n", run.ID)
	fmt.Fprintf(o.out, "Status:   %s (phase %s)\n", run.Status, run.Phase)
	fmt.Fprintf(o.out, "Started:  %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(o.out, "Duration: %s\n", runDuration(*run))
	fmt.Fprintf(o.out, "Findings: %d\n", run.Findings)
	if run.ConfigPath != "" {
		fmt.Fprintf(o.out, "Config:   %s\n", run.ConfigPath)
	}
	if run.Error != "" {
		fmt.Fprintf(o.out, "Error:    %s\n", run.Error)
	}

	outcomes, err := state.GetTableOutcomes(run.ID)
	if err != nil {
		return fmt.Errorf("reading table outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		return nil
	}
	fmt.Fprintln(o.out)
	t := o.newTable()
	t.AppendHeader(table.Row{"Table", "Status", "Rows", "Quarantined", "Detail"})
	for _, oc := range outcomes {
		detail := oc.Error
		if detail == "" {
			detail = oc.Reason
		}
		t.AppendRow(table.Row{oc.Table, oc.Status, oc.Rows, oc.Blocked, detail})
	}
	t.Render()
	return nil
}

func (o *Orchestrator) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(o.out)
	t.SetStyle(table.StyleLight)
	return t
}

func runDuration(r checkpoint.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
