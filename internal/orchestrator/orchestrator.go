// Package orchestrator wires staging, validation, key resolution and loading
// into one migration run, and records every run in the ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/checkpoint"
	"github.com/johndauphine/crosswalk/internal/config"
	"github.com/johndauphine/crosswalk/internal/corrections"
	"github.com/johndauphine/crosswalk/internal/crosswalk"
	"github.com/johndauphine/crosswalk/internal/load"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/notify"
	"github.com/johndauphine/crosswalk/internal/schema"
	"github.com/johndauphine/crosswalk/internal/source"
	"github.com/johndauphine/crosswalk/internal/staging"
	"github.com/johndauphine/crosswalk/internal/tables"
	"github.com/johndauphine/crosswalk/internal/target"
	"github.com/johndauphine/crosswalk/internal/validate"
)

// ErrReferentialWarnings stops a run before key resolution when the
// validator found referential violations and proceeding was not allowed.
var ErrReferentialWarnings = errors.New("referential violations found; rerun with --yes or set migration.proceed_on_referential_warnings")

// Options are per-invocation settings that do not belong in the config file.
type Options struct {
	ConfigPath string
	StateFile  string
	RunID      string
	// DryRun forces the recording destination.
	DryRun bool
	// Yes proceeds past referential warnings.
	Yes bool
	// Quiet hides the progress bar.
	Quiet bool
}

// Orchestrator coordinates one migration.
type Orchestrator struct {
	config    *config.Config
	opts      Options
	schema    *schema.Schema
	crosswalk *crosswalk.Crosswalk
	reader    source.Reader

	dest  target.Destination
	state checkpoint.StateBackend

	closeSource func() error
	notifier    *notify.Notifier

	// out receives history and status listings.
	out io.Writer
}

// Staged is a staged and validated catalog.
type Staged struct {
	Catalog *catalog.Catalog
	Report  *validate.Report
	Applied []staging.Applied
}

// New builds the crosswalk against the destination schema and opens the
// source. A crosswalk.RegistryError is wrapped, so errors.As still finds it.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	s, err := tables.LoadSchema(cfg.Migration.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("loading destination schema: %w", err)
	}
	ids, err := cfg.ExpectedEmptyIDs()
	if err != nil {
		return nil, err
	}
	if err := s.MarkExpectedEmpty(ids); err != nil {
		return nil, err
	}

	cw, err := tables.Registry().Build(s)
	if err != nil {
		return nil, fmt.Errorf("building crosswalk: %w", err)
	}

	o := &Orchestrator{
		config:    cfg,
		opts:      opts,
		schema:    s,
		crosswalk: cw,
		notifier:  notify.New(&cfg.Notify.Slack),
		out:       os.Stdout,
	}
	if err := o.openSource(); err != nil {
		return nil, err
	}
	logging.Debug("Crosswalk ready: %d tables (%s)", len(cw.IDs()), cfg)
	return o, nil
}

func (o *Orchestrator) openSource() error {
	switch o.config.Source.Type {
	case "memory":
		o.reader = tables.Sample()
	default:
		pool, err := source.NewPool(o.config.Source.Type, o.config.SourceDSN(),
			o.config.Source.Schema, o.config.Migration.MaxConnections)
		if err != nil {
			return fmt.Errorf("connecting to source: %w", err)
		}
		o.reader = pool
		o.closeSource = pool.Close
	}
	return nil
}

func (o *Orchestrator) destination(ctx context.Context) (target.Destination, error) {
	if o.dest != nil {
		return o.dest, nil
	}
	if o.opts.DryRun || o.config.Target.Type == "dryrun" {
		logging.Info("Dry run: writes are recorded, not performed")
		o.dest = target.NewDryRun()
		return o.dest, nil
	}
	pg, err := target.NewPostgres(ctx, o.config.TargetDSN(), o.config.Migration.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("connecting to target: %w", err)
	}
	o.dest = pg
	return o.dest, nil
}

func (o *Orchestrator) ledger() (checkpoint.StateBackend, error) {
	if o.state != nil {
		return o.state, nil
	}
	path := o.opts.StateFile
	if path == "" {
		path = o.config.Migration.StateFile
	}
	st, err := checkpoint.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	o.state = st
	return o.state, nil
}

// Close releases the source, destination and ledger.
func (o *Orchestrator) Close() {
	if o.closeSource != nil {
		if err := o.closeSource(); err != nil {
			logging.Warn("Closing source: %v", err)
		}
	}
	if o.dest != nil {
		o.dest.Close()
	}
	if o.state != nil {
		if err := o.state.Close(); err != nil {
			logging.Warn("Closing run ledger: %v", err)
		}
	}
}

// Crosswalk returns the built crosswalk.
func (o *Orchestrator) Crosswalk() *crosswalk.Crosswalk { return o.crosswalk }

// Schema returns the destination schema in use.
func (o *Orchestrator) Schema() *schema.Schema { return o.schema }

func (o *Orchestrator) sampleSize() int {
	return o.config.Migration.SampleSize
}

// Stage reads the source, applies correction files and runs every
// pre-resolution check. Only a cancelled context or an unreadable
// correction file is an error; everything else lands in the report.
func (o *Orchestrator) Stage(ctx context.Context) (*Staged, error) {
	logging.Info("Staging %d tables", len(o.crosswalk.IDs()))
	res, err := staging.NewBuilder(o.reader, o.schema).Stage(ctx, o.crosswalk)
	if err != nil {
		return nil, err
	}

	report := validate.NewReport("validation")
	report.AddStagingIssues(res.Issues)

	var sets []*corrections.Set
	for _, spec := range o.config.CorrectionSpecs() {
		set, err := corrections.Load(spec)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	applied, err := staging.ApplyCorrections(res.Catalog, sets)
	if err != nil {
		return nil, err
	}
	report.AddUnmatchedCorrections(applied, o.sampleSize())

	report.Merge(validate.New(o.schema, o.sampleSize()).Run(res.Catalog))
	return &Staged{Catalog: res.Catalog, Report: report, Applied: applied}, nil
}

// Plan computes the dependency-ordered load plan.
func (o *Orchestrator) Plan() (*load.Plan, error) {
	return load.BuildPlan(o.crosswalk.Order(), o.crosswalk.Graph(), o.schema)
}

// PrintPlan logs the load plan with each table's mapping.
func (o *Orchestrator) PrintPlan() error {
	plan, err := o.Plan()
	if err != nil {
		return err
	}
	logging.Info("Load plan (%d steps):", len(plan.Steps))
	for i, step := range plan.Steps {
		logging.Info("%2d. %s", i+1, step)
		for _, id := range step.Tables {
			rules, _ := o.crosswalk.Rules(id)
			t, _ := o.schema.Table(id)
			mode := schema.LoadBulk
			if t != nil {
				mode = t.Load
				if t.ExpectedEmpty {
					mode = "skip (expected empty)"
				}
			}
			logging.Info("    %s <- %s [%s]", id, rules.Source, mode)
			for _, m := range rules.Fields {
				logging.Debug("      %s", m.Describe())
			}
		}
	}
	return nil
}
