package orchestrator

import (
	"context"
	"fmt"

	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/validate"
)

// Validate stages the source and runs every pre-resolution check without
// writing anything. It prints one line per table, then the findings, and
// fails when any finding was reported.
func (o *Orchestrator) Validate(ctx context.Context) (*validate.Report, error) {
	staged, err := o.Stage(ctx)
	if err != nil {
		return nil, err
	}
	report := staged.Report

	logging.Info("\nValidation Results:")
	logging.Info("-------------------")
	for _, id := range o.crosswalk.Order() {
		name := id.String()
		e, ok := staged.Catalog.Get(id)
		if !ok {
			logging.Error("%-30s MISSING", name)
			continue
		}
		n := len(report.ForTable(id))
		switch {
		case e.ExpectedEmpty && e.Source.Len() == 0:
			logging.Info("%-30s OK (expected empty)", name)
		case n == 0:
			logging.Info("%-30s OK %d rows", name, e.RawLoad.Len())
		default:
			logging.Warn("%-30s WARN %d rows, %d findings", name, e.RawLoad.Len(), n)
		}
	}
	report.Print()

	if !report.Empty() {
		return report, fmt.Errorf("validation reported %d findings", report.Len())
	}
	return report, nil
}
