package orchestrator

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/validate"
)

// duplicateHeader is the column layout of the duplicate export.
var duplicateHeader = []string{"table", "fields", "group", "value", "row", "identifier", "resolution_label"}

// ExportDuplicates stages the source and writes every composite-uniqueness
// violation to path as CSV for manual review. The resolution_label column
// is left blank for the reviewer; the reviewed file can be fed back as a
// correction file. It returns the number of duplicate groups written.
func (o *Orchestrator) ExportDuplicates(ctx context.Context, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := o.WriteDuplicates(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", path, cerr)
	}
	if err != nil {
		return 0, err
	}
	logging.Info("Wrote %d duplicate groups to %s", n, path)
	return n, nil
}

// WriteDuplicates writes one CSV line per offending row of every duplicate
// group, in dependency order.
func (o *Orchestrator) WriteDuplicates(ctx context.Context, w io.Writer) (int, error) {
	staged, err := o.Stage(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(duplicateHeader); err != nil {
		return 0, err
	}
	groups := 0
	for _, id := range o.crosswalk.Order() {
		e, ok := staged.Catalog.Get(id)
		if !ok {
			continue
		}
		for _, g := range validate.Duplicates(e) {
			groups++
			for i, row := range g.Rows {
				key := ""
				if i < len(g.Keys) {
					key = g.Keys[i]
				}
				rec := []string{
					id.String(),
					strings.Join(g.Fields, ","),
					strconv.Itoa(groups),
					g.Value,
					strconv.Itoa(row),
					key,
					"",
				}
				if err := cw.Write(rec); err != nil {
					return 0, err
				}
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return groups, nil
}
