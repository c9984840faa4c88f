// Package staging materializes source rows and destination templates for
// every crosswalk table and applies the field mappings to produce each
// table's raw load.
package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/corrections"
	"github.com/johndauphine/crosswalk/internal/crosswalk"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/schema"
	"github.com/johndauphine/crosswalk/internal/source"
)

// Issue is a problem met while staging. Issues never stop staging; the
// affected cell is left null or the table is left without source rows.
type Issue struct {
	Table catalog.TableID
	Field string
	Row   int // -1 for table-level issues
	Err   error
}

func (i Issue) String() string {
	if i.Row < 0 {
		return fmt.Sprintf("%s: %v", i.Table, i.Err)
	}
	return fmt.Sprintf("%s.%s row %d: %v", i.Table, i.Field, i.Row, i.Err)
}

// Result is a staged catalog and any issues met building it.
type Result struct {
	Catalog *catalog.Catalog
	Issues  []Issue
}

// Builder stages a crosswalk against a source.
type Builder struct {
	reader source.Reader
	schema *schema.Schema
}

// NewBuilder creates a builder. The schema supplies destination templates,
// uniqueness rules and expected-empty flags.
func NewBuilder(r source.Reader, s *schema.Schema) *Builder {
	return &Builder{reader: r, schema: s}
}

// Stage creates one catalog entry per crosswalk table, in declaration
// order. Only context cancellation returns an error.
func (b *Builder) Stage(ctx context.Context, cw *crosswalk.Crosswalk) (*Result, error) {
	res := &Result{Catalog: catalog.New()}

	for _, id := range cw.IDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rules, _ := cw.Rules(id)
		e := catalog.NewEntry(id)
		e.SourceTable = rules.Source
		e.CodeKeyed = rules.CodeKeyed
		e.Mapping = cw.Mapping(id)

		if t, ok := b.schema.Table(id); ok {
			e.Template = catalog.NewFrame(t.ColumnNames()...)
			e.UniqueGroups = t.UniqueGroups()
			e.ExpectedEmpty = t.ExpectedEmpty
		}

		if rules.Source != "" {
			frame, err := b.reader.ReadTable(ctx, rules.Source)
			switch {
			case err == nil:
				e.Source = frame
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case errors.Is(err, source.ErrTableNotFound) && e.ExpectedEmpty:
				logging.Debug("%s: source %s absent, table is expected empty", id, rules.Source)
			default:
				res.Issues = append(res.Issues, Issue{Table: id, Row: -1, Err: fmt.Errorf("reading %s: %w", rules.Source, err)})
			}
		}

		if e.Source != nil && len(e.Mapping) > 0 {
			raw, issues := Apply(id, e.Mapping, e.Source)
			e.RawLoad = raw
			res.Issues = append(res.Issues, issues...)
		}

		if err := res.Catalog.Add(e); err != nil {
			return nil, err
		}
		logging.Debug("Staged %s: %d source rows", id, e.Source.Len())
	}
	return res, nil
}

// Apply evaluates mappings over every source row. The result always has
// exactly one row per source row. A direct mapping whose column is absent
// from the source yields nulls; the validator reports the missing column.
// Blank strings in key fields become null.
func Apply(id catalog.TableID, mapping []catalog.FieldMapping, src *catalog.Frame) (*catalog.Frame, []Issue) {
	fields := make([]string, len(mapping))
	for i, m := range mapping {
		fields[i] = m.Field
	}
	out := catalog.NewFrame(fields...)
	out.Rows = make([][]any, src.Len())

	var issues []Issue
	for r := 0; r < src.Len(); r++ {
		row := src.Row(r)
		vals := make([]any, len(mapping))
		for i, m := range mapping {
			switch m.Kind {
			case catalog.Direct:
				vals[i], _ = row.Lookup(m.Source)
			case catalog.Calculated:
				v, err := m.Derive(row)
				if err != nil {
					issues = append(issues, Issue{Table: id, Field: m.Field, Row: r, Err: err})
					continue
				}
				vals[i] = v
			case catalog.Blank:
				vals[i] = nil
			}
			if m.IsKey() && catalog.IsBlank(vals[i]) {
				vals[i] = nil
			}
		}
		out.Rows[r] = vals
	}
	return out, issues
}

// Applied records the outcome of one correction set.
type Applied struct {
	Spec   corrections.Spec
	Result corrections.Result
}

// ApplyCorrections merges correction sets into staged raw loads. A set
// naming a table with nothing staged is an error.
func ApplyCorrections(cat *catalog.Catalog, sets []*corrections.Set) ([]Applied, error) {
	out := make([]Applied, 0, len(sets))
	for _, s := range sets {
		e, ok := cat.Get(s.Spec.Table)
		if !ok {
			return nil, fmt.Errorf("correction file %s: table %s is not in the catalog", s.Spec.File, s.Spec.Table)
		}
		res, err := s.Apply(e)
		if err != nil {
			return nil, fmt.Errorf("correction file %s: %w", s.Spec.File, err)
		}
		logging.Info("Applied %d corrections from %s to %s.%s (%d unmatched)",
			res.Applied, s.Spec.File, s.Spec.Table, s.Spec.Field, len(res.Unmatched))
		out = append(out, Applied{Spec: s.Spec, Result: res})
	}
	return out, nil
}
