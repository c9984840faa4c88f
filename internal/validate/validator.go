package validate

import (
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/schema"
)

// DefaultSampleSize is the number of offending values shown per finding.
const DefaultSampleSize = 5

// Validator runs the catalog checks against one destination schema.
type Validator struct {
	schema     *schema.Schema
	sampleSize int
}

// New creates a validator. A sampleSize of zero or less uses the default.
func New(s *schema.Schema, sampleSize int) *Validator {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Validator{schema: s, sampleSize: sampleSize}
}

// Run executes every pre-resolution check.
func (v *Validator) Run(cat *catalog.Catalog) *Report {
	r := NewReport("validation")
	v.CatalogCompleteness(cat, r)
	v.AttributeCompleteness(cat, r)
	v.ShapeConformance(cat, r)
	v.Uniqueness(cat, r)
	v.Nullability(cat, r)
	v.References(cat, r)
	return r
}

// CatalogCompleteness reports schema tables with no catalog entry and
// catalog entries with no schema table.
func (v *Validator) CatalogCompleteness(cat *catalog.Catalog, r *Report) {
	for _, id := range v.schema.IDs() {
		if !cat.Has(id) {
			r.Add(Finding{Kind: CatalogMismatch, Table: id, Row: -1,
				Message: "declared in the destination schema but has no crosswalk entry"})
		}
	}
	for _, id := range cat.IDs() {
		if _, ok := v.schema.Table(id); !ok {
			r.Add(Finding{Kind: CatalogMismatch, Table: id, Row: -1,
				Message: "has a crosswalk entry but is not in the destination schema"})
		}
	}
}

// AttributeCompleteness reports entries missing source rows, a template or
// a mapping, and mappings that read columns the source does not have.
// Expected-empty tables are exempt from the source-row requirement.
func (v *Validator) AttributeCompleteness(cat *catalog.Catalog, r *Report) {
	for _, e := range cat.Entries() {
		missing := func(what string) {
			r.Add(Finding{Kind: MissingAttribute, Table: e.ID, Row: -1, Message: "no " + what})
		}
		if len(e.Mapping) == 0 {
			missing("field mapping")
		}
		if e.Template == nil {
			missing("destination template")
		}
		if e.ExpectedEmpty {
			continue
		}
		if e.Source.Len() == 0 {
			missing("source rows")
			continue
		}
		for _, m := range e.Mapping {
			var absent []string
			for _, c := range m.SourceColumns() {
				if !e.Source.HasColumn(c) {
					absent = append(absent, c)
				}
			}
			if len(absent) > 0 {
				r.Add(Finding{
					Kind:    MissingAttribute,
					Table:   e.ID,
					Field:   m.Field,
					Row:     -1,
					Count:   len(absent),
					Samples: absent,
					Message: fmt.Sprintf("source %s has no column %s", e.SourceTable, strings.Join(absent, ", ")),
				})
			}
		}
	}
}

// ShapeConformance checks row counts and column order of every buffer.
func (v *Validator) ShapeConformance(cat *catalog.Catalog, r *Report) {
	for _, e := range cat.Entries() {
		if e.ExpectedEmpty && e.Source.Len() > 0 {
			r.Add(Finding{Kind: ShapeMismatch, Table: e.ID, Row: -1, Count: e.Source.Len(),
				Message: fmt.Sprintf("declared expected-empty but source has %d rows", e.Source.Len())})
		}
		if e.RawLoad == nil {
			continue
		}
		if e.RawLoad.Len() != e.Source.Len() {
			r.Add(Finding{Kind: ShapeMismatch, Table: e.ID, Row: -1,
				Message: fmt.Sprintf("raw load has %d rows, source has %d", e.RawLoad.Len(), e.Source.Len())})
		}
		if e.Template != nil && !isSubsequence(e.RawLoad.Columns, e.Template.Columns) {
			r.Add(Finding{Kind: ShapeMismatch, Table: e.ID, Row: -1,
				Message: fmt.Sprintf("raw load columns [%s] are not an ordered subset of template columns [%s]",
					strings.Join(e.RawLoad.Columns, ", "), strings.Join(e.Template.Columns, ", "))})
		}
		if e.Payload != nil && e.Template != nil &&
			strings.Join(e.Payload.Columns, ",") != strings.Join(e.Template.Columns, ",") {
			r.Add(Finding{Kind: ShapeMismatch, Table: e.ID, Row: -1,
				Message: fmt.Sprintf("payload columns [%s] differ from template columns [%s]",
					strings.Join(e.Payload.Columns, ", "), strings.Join(e.Template.Columns, ", "))})
		}
	}
}

// isSubsequence reports whether every element of sub appears in full in the
// same relative order.
func isSubsequence(sub, full []string) bool {
	j := 0
	for _, s := range sub {
		for j < len(full) && full[j] != s {
			j++
		}
		if j == len(full) {
			return false
		}
		j++
	}
	return true
}

// Nullability reports nulls surviving in non-nullable fields, one finding
// per field. The keyed load is checked when present, the raw load otherwise.
func (v *Validator) Nullability(cat *catalog.Catalog, r *Report) {
	for _, e := range cat.Entries() {
		buf := e.KeyedLoad
		if buf == nil {
			buf = e.RawLoad
		}
		if buf == nil {
			continue
		}
		for _, m := range e.Mapping {
			if m.Nullable {
				continue
			}
			idx := buf.ColumnIndex(m.Field)
			if idx < 0 {
				continue
			}
			var rows []string
			first := -1
			for i, row := range buf.Rows {
				if catalog.IsNull(row[idx]) || (m.IsKey() && catalog.IsBlank(row[idx])) {
					if first < 0 {
						first = i
					}
					rows = append(rows, naturalKey(e, i))
				}
			}
			if len(rows) == 0 {
				continue
			}
			r.Add(Finding{
				Kind:    NullabilityViolation,
				Table:   e.ID,
				Field:   m.Field,
				Row:     first,
				Key:     rows[0],
				Count:   len(rows),
				Samples: sample(rows, v.sampleSize),
				Message: fmt.Sprintf("%d null or blank values in a non-nullable field", len(rows)),
			})
		}
	}
}

// References checks every foreign key on natural keys before resolution:
// each non-null value must be a primary-key value of the referenced
// table's raw load. One finding is reported per offending row.
func (v *Validator) References(cat *catalog.Catalog, r *Report) {
	domains := make(map[catalog.TableID]map[string]bool)
	domain := func(id catalog.TableID) (map[string]bool, bool) {
		if d, ok := domains[id]; ok {
			return d, true
		}
		parent, ok := cat.Get(id)
		if !ok {
			return nil, false
		}
		d := make(map[string]bool)
		if pk, ok := parent.PrimaryKey(); ok && parent.RawLoad != nil {
			if col, err := parent.RawLoad.Column(pk.Field); err == nil {
				for _, val := range col {
					if k, ok := catalog.KeyString(val); ok {
						d[k] = true
					}
				}
			}
		}
		domains[id] = d
		return d, true
	}

	for _, e := range cat.Entries() {
		if e.RawLoad == nil {
			continue
		}
		for _, fk := range e.ForeignKeys() {
			idx := e.RawLoad.ColumnIndex(fk.Field)
			if idx < 0 {
				continue
			}
			d, ok := domain(fk.References.Table)
			if !ok {
				r.Add(Finding{Kind: ReferentialViolation, Table: e.ID, Field: fk.Field, Row: -1,
					Count:   e.RawLoad.Len(),
					Message: fmt.Sprintf("references %s, which is not in the catalog", fk.References)})
				continue
			}
			for i, row := range e.RawLoad.Rows {
				k, ok := catalog.KeyString(row[idx])
				if !ok || d[k] {
					continue
				}
				r.Add(Finding{
					Kind:    ReferentialViolation,
					Table:   e.ID,
					Field:   fk.Field,
					Row:     i,
					Key:     naturalKey(e, i),
					Count:   1,
					Samples: []string{k},
					Message: fmt.Sprintf("value %s not found in %s", k, fk.References),
				})
			}
		}
	}
}

// Closure checks referential closure after key resolution: every non-null
// foreign-key value in a payload must be a surrogate the referenced table's
// lookup issued.
func (v *Validator) Closure(cat *catalog.Catalog) *Report {
	r := NewReport("referential closure")
	for _, e := range cat.Entries() {
		if e.Payload == nil {
			continue
		}
		for _, fk := range e.ForeignKeys() {
			idx := e.Payload.ColumnIndex(fk.Field)
			if idx < 0 {
				continue
			}
			parent, ok := cat.Get(fk.References.Table)
			var lookup *catalog.Lookup
			if ok {
				lookup = parent.Lookup
			}
			for i, row := range e.Payload.Rows {
				val := row[idx]
				if catalog.IsNull(val) || lookup.InRange(val) {
					continue
				}
				r.Add(Finding{
					Kind:    ReferentialViolation,
					Table:   e.ID,
					Field:   fk.Field,
					Row:     i,
					Count:   1,
					Samples: []string{catalog.FormatValue(val)},
					Message: fmt.Sprintf("resolved value %s is outside the key range of %s",
						catalog.FormatValue(val), fk.References.Table),
				})
			}
		}
	}
	return r
}

// naturalKey returns the staged primary-key value of row i, or "".
func naturalKey(e *catalog.TableEntry, i int) string {
	pk, ok := e.PrimaryKey()
	if !ok || e.RawLoad == nil || i >= e.RawLoad.Len() {
		return ""
	}
	v, err := e.RawLoad.Value(i, pk.Field)
	if err != nil {
		return ""
	}
	return catalog.FormatValue(v)
}
