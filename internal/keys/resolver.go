// Package keys converts natural keys into destination surrogate keys.
//
// Tables are resolved in dependency order. For each table the primary key
// is resolved first, building the table's immutable lookup, then every
// foreign key is joined against the referenced table's lookup. A failure
// never leaves a partially substituted buffer behind.
package keys

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/logging"
)

// Policy decides what an unmatched foreign-key value does.
type Policy string

const (
	// PolicyQuarantine blocks only the rows whose value did not match.
	PolicyQuarantine Policy = "quarantine"
	// PolicyAbort rolls back the whole field substitution and blocks the
	// table.
	PolicyAbort Policy = "abort"
)

// ParsePolicy validates a policy name. Empty means quarantine.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyQuarantine:
		return PolicyQuarantine, nil
	case PolicyAbort:
		return PolicyAbort, nil
	}
	return "", fmt.Errorf("invalid foreign key policy %q (expected quarantine or abort)", s)
}

// Result lists every failure from one resolution pass.
type Result struct {
	Failures []*KeyResolutionFailure
}

// TableFailures returns the failures that blocked whole tables.
func (r *Result) TableFailures() []*KeyResolutionFailure {
	var out []*KeyResolutionFailure
	for _, f := range r.Failures {
		if f.TableLevel() {
			out = append(out, f)
		}
	}
	return out
}

// RowFailures returns the failures that blocked single rows.
func (r *Result) RowFailures() []*KeyResolutionFailure {
	var out []*KeyResolutionFailure
	for _, f := range r.Failures {
		if !f.TableLevel() {
			out = append(out, f)
		}
	}
	return out
}

// For returns the failures of one table.
func (r *Result) For(id catalog.TableID) []*KeyResolutionFailure {
	var out []*KeyResolutionFailure
	for _, f := range r.Failures {
		if f.Table == id {
			out = append(out, f)
		}
	}
	return out
}

// Resolver runs key resolution over a catalog.
type Resolver struct {
	order  []catalog.TableID
	policy Policy
}

// NewResolver creates a resolver for a dependency order in which every
// referenced table precedes the tables referencing it.
func NewResolver(order []catalog.TableID, policy Policy) *Resolver {
	if policy == "" {
		policy = PolicyQuarantine
	}
	o := make([]catalog.TableID, len(order))
	copy(o, order)
	return &Resolver{order: o, policy: policy}
}

// Resolve resolves every table in order and records the outcome on each
// entry: KeyedLoad, Lookup and Payload on success, Failure otherwise.
func (r *Resolver) Resolve(cat *catalog.Catalog) *Result {
	res := &Result{}
	for _, id := range r.order {
		e, ok := cat.Get(id)
		if !ok {
			continue
		}
		failures := r.resolveTable(cat, e)
		res.Failures = append(res.Failures, failures...)
		switch {
		case e.Failure != nil:
			logging.Warn("%v", e.Failure)
		case len(e.Blocked) > 0:
			logging.Warn("%s: %d rows quarantined by key resolution", id, len(e.Blocked))
		default:
			logging.Debug("%s: resolved %d keys", id, e.Lookup.Len())
		}
	}
	return res
}

func (r *Resolver) resolveTable(cat *catalog.Catalog, e *catalog.TableEntry) []*KeyResolutionFailure {
	fail := func(field, reason string) []*KeyResolutionFailure {
		f := &KeyResolutionFailure{Table: e.ID, Field: field, Row: -1, Reason: reason}
		e.Failure = f
		e.KeyedLoad = nil
		e.Lookup = nil
		e.Payload = nil
		return []*KeyResolutionFailure{f}
	}

	// Expected-empty tables load nothing, so their lookup is empty even
	// when the source had rows.
	if e.ExpectedEmpty {
		cols := e.Fields()
		if e.Template != nil {
			cols = e.Template.Columns
		}
		e.Blocked = make(map[string]string)
		e.Failure = nil
		e.KeyedLoad = catalog.NewFrame(cols...)
		e.Lookup, _ = catalog.NewLookup(nil, e.CodeKeyed)
		e.Payload = catalog.NewFrame(cols...)
		return nil
	}
	if e.RawLoad == nil {
		return fail("", "nothing staged")
	}

	// Resolution is idempotent: it always restarts from the raw load.
	e.Blocked = make(map[string]string)
	e.Failure = nil

	lookup, err := BuildLookup(e)
	if err != nil {
		return fail(pkName(e), err.Error())
	}
	keyed := e.RawLoad.Clone()
	if err := ResolvePrimary(e, keyed, lookup); err != nil {
		return fail(pkName(e), err.Error())
	}

	var rowFailures []*KeyResolutionFailure
	for _, fk := range e.ForeignKeys() {
		parentLookup, parent, reason := r.parentLookup(cat, e, fk, lookup)
		if reason != "" {
			return fail(fk.Field, reason)
		}
		unmatched, err := resolveForeign(e, keyed, fk, parent, parentLookup)
		if err != nil {
			return fail(fk.Field, err.Error())
		}
		if len(unmatched) == 0 {
			continue
		}
		if r.policy == PolicyAbort {
			return fail(fk.Field, fmt.Sprintf("%d rows did not match %s (first: %s)",
				len(unmatched), fk.References, unmatched[0].Value))
		}
		for _, u := range unmatched {
			e.Block(u.Key, u.Reason)
		}
		rowFailures = append(rowFailures, unmatched...)
	}
	rowFailures = append(rowFailures, closeSelfReferences(e, keyed, lookup)...)

	e.KeyedLoad = keyed
	e.Lookup = lookup
	e.Payload = Project(e, keyed)
	return rowFailures
}

// parentLookup finds the lookup a foreign key joins against. A parent that
// failed, or was never staged, blocks the child table as well.
func (r *Resolver) parentLookup(cat *catalog.Catalog, e *catalog.TableEntry, fk catalog.FieldMapping, own *catalog.Lookup) (*catalog.Lookup, *catalog.TableEntry, string) {
	if fk.References.Table == e.ID {
		return own, e, ""
	}
	parent, ok := cat.Get(fk.References.Table)
	if !ok {
		return nil, nil, fmt.Sprintf("referenced table %s is not in the catalog", fk.References.Table)
	}
	if parent.Failure != nil {
		return nil, nil, fmt.Sprintf("depends on %s, which failed key resolution", parent.ID)
	}
	if parent.Lookup == nil {
		return nil, nil, fmt.Sprintf("depends on %s, which has not been resolved", parent.ID)
	}
	return parent.Lookup, parent, ""
}

func pkName(e *catalog.TableEntry) string {
	if pk, ok := e.PrimaryKey(); ok {
		return pk.Field
	}
	return ""
}

// BuildLookup builds a table's lookup from the natural primary keys of its
// raw load, ordered by natural key. Numeric keys order numerically.
func BuildLookup(e *catalog.TableEntry) (*catalog.Lookup, error) {
	pk, ok := e.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("no primary key declared")
	}
	naturals, err := naturalKeys(e.RawLoad, pk.Field)
	if err != nil {
		return nil, err
	}
	sorted := make([]string, len(naturals))
	copy(sorted, naturals)
	sort.SliceStable(sorted, func(i, j int) bool { return lessNatural(sorted[i], sorted[j]) })
	return catalog.NewLookup(sorted, e.CodeKeyed)
}

func naturalKeys(f *catalog.Frame, field string) ([]string, error) {
	col, err := f.Column(field)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(col))
	for i, v := range col {
		k, ok := catalog.KeyString(v)
		if !ok {
			return nil, fmt.Errorf("row %d has no natural key", i)
		}
		out[i] = k
	}
	return out, nil
}

func lessNatural(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}

// ResolvePrimary substitutes the primary-key column of keyed with surrogates
// from lookup. The lookup and the buffer must be in 1:1 correspondence: the
// same number of rows and every row's natural key present. Otherwise keyed is
// left unmodified. Code-keyed tables keep their codes.
func ResolvePrimary(e *catalog.TableEntry, keyed *catalog.Frame, lookup *catalog.Lookup) error {
	pk, ok := e.PrimaryKey()
	if !ok {
		return fmt.Errorf("no primary key declared")
	}
	if lookup.Len() != keyed.Len() {
		return fmt.Errorf("lookup has %d keys, buffer has %d rows", lookup.Len(), keyed.Len())
	}
	naturals, err := naturalKeys(keyed, pk.Field)
	if err != nil {
		return err
	}
	for i, k := range naturals {
		if !lookup.Contains(k) {
			return fmt.Errorf("row %d natural key %s is not in the lookup", i, k)
		}
	}
	return Remap(keyed, []string{pk.Field}, func(_ string, row int, _ any) (any, error) {
		v, _ := lookup.Surrogate(naturals[row])
		return v, nil
	})
}

// resolveForeign joins one foreign-key column against the parent lookup.
// Matched values are substituted together; unmatched rows keep their
// natural value and are returned. Rows referencing a quarantined parent row
// count as unmatched. A null or blank value becomes null when the field is
// nullable and is unmatched otherwise.
func resolveForeign(e *catalog.TableEntry, keyed *catalog.Frame, fk catalog.FieldMapping, parent *catalog.TableEntry, lookup *catalog.Lookup) ([]*KeyResolutionFailure, error) {
	self := parent == e
	var unmatched []*KeyResolutionFailure
	rowKey := rowKeys(e)

	err := Remap(keyed, []string{fk.Field}, func(_ string, row int, v any) (any, error) {
		k, ok := catalog.KeyString(v)
		if !ok {
			if fk.Nullable {
				return nil, nil
			}
			shown := "null"
			if !catalog.IsNull(v) {
				shown = fmt.Sprintf("%q", catalog.FormatValue(v))
			}
			unmatched = append(unmatched, &KeyResolutionFailure{
				Table: e.ID, Field: fk.Field, Row: row, Key: rowKey[row], Value: shown,
				Reason: "no value for a non-nullable foreign key",
			})
			return v, nil
		}
		reason := ""
		sur, found := lookup.Surrogate(k)
		switch {
		case !found:
			reason = fmt.Sprintf("no %s row has natural key %s", fk.References, k)
		case !self && parent.IsBlocked(k):
			reason = fmt.Sprintf("referenced %s row %s is quarantined", parent.ID, k)
		}
		if reason != "" {
			unmatched = append(unmatched, &KeyResolutionFailure{
				Table: e.ID, Field: fk.Field, Row: row, Key: rowKey[row], Value: k, Reason: reason,
			})
			return v, nil
		}
		return sur, nil
	})
	if err != nil {
		return nil, err
	}
	return unmatched, nil
}

// closeSelfReferences blocks rows whose self reference points at a blocked
// row, repeating until nothing changes.
func closeSelfReferences(e *catalog.TableEntry, keyed *catalog.Frame, lookup *catalog.Lookup) []*KeyResolutionFailure {
	var out []*KeyResolutionFailure
	rowKey := rowKeys(e)
	for _, fk := range e.ForeignKeys() {
		if fk.References.Table != e.ID {
			continue
		}
		idx := keyed.ColumnIndex(fk.Field)
		for changed := len(e.Blocked) > 0; changed; {
			changed = false
			for i, row := range keyed.Rows {
				if e.IsBlocked(rowKey[i]) {
					continue
				}
				target, ok := naturalOf(lookup, row[idx])
				if !ok || !e.IsBlocked(target) {
					continue
				}
				reason := fmt.Sprintf("referenced %s row %s is quarantined", e.ID, target)
				e.Block(rowKey[i], reason)
				out = append(out, &KeyResolutionFailure{
					Table: e.ID, Field: fk.Field, Row: i, Key: rowKey[i], Value: target, Reason: reason,
				})
				changed = true
			}
		}
	}
	return out
}

// naturalOf maps a resolved surrogate back to its natural key.
func naturalOf(l *catalog.Lookup, v any) (string, bool) {
	if catalog.IsNull(v) {
		return "", false
	}
	if l.Identity() {
		return catalog.KeyString(v)
	}
	n, ok := v.(int64)
	if !ok || !l.InRange(n) {
		return "", false
	}
	return l.NaturalAt(int(n - 1)), true
}

// rowKeys returns the natural primary key of every raw-load row.
func rowKeys(e *catalog.TableEntry) []string {
	pk, _ := e.PrimaryKey()
	keys, err := naturalKeys(e.RawLoad, pk.Field)
	if err != nil {
		return make([]string, e.RawLoad.Len())
	}
	return keys
}

// Project builds the insert-ready payload: destination column order, with
// quarantined rows left out.
func Project(e *catalog.TableEntry, keyed *catalog.Frame) *catalog.Frame {
	cols := keyed.Columns
	if e.Template != nil {
		cols = e.Template.Columns
	}
	out := catalog.NewFrame(cols...)
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = keyed.ColumnIndex(c)
	}
	keys := rowKeys(e)
	for r, row := range keyed.Rows {
		if len(e.Blocked) > 0 && e.IsBlocked(keys[r]) {
			continue
		}
		vals := make([]any, len(cols))
		for i, c := range idx {
			if c >= 0 {
				vals[i] = row[c]
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	return out
}
