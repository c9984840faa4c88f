package crosswalk

import (
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/graph"
	"github.com/johndauphine/crosswalk/internal/schema"
)

// RegistryError lists every structural problem found while building the
// crosswalk. It is fatal: nothing is staged when it occurs.
type RegistryError struct {
	Problems []string
}

func (e *RegistryError) Error() string {
	if len(e.Problems) == 1 {
		return "crosswalk registry: " + e.Problems[0]
	}
	return fmt.Sprintf("crosswalk registry: %d problems:\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

func (e *RegistryError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Registry collects rule functions keyed by table identity.
type Registry struct {
	ids   []catalog.TableID
	rules map[catalog.TableID]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[catalog.TableID]Rule)}
}

// Register adds the rule for one table. Registering a table twice is an error.
func (r *Registry) Register(id catalog.TableID, rule Rule) error {
	if rule == nil {
		return fmt.Errorf("nil rule for %s", id)
	}
	if _, exists := r.rules[id]; exists {
		return fmt.Errorf("rule for %s already registered", id)
	}
	r.rules[id] = rule
	r.ids = append(r.ids, id)
	return nil
}

// MustRegister is Register for package-level rule tables; it panics on error.
func (r *Registry) MustRegister(id catalog.TableID, rule Rule) {
	if err := r.Register(id, rule); err != nil {
		panic(err)
	}
}

// IDs returns registered tables in registration order.
func (r *Registry) IDs() []catalog.TableID {
	out := make([]catalog.TableID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Build evaluates every rule and checks it against the destination schema.
//
// Tables registered but missing from the schema (and the reverse) are not
// registry errors; they surface in the validator's catalog completeness
// check. Tables with zero mapped fields are likewise left for the attribute
// completeness check.
func (r *Registry) Build(s *schema.Schema) (*Crosswalk, error) {
	rerr := &RegistryError{}
	cw := &Crosswalk{index: make(map[catalog.TableID]int)}

	for _, id := range r.ids {
		tr := r.rules[id]()
		if tr.Table != id {
			rerr.add("rule registered for %s describes %s", id, tr.Table)
			continue
		}
		if s != nil {
			if t, ok := s.Table(id); ok {
				tr.Fields = applySchema(rerr, t, tr.Fields)
			}
		}
		checkFields(rerr, tr)
		cw.index[id] = len(cw.tables)
		cw.tables = append(cw.tables, tr)
	}

	checkReferences(rerr, cw)

	if len(rerr.Problems) == 0 {
		g, err := cw.buildGraph()
		if err != nil {
			rerr.add("%v", err)
		} else if order, err := g.TopologicalSort(); err != nil {
			rerr.add("%v", err)
		} else {
			cw.graph = g
			cw.order = order
		}
	}

	if len(rerr.Problems) > 0 {
		return nil, rerr
	}
	return cw, nil
}

// applySchema checks the mapping against the table's declared columns and
// takes nullability from the schema.
func applySchema(rerr *RegistryError, t *schema.Table, fields []catalog.FieldMapping) []catalog.FieldMapping {
	if len(fields) == 0 {
		return fields
	}
	declared := t.ColumnNames()
	mapped := make([]string, len(fields))
	for i, f := range fields {
		mapped[i] = f.Field
	}
	if strings.Join(declared, ",") != strings.Join(mapped, ",") {
		rerr.add("%s: mapped fields [%s] do not match destination columns [%s]",
			t.ID(), strings.Join(mapped, ", "), strings.Join(declared, ", "))
		return fields
	}

	out := make([]catalog.FieldMapping, len(fields))
	for i, f := range fields {
		col, _ := t.Column(f.Field)
		f.Nullable = col.Nullable
		out[i] = f
	}
	return out
}

func checkFields(rerr *RegistryError, tr TableRules) {
	if len(tr.Fields) == 0 {
		return
	}
	if tr.Source == "" {
		rerr.add("%s: no source table", tr.Table)
	}

	seen := make(map[string]bool, len(tr.Fields))
	pks := 0
	for _, f := range tr.Fields {
		where := tr.Table.String() + "." + f.Field
		if f.Field == "" {
			rerr.add("%s: mapping with empty field name", tr.Table)
			continue
		}
		if seen[f.Field] {
			rerr.add("%s: mapped twice", where)
		}
		seen[f.Field] = true

		switch f.Kind {
		case catalog.Direct:
			if f.Source == "" {
				rerr.add("%s: direct mapping has no source column", where)
			}
		case catalog.Calculated:
			if f.Derive == nil {
				rerr.add("%s: calculated mapping has no derivation", where)
			}
		case catalog.Blank:
			if f.PrimaryKey {
				rerr.add("%s: primary key cannot be blank", where)
			}
		default:
			rerr.add("%s: unknown mapping kind %d", where, f.Kind)
		}

		if f.PrimaryKey {
			pks++
		}
		if f.ForeignKey != (f.References != nil) {
			rerr.add("%s: foreign-key flag and references pointer disagree", where)
		}
	}
	if pks != 1 {
		rerr.add("%s: %d primary-key fields, want exactly 1", tr.Table, pks)
	}
}

// checkReferences verifies each references pointer names another table's
// declared primary-key field.
func checkReferences(rerr *RegistryError, cw *Crosswalk) {
	for _, tr := range cw.tables {
		for _, f := range tr.Fields {
			if f.References == nil {
				continue
			}
			ref := *f.References
			target, ok := cw.Rules(ref.Table)
			if !ok {
				rerr.add("%s.%s: references unregistered table %s", tr.Table, f.Field, ref.Table)
				continue
			}
			pk, ok := target.primaryKey()
			if !ok || pk.Field != ref.Field {
				rerr.add("%s.%s: references %s, which is not the primary key of %s",
					tr.Table, f.Field, ref, ref.Table)
			}
		}
	}
}

func (tr TableRules) primaryKey() (catalog.FieldMapping, bool) {
	for _, f := range tr.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return catalog.FieldMapping{}, false
}

// Crosswalk is the built, checked set of table rules.
type Crosswalk struct {
	tables []TableRules
	index  map[catalog.TableID]int
	graph  *graph.Graph
	order  []catalog.TableID
}

// IDs returns tables in registration (declaration) order.
func (c *Crosswalk) IDs() []catalog.TableID {
	out := make([]catalog.TableID, len(c.tables))
	for i, t := range c.tables {
		out[i] = t.Table
	}
	return out
}

// Rules returns the rules for one table.
func (c *Crosswalk) Rules(id catalog.TableID) (TableRules, bool) {
	i, ok := c.index[id]
	if !ok {
		return TableRules{}, false
	}
	return c.tables[i], true
}

// Mapping returns the ordered field mappings for one table.
func (c *Crosswalk) Mapping(id catalog.TableID) []catalog.FieldMapping {
	tr, ok := c.Rules(id)
	if !ok {
		return nil
	}
	out := make([]catalog.FieldMapping, len(tr.Fields))
	copy(out, tr.Fields)
	return out
}

// Graph returns the foreign-key dependency graph.
func (c *Crosswalk) Graph() *graph.Graph { return c.graph }

// Order returns the dependency order: every referenced table precedes the
// tables referencing it, ties broken by declaration order.
func (c *Crosswalk) Order() []catalog.TableID {
	out := make([]catalog.TableID, len(c.order))
	copy(out, c.order)
	return out
}

// buildGraph derives the dependency graph from references pointers.
// Self references do not constrain ordering and are left out.
func (c *Crosswalk) buildGraph() (*graph.Graph, error) {
	g := graph.New()
	for _, t := range c.tables {
		g.AddNode(t.Table)
	}
	for _, t := range c.tables {
		for _, f := range t.Fields {
			if f.References == nil || f.References.Table == t.Table {
				continue
			}
			if err := g.AddEdge(f.References.Table, t.Table); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
