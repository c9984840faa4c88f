package load

import (
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/graph"
	"github.com/johndauphine/crosswalk/internal/schema"
)

// Step is one commit boundary: a single table, or every table of a load
// group, written in one transaction.
type Step struct {
	Group  string
	Tables []catalog.TableID
}

func (s Step) String() string {
	names := make([]string, len(s.Tables))
	for i, id := range s.Tables {
		names[i] = id.String()
	}
	if s.Group == "" {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("group %s: %s", s.Group, strings.Join(names, ", "))
}

// Plan is the ordered list of steps.
type Plan struct {
	Steps []Step
}

// Tables returns every planned table in load order.
func (p *Plan) Tables() []catalog.TableID {
	var out []catalog.TableID
	for _, s := range p.Steps {
		out = append(out, s.Tables...)
	}
	return out
}

// BuildPlan turns a dependency order into commit steps. Tables sharing a
// schema load group become one step; steps are ordered so every parent
// step precedes its children, ties going to the step whose first table
// comes earliest in order. Groups that would have to interleave are an
// error.
func BuildPlan(order []catalog.TableID, g *graph.Graph, s *schema.Schema) (*Plan, error) {
	var steps []Step
	stepOf := make(map[catalog.TableID]int, len(order))
	groupStep := make(map[string]int)
	for _, id := range order {
		group := ""
		if s != nil {
			if t, ok := s.Table(id); ok {
				group = t.Group
			}
		}
		if group != "" {
			if i, ok := groupStep[group]; ok {
				steps[i].Tables = append(steps[i].Tables, id)
				stepOf[id] = i
				continue
			}
			groupStep[group] = len(steps)
		}
		stepOf[id] = len(steps)
		steps = append(steps, Step{Group: group, Tables: []catalog.TableID{id}})
	}

	// Kahn's algorithm over steps.
	inDegree := make([]int, len(steps))
	children := make([]map[int]bool, len(steps))
	for i := range steps {
		children[i] = make(map[int]bool)
	}
	for i, st := range steps {
		for _, id := range st.Tables {
			for _, p := range g.Parents(id) {
				j, ok := stepOf[p]
				if !ok || j == i || children[j][i] {
					continue
				}
				children[j][i] = true
				inDegree[i]++
			}
		}
	}

	done := make([]bool, len(steps))
	plan := &Plan{}
	for len(plan.Steps) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := range steps {
				if !done[i] {
					stuck = append(stuck, steps[i].String())
				}
			}
			return nil, fmt.Errorf("load groups form a cycle: %s", strings.Join(stuck, "; "))
		}
		done[next] = true
		plan.Steps = append(plan.Steps, steps[next])
		for c := range children[next] {
			inDegree[c]--
		}
	}
	return plan, nil
}
