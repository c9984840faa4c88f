package graph

import (
	"strings"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

var (
	park      = catalog.ID("ncrn", "park")
	location  = catalog.ID("ncrn", "location")
	event     = catalog.ID("ncrn", "event")
	sex       = catalog.ID("lookup", "sex")
	detection = catalog.ID("ncrn", "detection")
)

func build(t *testing.T, nodes []catalog.TableID, edges [][2]catalog.TableID) *Graph {
	t.Helper()
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	return g
}

func indexOf(order []catalog.TableID, id catalog.TableID) int {
	for i, x := range order {
		if x == id {
			return i
		}
	}
	return -1
}

func TestTopologicalSortParentsFirst(t *testing.T) {
	// Declared child-first on purpose.
	g := build(t,
		[]catalog.TableID{detection, event, location, sex, park},
		[][2]catalog.TableID{
			{park, location},
			{location, event},
			{event, detection},
			{sex, detection},
		})

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if len(order) != 5 {
		t.Fatalf("order has %d tables, want 5", len(order))
	}
	for _, e := range [][2]catalog.TableID{{park, location}, {location, event}, {event, detection}, {sex, detection}} {
		if indexOf(order, e[0]) > indexOf(order, e[1]) {
			t.Errorf("%s sorted after its child %s: %v", e[0], e[1], order)
		}
	}
}

func TestTopologicalSortTieBreakIsDeclarationOrder(t *testing.T) {
	a, b, c := catalog.ID("s", "a"), catalog.ID("s", "b"), catalog.ID("s", "c")
	g := build(t, []catalog.TableID{c, a, b}, nil)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	want := []catalog.TableID{c, a, b}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCycleDetection(t *testing.T) {
	g := build(t,
		[]catalog.TableID{park, location, event},
		[][2]catalog.TableID{{park, location}, {location, event}, {event, park}})

	has, path := g.HasCycle()
	if !has {
		t.Fatal("expected cycle")
	}
	if len(path) < 3 || path[0] != path[len(path)-1] {
		t.Errorf("cycle path should start and end on the same table: %v", path)
	}

	_, err := g.TopologicalSort()
	if err == nil || !strings.Contains(err.Error(), "cycle detected") {
		t.Errorf("TopologicalSort error = %v, want cycle error", err)
	}
}

func TestAddEdgeErrors(t *testing.T) {
	g := New()
	g.AddNode(park)
	if err := g.AddEdge(park, park); err == nil {
		t.Error("expected self-loop error")
	}
	if err := g.AddEdge(park, location); err == nil {
		t.Error("expected unknown child error")
	}
	if err := g.AddEdge(location, park); err == nil {
		t.Error("expected unknown parent error")
	}
}

func TestDescendants(t *testing.T) {
	g := build(t,
		[]catalog.TableID{park, location, event, sex, detection},
		[][2]catalog.TableID{{park, location}, {location, event}, {event, detection}, {sex, detection}})

	got := g.Descendants(location)
	if len(got) != 2 || got[0] != event || got[1] != detection {
		t.Errorf("Descendants(location) = %v, want [event detection]", got)
	}
	if len(g.Descendants(detection)) != 0 {
		t.Error("leaf should have no descendants")
	}
}
