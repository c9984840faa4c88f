package load

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/graph"
	"github.com/johndauphine/crosswalk/internal/schema"
	"github.com/johndauphine/crosswalk/internal/target"
)

var (
	parkID     = catalog.ID("ncrn", "park")
	locationID = catalog.ID("ncrn", "location")
	eventID    = catalog.ID("ncrn", "event")
	speciesID  = catalog.ID("ncrn", "species")
	visitID    = catalog.ID("ncrn", "visit")
	order      = []catalog.TableID{parkID, speciesID, locationID, visitID, eventID}
)

const schemaYAML = `
tables:
  - {schema: ncrn, name: park, columns: [{name: park_id}]}
  - {schema: ncrn, name: species, load: statements, columns: [{name: species_id}]}
  - {schema: ncrn, name: location, group: %s, columns: [{name: location_id}, {name: park_id}]}
  - {schema: ncrn, name: visit, expected_empty: true, columns: [{name: visit_id}]}
  - {schema: ncrn, name: event, group: %s, columns: [{name: event_id}, {name: location_id}]}
`

func testSchema(t *testing.T, group string) *schema.Schema {
	t.Helper()
	g := `""`
	if group != "" {
		g = group
	}
	s, err := schema.Parse([]byte(strings.ReplaceAll(schemaYAML, "%s", g)))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range order {
		g.AddNode(id)
	}
	for _, e := range [][2]catalog.TableID{{parkID, locationID}, {locationID, eventID}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func resolved(id catalog.TableID, cols []string, rows ...[]any) *catalog.TableEntry {
	e := catalog.NewEntry(id)
	e.Mapping = []catalog.FieldMapping{{Field: cols[0], Kind: catalog.Direct, Source: cols[0], PrimaryKey: true}}
	e.Payload = catalog.NewFrame(cols...)
	for _, r := range rows {
		e.Payload.MustAppend(r...)
	}
	return e
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	park := resolved(parkID, []string{"park_id"}, []any{"ANTI"}, []any{"CATO"})
	park.CodeKeyed = true
	visit := catalog.NewEntry(visitID)
	visit.ExpectedEmpty = true
	for _, e := range []*catalog.TableEntry{
		park,
		resolved(speciesID, []string{"species_id"}, []any{int64(1)}, []any{int64(2)}, []any{int64(3)}),
		resolved(locationID, []string{"location_id", "park_id"}, []any{int64(1), "ANTI"}),
		visit,
		resolved(eventID, []string{"event_id", "location_id"}, []any{int64(1), int64(1)}),
	} {
		if err := cat.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	return cat
}

func plan(t *testing.T, s *schema.Schema) *Plan {
	t.Helper()
	p, err := BuildPlan(order, testGraph(t), s)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	return p
}

func indexOf(ids []catalog.TableID, id catalog.TableID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func TestLoadAll(t *testing.T) {
	s := testSchema(t, "")
	dest := target.NewDryRun()
	res := NewLoader(dest, s, testGraph(t), nil).Load(context.Background(), testCatalog(t), plan(t, s))

	if len(res.Successes) != 5 || len(res.Fails) != 0 || len(res.Remaining) != 0 {
		t.Fatalf("successes %v fails %v remaining %v", res.Successes, res.Fails, res.Remaining)
	}
	// The expected-empty table is a success without a write.
	if indexOf(dest.Tables(), visitID) >= 0 {
		t.Error("expected-empty table was written")
	}
	if out, _ := res.Outcome(visitID); out.Status != StatusSucceeded {
		t.Errorf("visit status = %s", out.Status)
	}
	for _, w := range dest.Writes() {
		if w.Table == speciesID && w.Statements != 3 {
			t.Errorf("species should load as 3 statements, got %+v", w)
		}
		if w.Table == parkID && w.Statements != 0 {
			t.Errorf("park should bulk load, got %+v", w)
		}
	}
	if indexOf(res.Attempts, parkID) > indexOf(res.Attempts, locationID) ||
		indexOf(res.Attempts, locationID) > indexOf(res.Attempts, eventID) {
		t.Errorf("attempts out of dependency order: %v", res.Attempts)
	}
}

func TestLoadFailureSkipsDescendantsOnly(t *testing.T) {
	s := testSchema(t, "")
	boom := errors.New("duplicate key value")
	dest := target.NewDryRun().FailOn(parkID, boom)
	res := NewLoader(dest, s, testGraph(t), nil).Load(context.Background(), testCatalog(t), plan(t, s))

	if len(res.Fails) != 1 || res.Fails[0] != parkID {
		t.Fatalf("fails = %v, want [park]", res.Fails)
	}
	out, _ := res.Outcome(parkID)
	var lf *LoadFailure
	if !errors.As(out.Err, &lf) || !errors.Is(out.Err, boom) {
		t.Errorf("park error = %v, want LoadFailure wrapping boom", out.Err)
	}
	if got := res.Remaining; len(got) != 2 || got[0] != locationID || got[1] != eventID {
		t.Errorf("remaining = %v, want [location event]", got)
	}
	if out, _ := res.Outcome(eventID); !strings.Contains(out.Reason, "ncrn.location") {
		t.Errorf("event reason = %q", out.Reason)
	}
	// Unrelated branches still load.
	if indexOf(res.Successes, speciesID) < 0 || indexOf(res.Successes, visitID) < 0 {
		t.Errorf("successes = %v", res.Successes)
	}
	if indexOf(res.Attempts, locationID) >= 0 {
		t.Error("skipped table recorded an attempt")
	}
}

func TestLoadBlockedTableStaysRemaining(t *testing.T) {
	s := testSchema(t, "")
	cat := testCatalog(t)
	loc, _ := cat.Get(locationID)
	loc.Failure = errors.New("key resolution failed")

	res := NewLoader(target.NewDryRun(), s, testGraph(t), nil).Load(context.Background(), cat, plan(t, s))
	if len(res.Fails) != 0 {
		t.Errorf("fails = %v, blocked tables are not attempted", res.Fails)
	}
	if len(res.Remaining) != 2 {
		t.Errorf("remaining = %v, want location and event", res.Remaining)
	}
	out, _ := res.Outcome(locationID)
	if out.Status != StatusPending || !strings.HasPrefix(out.Reason, "blocked") {
		t.Errorf("location outcome = %+v", out)
	}
}

func TestLoadGroupCommitsTogether(t *testing.T) {
	s := testSchema(t, "observations")
	dest := target.NewDryRun().FailOn(eventID, errors.New("fk violation"))
	p := plan(t, s)

	res := NewLoader(dest, s, testGraph(t), nil).Load(context.Background(), testCatalog(t), p)
	if len(res.Fails) != 2 {
		t.Fatalf("fails = %v, want location and event", res.Fails)
	}
	if indexOf(dest.Tables(), locationID) >= 0 {
		t.Error("location write should roll back with its group")
	}
	out, _ := res.Outcome(locationID)
	if !strings.Contains(out.Err.Error(), "rolled back with group observations") {
		t.Errorf("location error = %v", out.Err)
	}
}

func TestLoadCancelled(t *testing.T) {
	s := testSchema(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewLoader(target.NewDryRun(), s, testGraph(t), nil).Load(ctx, testCatalog(t), plan(t, s))
	if len(res.Remaining) != 5 || len(res.Attempts) != 0 {
		t.Errorf("remaining = %v attempts = %v", res.Remaining, res.Attempts)
	}
}

func TestBuildPlanGroups(t *testing.T) {
	p := plan(t, testSchema(t, "observations"))
	var got []string
	for _, st := range p.Steps {
		got = append(got, st.String())
	}
	want := []string{
		"ncrn.park",
		"ncrn.species",
		"group observations: ncrn.location, ncrn.event",
		"ncrn.visit",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("plan:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestBuildPlanRejectsInterleavedGroups(t *testing.T) {
	s, err := schema.Parse([]byte(`
tables:
  - {schema: ncrn, name: park, group: g, columns: [{name: park_id}]}
  - {schema: ncrn, name: location, columns: [{name: location_id}]}
  - {schema: ncrn, name: event, group: g, columns: [{name: event_id}]}
`))
	if err != nil {
		t.Fatal(err)
	}
	g := graph.New()
	for _, id := range []catalog.TableID{parkID, locationID, eventID} {
		g.AddNode(id)
	}
	_ = g.AddEdge(parkID, locationID)
	_ = g.AddEdge(locationID, eventID)

	if _, err := BuildPlan([]catalog.TableID{parkID, locationID, eventID}, g, s); err == nil ||
		!strings.Contains(err.Error(), "cycle") {
		t.Errorf("err = %v, want group cycle", err)
	}
}

func TestLoadSkipsUnresolvedTables(t *testing.T) {
	s := testSchema(t, "")
	cat := testCatalog(t)
	loc, _ := cat.Get(locationID)
	loc.Payload = nil

	dest := target.NewDryRun()
	res := NewLoader(dest, s, testGraph(t), nil).Load(context.Background(), cat, plan(t, s))

	out, _ := res.Outcome(locationID)
	if out.Status != StatusPending || out.Reason != "keys not resolved" {
		t.Errorf("location outcome = %+v", out)
	}
	ev, _ := res.Outcome(eventID)
	if ev.Status != StatusPending || !strings.Contains(ev.Reason, "ncrn.location") {
		t.Errorf("event outcome = %+v", ev)
	}
	if indexOf(dest.Tables(), locationID) >= 0 {
		t.Error("unresolved table was written")
	}
}
