package tables

import (
	"context"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/staging"
)

func TestRegistryBuildsAgainstEmbeddedSchema(t *testing.T) {
	s, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	cw, err := Registry().Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pos := make(map[catalog.TableID]int)
	for i, id := range cw.Order() {
		pos[id] = i
	}
	edges := [][2]catalog.TableID{
		{ParkID, LocationID},
		{LocationID, EventID},
		{EventID, DetectionID},
		{SpeciesID, DetectionID},
		{LocationID, SitePhotoID},
	}
	for _, e := range edges {
		if pos[e[0]] >= pos[e[1]] {
			t.Errorf("%s must precede %s in %v", e[0], e[1], cw.Order())
		}
	}

	photo, ok := s.Table(SitePhotoID)
	if !ok || !photo.ExpectedEmpty {
		t.Error("site_photo should be declared expected empty")
	}
}

func TestSchemaReturnsFreshCopies(t *testing.T) {
	a, _ := Schema()
	b, _ := Schema()
	if err := a.MarkExpectedEmpty([]catalog.TableID{ParkID}); err != nil {
		t.Fatal(err)
	}
	if p, _ := b.Table(ParkID); p.ExpectedEmpty {
		t.Error("marking one copy leaked into another")
	}
}

func TestLoadSchemaFallsBackToEmbedded(t *testing.T) {
	s, err := LoadSchema("")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tables) != 6 {
		t.Errorf("got %d tables, want 6", len(s.Tables))
	}
}

func TestSampleStagesCleanly(t *testing.T) {
	s, _ := Schema()
	cw, err := Registry().Build(s)
	if err != nil {
		t.Fatal(err)
	}
	res, err := staging.NewBuilder(Sample(), s).Stage(context.Background(), cw)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected staging issues: %v", res.Issues)
	}

	det, _ := res.Catalog.Get(DetectionID)
	if det.RawLoad.Len() != det.Source.Len() {
		t.Errorf("raw load has %d rows, source %d", det.RawLoad.Len(), det.Source.Len())
	}
	sex, err := det.RawLoad.Column("sex_code")
	if err != nil {
		t.Fatal(err)
	}
	// Legacy 0,1,2 become 1,2,3 without chaining.
	want := []any{int64(1), int64(2), int64(3), nil, int64(1), int64(2), int64(3)}
	for i := range want {
		if sex[i] != want[i] {
			t.Errorf("row %d sex_code = %v, want %v", i, sex[i], want[i])
		}
	}

	ev, _ := res.Catalog.Get(EventID)
	if v, _ := ev.RawLoad.Value(0, "observer"); v != "kmiller" {
		t.Errorf("observer not trimmed: %q", v)
	}
	if v, _ := ev.RawLoad.Value(4, "observer"); v != nil {
		t.Errorf("blank observer should be null, got %q", v)
	}

	photo, _ := res.Catalog.Get(SitePhotoID)
	if photo.RawLoad != nil {
		t.Error("expected-empty table should stage nothing")
	}
}

func TestLegacyGUID(t *testing.T) {
	a := LegacyGUID("L1")
	if a != LegacyGUID("L1") {
		t.Error("LegacyGUID is not deterministic")
	}
	if a == LegacyGUID("L2") {
		t.Error("distinct names share a GUID")
	}
	if len(a) != 38 || a[0] != '{' || a[37] != '}' {
		t.Errorf("unexpected format %q", a)
	}
	k, ok := catalog.KeyString(a)
	if !ok || len(k) != 36 || k[0] == '{' {
		t.Errorf("KeyString(%q) = %q", a, k)
	}
}
