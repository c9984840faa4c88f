package corrections

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

func TestRead(t *testing.T) {
	input := "\ufeffIdentifier,Resolution_Label,reviewer\n" +
		"{6F9619FF-8B86-D011-B42D-00C04FC964FF}, Male ,jd\n" +
		"E-2,Female,jd\n" +
		"E-2,Female,ab\n"

	got, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d corrections, want 2 (repeat with same label collapses)", len(got))
	}
	if got[0].Identifier != "6f9619ff-8b86-d011-b42d-00c04fc964ff" || got[0].Label != "Male" {
		t.Errorf("first correction = %+v", got[0])
	}
	if got[1].Line != 3 {
		t.Errorf("second correction line = %d, want 3", got[1].Line)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "", "empty correction file"},
		{"missing label column", "identifier,label\nE-1,x\n", "header must contain"},
		{"conflicting labels", "identifier,resolution_label\nE-1,Male\nE-1,Female\n", "resolved twice"},
		{"blank identifier", "identifier,resolution_label\n ,Male\n", "blank identifier"},
		{"short row", "identifier,x,resolution_label\nE-1\n", "expected at least 3 fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func stagedEvents() *catalog.TableEntry {
	e := catalog.NewEntry(catalog.ID("ncrn", "detection"))
	e.RawLoad = catalog.NewFrame("event_id", "sex_code").
		MustAppend("E-1", "U").
		MustAppend("E-2", "U").
		MustAppend("E-2", "U").
		MustAppend("E-3", "M")
	return e
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sex_review.csv")
	content := "identifier,resolution_label\nE-2,Female\nE-9,Male\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	set, err := Load(Spec{
		File:     path,
		Table:    catalog.ID("ncrn", "detection"),
		KeyField: "event_id",
		Field:    "sex_code",
		Values:   map[string]any{"Female": "F", "Male": "M"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := stagedEvents()
	res, err := set.Apply(e)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Applied != 2 {
		t.Errorf("Applied = %d, want 2", res.Applied)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "E-9" {
		t.Errorf("Unmatched = %v, want [E-9]", res.Unmatched)
	}

	col, _ := e.RawLoad.Column("sex_code")
	want := []any{"U", "F", "F", "M"}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("row %d sex_code = %v, want %v", i, col[i], want[i])
		}
	}
}

func TestApplyUnknownLabelLeavesRowsUntouched(t *testing.T) {
	set := &Set{
		Spec:    Spec{File: "x.csv", KeyField: "event_id", Field: "sex_code", Values: map[string]any{"Male": "M"}},
		Entries: []Correction{{Identifier: "E-1", Label: "Male", Line: 2}, {Identifier: "E-2", Label: "Other", Line: 3}},
	}
	e := stagedEvents()
	if _, err := set.Apply(e); err == nil {
		t.Fatal("expected unknown label error")
	}
	if v, _ := e.RawLoad.Value(0, "sex_code"); v != "U" {
		t.Errorf("row 0 modified despite failure: %v", v)
	}
}

func TestApplyMissingFields(t *testing.T) {
	e := stagedEvents()
	set := &Set{Spec: Spec{KeyField: "nope", Field: "sex_code"}}
	if _, err := set.Apply(e); err == nil {
		t.Error("expected missing key field error")
	}
	set.Spec = Spec{KeyField: "event_id", Field: "nope"}
	if _, err := set.Apply(e); err == nil {
		t.Error("expected missing field error")
	}
}
