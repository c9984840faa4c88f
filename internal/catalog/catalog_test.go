package catalog

import (
	"testing"
)

func TestParseTableID(t *testing.T) {
	tests := []struct {
		input   string
		want    TableID
		wantErr bool
	}{
		{"ncrn.park", ID("ncrn", "park"), false},
		{" lookup . sex ", ID("lookup", "sex"), false},
		{"park", TableID{}, true},
		{".park", TableID{}, true},
		{"ncrn.", TableID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTableID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTableID(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTableID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTableID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCatalogPreservesInsertionOrder(t *testing.T) {
	c := New()
	ids := []TableID{ID("ncrn", "park"), ID("ncrn", "location"), ID("lookup", "sex")}
	for _, id := range ids {
		if err := c.Add(NewEntry(id)); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	if err := c.Add(NewEntry(ids[0])); err == nil {
		t.Error("expected error adding duplicate table")
	}

	got := c.IDs()
	if len(got) != len(ids) {
		t.Fatalf("IDs() len = %d, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("IDs()[%d] = %v, want %v", i, got[i], ids[i])
		}
	}
}

func TestFrameAppendAndClone(t *testing.T) {
	f := NewFrame("id", "name")
	if err := f.Append(1, "a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.Append(2); err == nil {
		t.Error("expected width mismatch error")
	}

	clone := f.Clone()
	clone.Rows[0][1] = "changed"
	if v, _ := f.Value(0, "name"); v != "a" {
		t.Errorf("original mutated through clone: %v", v)
	}
	if _, err := f.Value(0, "missing"); err == nil {
		t.Error("expected unknown column error")
	}
	if _, err := f.Value(5, "id"); err == nil {
		t.Error("expected row out of range error")
	}

	row := f.Row(0)
	if row.Get("id") != 1 {
		t.Errorf("Row.Get(id) = %v", row.Get("id"))
	}
	if _, ok := row.Lookup("missing"); ok {
		t.Error("Row.Lookup(missing) should report absent")
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"blank string", "   ", "", false},
		{"trimmed string", " ABC ", "ABC", true},
		{"braced guid", "{6F9619FF-8B86-D011-B42D-00C04FC964FF}", "6f9619ff-8b86-d011-b42d-00c04fc964ff", true},
		{"plain guid", "6F9619FF-8B86-D011-B42D-00C04FC964FF", "6f9619ff-8b86-d011-b42d-00c04fc964ff", true},
		{"32 hex digits stay literal", "6F9619FF8B86D011B42D00C04FC964FF", "6F9619FF8B86D011B42D00C04FC964FF", true},
		{"int64", int64(42), "42", true},
		{"integral float", 42.0, "42", true},
		{"fractional float", 4.5, "4.5", true},
		{"bool", true, "true", true},
		{"bytes", []byte("x"), "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := KeyString(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("KeyString(%v) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	l, err := NewLookup([]string{"A", "B", "C"}, false)
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
	if v, ok := l.Surrogate("B"); !ok || v != int64(2) {
		t.Errorf("Surrogate(B) = (%v, %v), want (2, true)", v, ok)
	}
	if _, ok := l.Surrogate("Z"); ok {
		t.Error("Surrogate(Z) should be absent")
	}
	if !l.InRange(int64(3)) || l.InRange(int64(4)) || l.InRange(int64(0)) {
		t.Error("InRange mismatch for surrogate lookup")
	}

	keys := l.Keys()
	keys[0] = "mutated"
	if l.NaturalAt(0) != "A" {
		t.Error("Keys() must return a copy")
	}

	if _, err := NewLookup([]string{"A", "A"}, false); err == nil {
		t.Error("expected duplicate key error")
	}
	if _, err := NewLookup([]string{"A", ""}, false); err == nil {
		t.Error("expected blank key error")
	}

	codes, err := NewLookup([]string{"M", "F"}, true)
	if err != nil {
		t.Fatalf("NewLookup(identity): %v", err)
	}
	if v, ok := codes.Surrogate("F"); !ok || v != "F" {
		t.Errorf("identity Surrogate(F) = (%v, %v)", v, ok)
	}
	if !codes.InRange("M") || codes.InRange("U") {
		t.Error("InRange mismatch for identity lookup")
	}
}

func TestEntryBlockKeepsFirstReason(t *testing.T) {
	e := NewEntry(ID("ncrn", "location"))
	e.Block("L1", "first")
	e.Block("L1", "second")
	if e.Blocked["L1"] != "first" {
		t.Errorf("Blocked[L1] = %q, want first", e.Blocked["L1"])
	}
	if !e.IsBlocked("L1") || e.IsBlocked("L2") {
		t.Error("IsBlocked mismatch")
	}
}
