package crosswalk

import (
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

func evalAll(t *testing.T, e Expr, f *catalog.Frame) []any {
	t.Helper()
	out := make([]any, f.Len())
	for i := range f.Rows {
		v, err := e.Fn(f.Row(i))
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		out[i] = v
	}
	return out
}

func TestRecodeOverlappingCodesDoNotChain(t *testing.T) {
	f := catalog.NewFrame("Sex").
		MustAppend(int64(0)).
		MustAppend(int64(1)).
		MustAppend(int64(2)).
		MustAppend(nil)

	e := Recode("Sex", map[string]any{"0": int64(1), "1": int64(2), "2": int64(3)})
	got := evalAll(t, e, f)
	want := []any{int64(1), int64(2), int64(3), nil}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRecodeUnknownCode(t *testing.T) {
	f := catalog.NewFrame("Sex").MustAppend(int64(9))
	e := Recode("Sex", map[string]any{"0": int64(1)})
	if _, err := e.Fn(f.Row(0)); err == nil {
		t.Error("expected error for unmapped code")
	}
}

func TestConcat(t *testing.T) {
	f := catalog.NewFrame("Plot", "Point").
		MustAppend("A1", int64(3)).
		MustAppend("A1", nil)

	got := evalAll(t, Concat("|", "Plot", "Point"), f)
	if got[0] != "A1|3" {
		t.Errorf("row 0 = %v, want A1|3", got[0])
	}
	if got[1] != nil {
		t.Errorf("row 1 = %v, want nil when a part is null", got[1])
	}
}

func TestNotNull(t *testing.T) {
	f := catalog.NewFrame("A", "B").
		MustAppend(nil, "b").
		MustAppend("a", "b")

	flags := evalAll(t, NotNull("A"), f)
	if flags[0] != false || flags[1] != true {
		t.Errorf("NotNull = %v", flags)
	}
}

func TestTrimAndGUID(t *testing.T) {
	f := catalog.NewFrame("Name", "ID").
		MustAppend("  ", "{6F9619FF-8B86-D011-B42D-00C04FC964FF}").
		MustAppend(" Rock Creek ", nil)

	trimmed := evalAll(t, Trim("Name"), f)
	if trimmed[0] != nil || trimmed[1] != "Rock Creek" {
		t.Errorf("Trim = %v", trimmed)
	}
	ids := evalAll(t, GUID("ID"), f)
	if ids[0] != "6f9619ff-8b86-d011-b42d-00c04fc964ff" || ids[1] != nil {
		t.Errorf("GUID = %v", ids)
	}
}
