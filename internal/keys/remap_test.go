package keys

import (
	"fmt"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// codeTable remaps through a fixed table. Nulls pass through and unknown
// codes are an error.
func codeTable(codes map[string]any) RemapFunc {
	return func(_ string, _ int, v any) (any, error) {
		k, ok := catalog.KeyString(v)
		if !ok {
			return v, nil
		}
		out, ok := codes[k]
		if !ok {
			return nil, fmt.Errorf("no mapping for %q", k)
		}
		return out, nil
	}
}

func TestRemapIsSimultaneous(t *testing.T) {
	f := catalog.NewFrame("sex_code", "observer_sex").
		MustAppend(int64(0), int64(2)).
		MustAppend(int64(1), int64(1)).
		MustAppend(int64(2), int64(0)).
		MustAppend(nil, int64(0))

	shift := codeTable(map[string]any{"0": int64(1), "1": int64(2), "2": int64(3)})
	if err := Remap(f, []string{"sex_code", "observer_sex"}, shift); err != nil {
		t.Fatalf("Remap: %v", err)
	}

	want := [][]any{
		{int64(1), int64(3)},
		{int64(2), int64(2)},
		{int64(3), int64(1)},
		{nil, int64(1)},
	}
	for i := range want {
		for j := range want[i] {
			if f.Rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, f.Rows[i][j], want[i][j])
			}
		}
	}
}

func TestRemapLeavesFrameOnError(t *testing.T) {
	f := catalog.NewFrame("code").MustAppend(int64(0)).MustAppend(int64(7))
	if err := Remap(f, []string{"code"}, codeTable(map[string]any{"0": int64(1)})); err == nil {
		t.Fatal("expected unmapped value error")
	}
	if f.Rows[0][0] != int64(0) {
		t.Errorf("frame mutated on error: %v", f.Rows[0][0])
	}
}

func TestRemapPassesRowAndColumn(t *testing.T) {
	f := catalog.NewFrame("a", "b").MustAppend("x", "y").MustAppend("z", "w")
	err := Remap(f, []string{"b"}, func(column string, row int, v any) (any, error) {
		return fmt.Sprintf("%s%d:%v", column, row, v), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.Rows[1][1] != "b1:w" || f.Rows[0][0] != "x" {
		t.Errorf("rows = %v", f.Rows)
	}
}

func TestRemapUnknownColumn(t *testing.T) {
	f := catalog.NewFrame("a")
	if err := Remap(f, []string{"b"}, nil); err == nil {
		t.Error("expected error for unknown column")
	}
}
