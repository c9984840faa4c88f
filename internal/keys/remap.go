package keys

import (
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// RemapFunc computes the new value of one cell from its original value.
type RemapFunc func(column string, row int, v any) (any, error)

// Remap rewrites columns of f from a single snapshot of their original
// values and assigns every result at once. No output is ever computed from
// an already substituted value, so overlapping value spaces such as
// 0->1, 1->2, 2->3 stay correct. If fn fails for any cell, f is left
// untouched.
func Remap(f *catalog.Frame, columns []string, fn RemapFunc) error {
	idx := make([]int, len(columns))
	for i, c := range columns {
		if idx[i] = f.ColumnIndex(c); idx[i] < 0 {
			return fmt.Errorf("unknown column %q", c)
		}
	}

	next := make([][]any, len(f.Rows))
	for r, row := range f.Rows {
		vals := make([]any, len(idx))
		for i, c := range idx {
			v, err := fn(columns[i], r, row[c])
			if err != nil {
				return fmt.Errorf("row %d %s: %w", r, columns[i], err)
			}
			vals[i] = v
		}
		next[r] = vals
	}

	for r, row := range f.Rows {
		for i, c := range idx {
			row[c] = next[r][i]
		}
	}
	return nil
}
