package crosswalk

import (
	"fmt"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// NotNull derives a boolean flag that is true when column holds a value.
func NotNull(column string) Expr {
	return Expr{
		Inputs: []string{column},
		Desc:   fmt.Sprintf("%s IS NOT NULL", column),
		Fn: func(row catalog.Row) (any, error) {
			return !catalog.IsNull(row.Get(column)), nil
		},
	}
}

// Concat joins the canonical key form of several columns into one composite
// natural key. Any null part makes the whole key null.
func Concat(sep string, columns ...string) Expr {
	return Expr{
		Inputs: columns,
		Desc:   strings.Join(columns, " || '"+sep+"' || "),
		Fn: func(row catalog.Row) (any, error) {
			parts := make([]string, len(columns))
			for i, c := range columns {
				s, ok := catalog.KeyString(row.Get(c))
				if !ok {
					return nil, nil
				}
				parts[i] = s
			}
			return strings.Join(parts, sep), nil
		},
	}
}

// GUID canonicalizes a legacy GUID column (braces and case are dropped).
func GUID(column string) Expr {
	return Expr{
		Inputs: []string{column},
		Desc:   fmt.Sprintf("guid(%s)", column),
		Fn: func(row catalog.Row) (any, error) {
			s, ok := catalog.KeyString(row.Get(column))
			if !ok {
				return nil, nil
			}
			return s, nil
		},
	}
}

// Recode translates a code column through a fixed table. Every output is
// computed from the row's original value, so overlapping code spaces such as
// 0->1, 1->2, 2->3 never chain. Nulls pass through; an unmapped code is an
// error.
func Recode(column string, table map[string]any) Expr {
	codes := make(map[string]any, len(table))
	for k, v := range table {
		codes[k] = v
	}
	return Expr{
		Inputs: []string{column},
		Desc:   fmt.Sprintf("recode(%s)", column),
		Fn: func(row catalog.Row) (any, error) {
			v := row.Get(column)
			key, ok := catalog.KeyString(v)
			if !ok {
				return nil, nil
			}
			out, ok := codes[key]
			if !ok {
				return nil, fmt.Errorf("%s: no recode for value %q", column, key)
			}
			return out, nil
		},
	}
}

// Trim trims surrounding whitespace and maps blank strings to null.
func Trim(column string) Expr {
	return Expr{
		Inputs: []string{column},
		Desc:   fmt.Sprintf("trim(%s)", column),
		Fn: func(row catalog.Row) (any, error) {
			v := row.Get(column)
			s, ok := v.(string)
			if !ok {
				return v, nil
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, nil
			}
			return s, nil
		},
	}
}
