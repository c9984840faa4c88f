package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

const groupSeparator = "\x1f"

// DuplicateGroup is a set of rows sharing one composite-unique value.
type DuplicateGroup struct {
	Table  catalog.TableID
	Fields []string
	// Value is the normalized composite value.
	Value string
	Rows  []int
	Keys  []string
}

// normalizeKey folds a value the way hand-entered legacy text drifts:
// accents stripped, case folded and runs of whitespace collapsed.
func normalizeKey(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// uniquenessBuffer picks the most resolved buffer available.
func uniquenessBuffer(e *catalog.TableEntry) *catalog.Frame {
	switch {
	case e.Payload != nil:
		return e.Payload
	case e.KeyedLoad != nil:
		return e.KeyedLoad
	default:
		return e.RawLoad
	}
}

// Duplicates returns every group of rows that violates one of the entry's
// composite-uniqueness rules. Rows with a null in any rule field are not
// compared.
func Duplicates(e *catalog.TableEntry) []DuplicateGroup {
	buf := uniquenessBuffer(e)
	if buf == nil {
		return nil
	}
	var out []DuplicateGroup
	for _, fields := range e.UniqueGroups {
		idx := make([]int, len(fields))
		ok := true
		for i, f := range fields {
			if idx[i] = buf.ColumnIndex(f); idx[i] < 0 {
				ok = false
			}
		}
		if !ok {
			continue
		}

		type bucket struct {
			value string
			rows  []int
		}
		byHash := make(map[uint64][]*bucket)
		var order []*bucket

	rows:
		for r, row := range buf.Rows {
			parts := make([]string, len(idx))
			for i, c := range idx {
				s, ok := catalog.KeyString(row[c])
				if !ok {
					continue rows
				}
				parts[i] = normalizeKey(s)
			}
			value := strings.Join(parts, groupSeparator)
			h := xxh3.HashString(value)

			var b *bucket
			for _, cand := range byHash[h] {
				if cand.value == value {
					b = cand
					break
				}
			}
			if b == nil {
				b = &bucket{value: value}
				byHash[h] = append(byHash[h], b)
				order = append(order, b)
			}
			b.rows = append(b.rows, r)
		}

		for _, b := range order {
			if len(b.rows) < 2 {
				continue
			}
			keys := make([]string, len(b.rows))
			for i, r := range b.rows {
				keys[i] = rowKey(e, buf, r)
			}
			out = append(out, DuplicateGroup{
				Table:  e.ID,
				Fields: fields,
				Value:  strings.ReplaceAll(b.value, groupSeparator, " | "),
				Rows:   b.rows,
				Keys:   keys,
			})
		}
	}
	return out
}

// Uniqueness reports one finding per duplicate group, never one per row.
// Duplicates are not removed; they are resolved by hand from the export of
// the duplicates command.
func (v *Validator) Uniqueness(cat *catalog.Catalog, r *Report) {
	for _, e := range cat.Entries() {
		for _, g := range Duplicates(e) {
			r.Add(Finding{
				Kind:    UniquenessViolation,
				Table:   e.ID,
				Field:   strings.Join(g.Fields, ","),
				Row:     g.Rows[0],
				Key:     g.Keys[0],
				Count:   len(g.Rows),
				Samples: sample(g.Keys, v.sampleSize),
				Message: fmt.Sprintf("%d rows share (%s); export them with `migrate duplicates` for review",
					len(g.Rows), g.Value),
			})
		}
	}
}

// rowKey names row i of buf. Payload rows exclude blocked rows, so their
// primary key is read from the payload itself.
func rowKey(e *catalog.TableEntry, buf *catalog.Frame, i int) string {
	if buf != e.Payload {
		return naturalKey(e, i)
	}
	pk, ok := e.PrimaryKey()
	if !ok {
		return ""
	}
	v, err := buf.Value(i, pk.Field)
	if err != nil {
		return ""
	}
	return catalog.FormatValue(v)
}
