// Package corrections reads static correction files produced by manual
// historical review and merges their decisions into staged rows.
//
// A correction file is a CSV with a header row containing at least the
// columns "identifier" and "resolution_label". Each line resolves one
// natural identifier (for example a visit or event id) to a label that is
// written into one destination field before key resolution.
package corrections

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

const (
	identifierColumn = "identifier"
	labelColumn      = "resolution_label"
)

// Correction is one reviewed decision.
type Correction struct {
	Identifier string
	Label      string
	Line       int
}

// Spec says where a correction file applies.
type Spec struct {
	File     string
	Table    catalog.TableID
	KeyField string
	Field    string

	// Values optionally translates labels into stored values.
	Values map[string]any
}

// Set is a loaded correction file bound to its target field.
type Set struct {
	Spec    Spec
	Entries []Correction
}

// Result summarizes one Apply.
type Result struct {
	Applied   int
	Unmatched []string
}

// Load reads the file named by spec.
func Load(spec Spec) (*Set, error) {
	f, err := os.Open(spec.File)
	if err != nil {
		return nil, fmt.Errorf("opening correction file: %w", err)
	}
	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.File, err)
	}
	return &Set{Spec: spec, Entries: entries}, nil
}

// Read parses correction CSV. Identifiers are canonicalized like natural
// keys. Repeating an identifier with a different label is an error.
func Read(r io.Reader) ([]Correction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty correction file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case identifierColumn:
			idCol = i
		case labelColumn:
			labelCol = i
		}
	}
	if idCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", identifierColumn, labelColumn)
	}

	var out []Correction
	seen := make(map[string]string)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= idCol || len(rec) <= labelCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(idCol, labelCol)+1, len(rec))
		}
		id, ok := catalog.KeyString(rec[idCol])
		if !ok {
			return nil, fmt.Errorf("line %d: blank identifier", line)
		}
		label := strings.TrimSpace(rec[labelCol])
		if prev, dup := seen[id]; dup {
			if prev != label {
				return nil, fmt.Errorf("line %d: identifier %q resolved twice (%q, %q)", line, id, prev, label)
			}
			continue
		}
		seen[id] = label
		out = append(out, Correction{Identifier: id, Label: label, Line: line})
	}
	return out, nil
}

// Apply writes each decision into the entry's raw load. New values are
// computed from one snapshot of the key column and assigned together.
func (s *Set) Apply(e *catalog.TableEntry) (Result, error) {
	var res Result
	if e.RawLoad == nil {
		return res, fmt.Errorf("%s: nothing staged", e.ID)
	}
	keyIdx := e.RawLoad.ColumnIndex(s.Spec.KeyField)
	if keyIdx < 0 {
		return res, fmt.Errorf("%s: no key field %q", e.ID, s.Spec.KeyField)
	}
	fieldIdx := e.RawLoad.ColumnIndex(s.Spec.Field)
	if fieldIdx < 0 {
		return res, fmt.Errorf("%s: no field %q", e.ID, s.Spec.Field)
	}

	byKey := make(map[string][]int)
	for i, row := range e.RawLoad.Rows {
		if k, ok := catalog.KeyString(row[keyIdx]); ok {
			byKey[k] = append(byKey[k], i)
		}
	}

	type assignment struct {
		row   int
		value any
	}
	var pending []assignment
	for _, c := range s.Entries {
		rows, ok := byKey[c.Identifier]
		if !ok {
			res.Unmatched = append(res.Unmatched, c.Identifier)
			continue
		}
		value, err := s.value(c.Label)
		if err != nil {
			return Result{}, fmt.Errorf("%s line %d: %w", s.Spec.File, c.Line, err)
		}
		for _, r := range rows {
			pending = append(pending, assignment{row: r, value: value})
		}
	}

	for _, a := range pending {
		e.RawLoad.Rows[a.row][fieldIdx] = a.value
	}
	res.Applied = len(pending)
	return res, nil
}

func (s *Set) value(label string) (any, error) {
	if s.Spec.Values == nil {
		if label == "" {
			return nil, nil
		}
		return label, nil
	}
	v, ok := s.Spec.Values[label]
	if !ok {
		return nil, fmt.Errorf("no value for resolution label %q", label)
	}
	return v, nil
}
