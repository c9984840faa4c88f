// Package schema declares the frozen destination schema the migration loads
// into: tables, columns, nullability, composite-uniqueness rules and how each
// table is written.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/util"
)

// LoadMode selects how the loader writes a table.
type LoadMode string

const (
	// LoadBulk writes the payload as one set (COPY).
	LoadBulk LoadMode = "bulk"
	// LoadStatements executes one generated INSERT per row.
	LoadStatements LoadMode = "statements"
)

// Column describes one destination column.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// Table describes one destination table.
type Table struct {
	Schema  string   `yaml:"schema"`
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`

	// Unique holds composite-uniqueness rules, each a comma-separated
	// list of column names.
	Unique []string `yaml:"unique"`

	ExpectedEmpty bool     `yaml:"expected_empty"`
	Load          LoadMode `yaml:"load"`

	// Group names a commit group; tables sharing a group commit together.
	Group string `yaml:"group"`
}

// ID returns the table's catalog id.
func (t *Table) ID() catalog.TableID {
	return catalog.ID(t.Schema, t.Name)
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// UniqueGroups splits each uniqueness rule into its column names.
func (t *Table) UniqueGroups() [][]string {
	var out [][]string
	for _, u := range t.Unique {
		if cols := util.SplitCSV(u); len(cols) > 0 {
			out = append(out, cols)
		}
	}
	return out
}

// Schema is the full destination schema.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Load reads and validates a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates schema YAML.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) applyDefaults() {
	for i := range s.Tables {
		if s.Tables[i].Load == "" {
			s.Tables[i].Load = LoadBulk
		}
	}
}

// Validate checks identifiers, duplicates, load modes and that uniqueness
// rules only name declared columns.
func (s *Schema) Validate() error {
	seen := make(map[catalog.TableID]bool)
	for i := range s.Tables {
		t := &s.Tables[i]
		if err := ValidateIdentifier(t.Schema); err != nil {
			return fmt.Errorf("table %d schema: %w", i, err)
		}
		if err := ValidateIdentifier(t.Name); err != nil {
			return fmt.Errorf("table %d name: %w", i, err)
		}
		id := t.ID()
		if seen[id] {
			return fmt.Errorf("table %s declared twice", id)
		}
		seen[id] = true

		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s has no columns", id)
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if err := ValidateIdentifier(c.Name); err != nil {
				return fmt.Errorf("table %s column: %w", id, err)
			}
			if cols[c.Name] {
				return fmt.Errorf("table %s declares column %q twice", id, c.Name)
			}
			cols[c.Name] = true
		}
		for _, group := range t.UniqueGroups() {
			for _, c := range group {
				if !cols[c] {
					return fmt.Errorf("table %s unique rule names unknown column %q", id, c)
				}
			}
		}
		switch t.Load {
		case LoadBulk, LoadStatements, "":
		default:
			return fmt.Errorf("table %s has invalid load mode %q (expected bulk or statements)", id, t.Load)
		}
	}
	return nil
}

// Table returns the table declaration for id.
func (s *Schema) Table(id catalog.TableID) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].ID() == id {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// IDs returns every declared table id in declaration order.
func (s *Schema) IDs() []catalog.TableID {
	out := make([]catalog.TableID, len(s.Tables))
	for i := range s.Tables {
		out[i] = s.Tables[i].ID()
	}
	return out
}

// MarkExpectedEmpty flags additional tables as permanently empty.
func (s *Schema) MarkExpectedEmpty(ids []catalog.TableID) error {
	for _, id := range ids {
		t, ok := s.Table(id)
		if !ok {
			return fmt.Errorf("expected-empty table %s is not in the destination schema", id)
		}
		t.ExpectedEmpty = true
	}
	return nil
}
