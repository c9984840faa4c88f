package catalog

import "strings"

// Kind says how a destination field's value is derived.
type Kind int

const (
	// Direct copies one named source column.
	Direct Kind = iota
	// Calculated evaluates a pure derivation over one or more source columns.
	Calculated
	// Blank fills the field with null.
	Blank
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Calculated:
		return "calculated"
	case Blank:
		return "blank"
	default:
		return "unknown"
	}
}

// Derivation computes a calculated field from one source row. It must be
// pure: the same row always yields the same value.
type Derivation func(row Row) (any, error)

// FieldMapping declares how one destination column is produced and what
// structural role it plays.
type FieldMapping struct {
	Field string
	Kind  Kind

	// Source is the source expression: the column name for Direct mappings,
	// a human-readable description for Calculated ones.
	Source string

	// Inputs lists the source columns a Calculated derivation reads.
	Inputs []string
	Derive Derivation

	PrimaryKey bool
	ForeignKey bool
	Nullable   bool
	References *FieldRef
}

// IsKey reports whether the mapping holds a primary or foreign key.
func (m FieldMapping) IsKey() bool {
	return m.PrimaryKey || m.ForeignKey
}

// SourceColumns returns every source column this mapping reads.
func (m FieldMapping) SourceColumns() []string {
	switch m.Kind {
	case Direct:
		if m.Source == "" {
			return nil
		}
		return []string{m.Source}
	case Calculated:
		return m.Inputs
	}
	return nil
}

// Describe renders the mapping for reports, e.g. "park_id <- calc(ParkCode)".
func (m FieldMapping) Describe() string {
	var sb strings.Builder
	sb.WriteString(m.Field)
	sb.WriteString(" <- ")
	switch m.Kind {
	case Direct:
		sb.WriteString(m.Source)
	case Calculated:
		sb.WriteString("calc(")
		sb.WriteString(strings.Join(m.Inputs, ", "))
		sb.WriteString(")")
	default:
		sb.WriteString("NULL")
	}
	if m.PrimaryKey {
		sb.WriteString(" [pk]")
	}
	if m.References != nil {
		sb.WriteString(" [fk ")
		sb.WriteString(m.References.String())
		sb.WriteString("]")
	}
	return sb.String()
}
