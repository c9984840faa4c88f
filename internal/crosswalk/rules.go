package crosswalk

import (
	"github.com/johndauphine/crosswalk/internal/catalog"
)

// TableRules is the crosswalk for one destination table.
type TableRules struct {
	Table catalog.TableID

	// Source names the legacy table rows are read from.
	Source string

	// CodeKeyed marks tables whose primary key is a stable string code.
	CodeKeyed bool

	Fields []catalog.FieldMapping
}

// Rule produces the crosswalk for one table. It must be deterministic.
type Rule func() TableRules

// Expr is a calculated derivation together with the source columns it reads.
type Expr struct {
	Inputs []string
	Desc   string
	Fn     catalog.Derivation
}

// Direct maps a destination field straight from a source column.
func Direct(field, source string) catalog.FieldMapping {
	return catalog.FieldMapping{Field: field, Kind: catalog.Direct, Source: source}
}

// Calc maps a destination field through a derivation.
func Calc(field string, e Expr) catalog.FieldMapping {
	return catalog.FieldMapping{
		Field:  field,
		Kind:   catalog.Calculated,
		Source: e.Desc,
		Inputs: e.Inputs,
		Derive: e.Fn,
	}
}

// Blank maps a destination field to null.
func Blank(field string) catalog.FieldMapping {
	return catalog.FieldMapping{Field: field, Kind: catalog.Blank, Nullable: true}
}

// PK marks a mapping as the table's primary key.
func PK(m catalog.FieldMapping) catalog.FieldMapping {
	m.PrimaryKey = true
	return m
}

// FK marks a mapping as a foreign key to table.field.
func FK(m catalog.FieldMapping, table catalog.TableID, field string) catalog.FieldMapping {
	m.ForeignKey = true
	m.References = &catalog.FieldRef{Table: table, Field: field}
	return m
}
