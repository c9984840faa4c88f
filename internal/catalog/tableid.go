package catalog

import (
	"fmt"

	"github.com/johndauphine/crosswalk/internal/util"
)

// TableID identifies a destination table.
type TableID struct {
	Schema string `yaml:"schema" json:"schema"`
	Table  string `yaml:"table" json:"table"`
}

// ID is shorthand for building a TableID.
func ID(schema, table string) TableID {
	return TableID{Schema: schema, Table: table}
}

// String returns schema.table format.
func (id TableID) String() string {
	if id.Schema == "" {
		return id.Table
	}
	return id.Schema + "." + id.Table
}

// IsZero reports whether the id has no table name.
func (id TableID) IsZero() bool {
	return id.Table == ""
}

// ParseTableID parses "schema.table". Both parts are required.
func ParseTableID(s string) (TableID, error) {
	schema, table := util.SplitQualified(s)
	if schema == "" || table == "" {
		return TableID{}, fmt.Errorf("table %q must be qualified as schema.table", s)
	}
	return TableID{Schema: schema, Table: table}, nil
}

// FieldRef points at one field of one table.
type FieldRef struct {
	Table TableID `yaml:"table" json:"table"`
	Field string  `yaml:"field" json:"field"`
}

// String returns schema.table.field format.
func (r FieldRef) String() string {
	return r.Table.String() + "." + r.Field
}
