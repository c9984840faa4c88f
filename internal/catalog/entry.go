package catalog

// TableEntry is the catalog's unit of record for one destination table.
type TableEntry struct {
	ID TableID

	// SourceTable names the legacy table the rows are read from.
	SourceTable string
	Mapping     []FieldMapping

	Source    *Frame
	Template  *Frame
	RawLoad   *Frame
	KeyedLoad *Frame
	Lookup    *Lookup
	Payload   *Frame

	// UniqueGroups lists composite-uniqueness rules as field-name groups.
	UniqueGroups [][]string

	// ExpectedEmpty marks a table that is known to be permanently empty.
	ExpectedEmpty bool

	// CodeKeyed marks a table whose natural key is a stable string code;
	// no surrogate conversion happens for it.
	CodeKeyed bool

	// Blocked holds natural keys of rows held back by key resolution, with
	// the reason. Blocked rows never reach the payload.
	Blocked map[string]string

	// Failure is set when key resolution failed for the whole table.
	Failure error
}

// NewEntry creates an empty entry for id.
func NewEntry(id TableID) *TableEntry {
	return &TableEntry{ID: id, Blocked: make(map[string]string)}
}

// PrimaryKey returns the primary-key mapping, if declared.
func (e *TableEntry) PrimaryKey() (FieldMapping, bool) {
	for _, m := range e.Mapping {
		if m.PrimaryKey {
			return m, true
		}
	}
	return FieldMapping{}, false
}

// ForeignKeys returns every foreign-key mapping in declaration order.
func (e *TableEntry) ForeignKeys() []FieldMapping {
	var out []FieldMapping
	for _, m := range e.Mapping {
		if m.ForeignKey && m.References != nil {
			out = append(out, m)
		}
	}
	return out
}

// Field returns the mapping for a destination field.
func (e *TableEntry) Field(name string) (FieldMapping, bool) {
	for _, m := range e.Mapping {
		if m.Field == name {
			return m, true
		}
	}
	return FieldMapping{}, false
}

// Fields returns the destination field names in mapping order.
func (e *TableEntry) Fields() []string {
	out := make([]string, len(e.Mapping))
	for i, m := range e.Mapping {
		out[i] = m.Field
	}
	return out
}

// IsBlocked reports whether the row with the given natural key is held back.
func (e *TableEntry) IsBlocked(natural string) bool {
	_, ok := e.Blocked[natural]
	return ok
}

// Block holds back a row by natural key. The first reason wins.
func (e *TableEntry) Block(natural, reason string) {
	if e.Blocked == nil {
		e.Blocked = make(map[string]string)
	}
	if _, ok := e.Blocked[natural]; !ok {
		e.Blocked[natural] = reason
	}
}

// Resolved reports whether key resolution completed for the table.
func (e *TableEntry) Resolved() bool {
	return e.Failure == nil && e.Payload != nil
}
