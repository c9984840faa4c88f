package catalog

import "fmt"

// Catalog is the flat (schema, table) registry of TableEntry records.
// Iteration follows insertion order.
type Catalog struct {
	entries map[TableID]*TableEntry
	order   []TableID
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[TableID]*TableEntry)}
}

// Add registers an entry. Adding the same table twice is an error.
func (c *Catalog) Add(e *TableEntry) error {
	if e == nil || e.ID.IsZero() {
		return fmt.Errorf("entry has no table id")
	}
	if _, exists := c.entries[e.ID]; exists {
		return fmt.Errorf("table %s already in catalog", e.ID)
	}
	c.entries[e.ID] = e
	c.order = append(c.order, e.ID)
	return nil
}

// Get returns the entry for id.
func (c *Catalog) Get(id TableID) (*TableEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id TableID) bool {
	_, ok := c.entries[id]
	return ok
}

// IDs returns the table ids in insertion order.
func (c *Catalog) IDs() []TableID {
	out := make([]TableID, len(c.order))
	copy(out, c.order)
	return out
}

// Entries returns the entries in insertion order.
func (c *Catalog) Entries() []*TableEntry {
	out := make([]*TableEntry, len(c.order))
	for i, id := range c.order {
		out[i] = c.entries[id]
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.order)
}
