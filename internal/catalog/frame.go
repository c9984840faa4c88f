package catalog

import "fmt"

// Frame is a tabular buffer: named columns and positional rows.
// A nil cell is a null.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// NewFrame creates an empty frame with the given columns.
func NewFrame(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// Len returns the number of rows. A nil frame has zero rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	if f == nil {
		return -1
	}
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// Append adds a row. The row must have one value per column.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.Columns))
	}
	row := make([]any, len(values))
	copy(row, values)
	f.Rows = append(f.Rows, row)
	return nil
}

// MustAppend is Append for literal fixtures; it panics on a width mismatch.
func (f *Frame) MustAppend(values ...any) *Frame {
	if err := f.Append(values...); err != nil {
		panic(err)
	}
	return f
}

// Value returns the cell at row i in the named column.
func (f *Frame) Value(i int, column string) (any, error) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	if i < 0 || i >= f.Len() {
		return nil, fmt.Errorf("row %d out of range (%d rows)", i, f.Len())
	}
	return f.Rows[i][idx], nil
}

// Column returns a copy of every value in the named column.
func (f *Frame) Column(name string) ([]any, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Row returns a read-only view of row i.
func (f *Frame) Row(i int) Row {
	return Row{frame: f, index: i}
}

// Clone returns a deep copy of the frame's structure. Cell values are
// copied by assignment.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := NewFrame(f.Columns...)
	out.Rows = make([][]any, len(f.Rows))
	for i, row := range f.Rows {
		r := make([]any, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// Empty returns a frame with the same columns and no rows.
func (f *Frame) Empty() *Frame {
	return NewFrame(f.Columns...)
}

// Row is a view of one frame row addressed by column name.
type Row struct {
	frame *Frame
	index int
}

// Index returns the row's position in its frame.
func (r Row) Index() int { return r.index }

// Has reports whether the row's frame has the column.
func (r Row) Has(column string) bool { return r.frame.HasColumn(column) }

// Get returns the named cell, or nil when the column is absent.
func (r Row) Get(column string) any {
	idx := r.frame.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	return r.frame.Rows[r.index][idx]
}

// Lookup returns the named cell and whether the column exists.
func (r Row) Lookup(column string) (any, bool) {
	idx := r.frame.ColumnIndex(column)
	if idx < 0 {
		return nil, false
	}
	return r.frame.Rows[r.index][idx], true
}
