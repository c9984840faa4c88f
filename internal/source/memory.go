package source

import (
	"context"
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// Memory serves legacy tables from frames held in memory. It backs the
// "memory" source type used for fixtures and dry runs.
type Memory struct {
	tables map[string]*catalog.Frame
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*catalog.Frame)}
}

// Put stores a legacy table.
func (m *Memory) Put(name string, f *catalog.Frame) *Memory {
	m.tables[name] = f
	return m
}

// ReadTable returns a copy of the named table.
func (m *Memory) ReadTable(_ context.Context, name string) (*catalog.Frame, error) {
	f, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	return f.Clone(), nil
}

// HasTable reports whether the named table was put.
func (m *Memory) HasTable(_ context.Context, name string) (bool, error) {
	_, ok := m.tables[name]
	return ok, nil
}
