package catalog

import "fmt"

// Lookup maps each natural key of a table to its surrogate key. Surrogates
// are 1-based positions in the lookup ordering. A code-keyed lookup maps
// every natural key to itself.
//
// A Lookup is immutable once built; foreign-key resolution of every
// referencing table reads from it.
type Lookup struct {
	keys     []string
	index    map[string]int
	identity bool
}

// NewLookup builds a lookup over keys in the given order. Duplicate or
// blank keys are an error since they cannot form a bijection.
func NewLookup(keys []string, identity bool) (*Lookup, error) {
	l := &Lookup{
		keys:     make([]string, len(keys)),
		index:    make(map[string]int, len(keys)),
		identity: identity,
	}
	copy(l.keys, keys)
	for i, k := range l.keys {
		if k == "" {
			return nil, fmt.Errorf("blank natural key at position %d", i)
		}
		if prev, dup := l.index[k]; dup {
			return nil, fmt.Errorf("duplicate natural key %q at positions %d and %d", k, prev, i)
		}
		l.index[k] = i
	}
	return l, nil
}

// Len returns the number of keys.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.keys)
}

// Identity reports whether this is a code-keyed lookup.
func (l *Lookup) Identity() bool { return l.identity }

// Keys returns a copy of the natural keys in surrogate order.
func (l *Lookup) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// NaturalAt returns the natural key at position i.
func (l *Lookup) NaturalAt(i int) string { return l.keys[i] }

// Contains reports whether the natural key is present.
func (l *Lookup) Contains(natural string) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[natural]
	return ok
}

// Surrogate returns the surrogate for a natural key: an int64 for surrogate
// tables, the key itself for code-keyed tables.
func (l *Lookup) Surrogate(natural string) (any, bool) {
	if l == nil {
		return nil, false
	}
	i, ok := l.index[natural]
	if !ok {
		return nil, false
	}
	if l.identity {
		return l.keys[i], true
	}
	return int64(i + 1), true
}

// InRange reports whether v is a surrogate this lookup issued.
func (l *Lookup) InRange(v any) bool {
	if l == nil {
		return false
	}
	if l.identity {
		s, ok := KeyString(v)
		return ok && l.Contains(s)
	}
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	default:
		return false
	}
	return n >= 1 && n <= int64(len(l.keys))
}
