package keys

import (
	"fmt"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// KeyResolutionFailure blocks key substitution for a whole table (Row -1)
// or for one row of it.
type KeyResolutionFailure struct {
	Table  catalog.TableID
	Field  string
	Row    int
	Key    string
	Value  string
	Reason string
}

func (f *KeyResolutionFailure) Error() string {
	if f.Row < 0 {
		if f.Field == "" {
			return fmt.Sprintf("key resolution failed for %s: %s", f.Table, f.Reason)
		}
		return fmt.Sprintf("key resolution failed for %s.%s: %s", f.Table, f.Field, f.Reason)
	}
	return fmt.Sprintf("key resolution failed for %s row %d (key %s) %s=%s: %s",
		f.Table, f.Row, f.Key, f.Field, f.Value, f.Reason)
}

// TableLevel reports whether the failure blocks the whole table.
func (f *KeyResolutionFailure) TableLevel() bool { return f.Row < 0 }
